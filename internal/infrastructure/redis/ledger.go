package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

// Largest amount the Lua scripts handle exactly.
const maxLedgerAmount = uint64(1) << 53

const (
	ledgerOK           = 1
	ledgerInsufficient = 0
	ledgerOverflow     = -1
)

// KEYS: free, account ARGV: account, amount, limit
const depositScript = `
local free = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
if free + tonumber(ARGV[2]) > tonumber(ARGV[3]) then
    return -1
end
redis.call("HINCRBY", KEYS[1], ARGV[1], ARGV[2])
return 1
`

// KEYS: free, reserved, hold ARGV: account, amount, -amount
const reserveScript = `
local free = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
if free < tonumber(ARGV[2]) then
    return 0
end
redis.call("HINCRBY", KEYS[1], ARGV[1], ARGV[3])
redis.call("HINCRBY", KEYS[2], ARGV[1], ARGV[2])
redis.call("HINCRBY", KEYS[3], ARGV[1], ARGV[2])
return 1
`

// KEYS: free, reserved, hold ARGV: from, to, amount, -amount, limit
const takeHoldScript = `
local held = tonumber(redis.call("HGET", KEYS[3], ARGV[1]) or "0")
if held < tonumber(ARGV[3]) then
    return 0
end
local free = tonumber(redis.call("HGET", KEYS[1], ARGV[2]) or "0")
if free + tonumber(ARGV[3]) > tonumber(ARGV[5]) then
    return -1
end
if held == tonumber(ARGV[3]) then
    redis.call("HDEL", KEYS[3], ARGV[1])
else
    redis.call("HINCRBY", KEYS[3], ARGV[1], ARGV[4])
end
redis.call("HINCRBY", KEYS[2], ARGV[1], ARGV[4])
redis.call("HINCRBY", KEYS[1], ARGV[2], ARGV[3])
return 1
`

// Ledger is a FundCustody shared by every instance using the same Redis.
// Free and reserved balances are hashes per currency keyed by account, and
// each auction keeps its own hold hash, so a spent hold cannot be spent
// again through another auction's reservation. Amounts above 2^53 are
// refused.
type Ledger[A, C comparable, B domain.Unsigned] struct {
	client *redis.Client
	prefix string
}

func NewLedger[A, C comparable, B domain.Unsigned](client *redis.Client, prefix string) *Ledger[A, C, B] {
	return &Ledger[A, C, B]{client: client, prefix: prefix}
}

func (l *Ledger[A, C, B]) freeKey(currency C) string {
	return fmt.Sprintf("%s:funds:free:%v", l.prefix, currency)
}

func (l *Ledger[A, C, B]) reservedKey(currency C) string {
	return fmt.Sprintf("%s:funds:reserved:%v", l.prefix, currency)
}

func (l *Ledger[A, C, B]) holdKey(auctionID uint64, currency C) string {
	return fmt.Sprintf("%s:funds:hold:%d:%v", l.prefix, auctionID, currency)
}

func checkAmount[B domain.Unsigned](amount B) (string, string, error) {
	if uint64(amount) > maxLedgerAmount {
		return "", "", fmt.Errorf("amount %v exceeds ledger limit %d", amount, maxLedgerAmount)
	}
	v := strconv.FormatUint(uint64(amount), 10)
	if amount == 0 {
		return v, v, nil
	}
	return v, "-" + v, nil
}

// Deposit credits the free balance.
func (l *Ledger[A, C, B]) Deposit(ctx context.Context, account A, currency C, amount B) error {
	v, _, err := checkAmount(amount)
	if err != nil {
		return err
	}
	res, err := l.client.Eval(ctx, depositScript, []string{l.freeKey(currency)},
		fmt.Sprint(account), v, maxLedgerAmount).Int()
	if err != nil {
		return fmt.Errorf("deposit %v for %v: %w", amount, account, err)
	}
	if res == ledgerOverflow {
		return fmt.Errorf("deposit of %v overflows balance", amount)
	}
	return nil
}

func (l *Ledger[A, C, B]) Reserve(ctx context.Context, auctionID uint64, account A, currency C, amount B) error {
	v, neg, err := checkAmount(amount)
	if err != nil {
		return err
	}
	keys := []string{l.freeKey(currency), l.reservedKey(currency), l.holdKey(auctionID, currency)}
	res, err := l.client.Eval(ctx, reserveScript, keys, fmt.Sprint(account), v, neg).Int()
	if err != nil {
		return fmt.Errorf("reserve %v for %v: %w", amount, account, err)
	}
	if res == ledgerInsufficient {
		return fmt.Errorf("reserve %v for %v: %w", amount, account, domain.ErrInsufficientBalance)
	}
	return nil
}

func (l *Ledger[A, C, B]) Release(ctx context.Context, auctionID uint64, account A, currency C, amount B) error {
	if err := l.takeHold(ctx, auctionID, account, account, currency, amount); err != nil {
		return fmt.Errorf("release %v for %v: %w", amount, account, err)
	}
	return nil
}

func (l *Ledger[A, C, B]) Transfer(ctx context.Context, auctionID uint64, from, to A, currency C, amount B) error {
	if err := l.takeHold(ctx, auctionID, from, to, currency, amount); err != nil {
		return fmt.Errorf("transfer %v from %v: %w", amount, from, err)
	}
	return nil
}

// takeHold moves amount out of the hold of from on auctionID into the free
// balance of to.
func (l *Ledger[A, C, B]) takeHold(ctx context.Context, auctionID uint64, from, to A, currency C, amount B) error {
	v, neg, err := checkAmount(amount)
	if err != nil {
		return err
	}
	keys := []string{l.freeKey(currency), l.reservedKey(currency), l.holdKey(auctionID, currency)}
	res, err := l.client.Eval(ctx, takeHoldScript, keys,
		fmt.Sprint(from), fmt.Sprint(to), v, neg, maxLedgerAmount).Int()
	if err != nil {
		return err
	}
	switch res {
	case ledgerInsufficient:
		return fmt.Errorf("auction %d: %w", auctionID, domain.ErrInsufficientReserved)
	case ledgerOverflow:
		return fmt.Errorf("balance of %v would overflow", to)
	}
	return nil
}

func (l *Ledger[A, C, B]) FreeBalance(ctx context.Context, account A, currency C) (B, error) {
	return l.field(ctx, l.freeKey(currency), account)
}

func (l *Ledger[A, C, B]) ReservedBalance(ctx context.Context, account A, currency C) (B, error) {
	return l.field(ctx, l.reservedKey(currency), account)
}

// Held returns the amount reserved by account on one auction.
func (l *Ledger[A, C, B]) Held(ctx context.Context, auctionID uint64, account A, currency C) (B, error) {
	return l.field(ctx, l.holdKey(auctionID, currency), account)
}

func (l *Ledger[A, C, B]) field(ctx context.Context, key string, account A) (B, error) {
	v, err := l.client.HGet(ctx, key, fmt.Sprint(account)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return B(v), err
}
