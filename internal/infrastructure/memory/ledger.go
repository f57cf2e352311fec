package memory

import (
	"context"
	"fmt"
	"sync"

	"auction-core/internal/domain"
)

type balanceKey[A, C comparable] struct {
	account  A
	currency C
}

type holdKey[A, C comparable] struct {
	auctionID uint64
	account   A
	currency  C
}

type balance[B domain.Unsigned] struct {
	free     B
	reserved B
}

// Ledger is an in-process FundCustody with free and reserved balances per
// account and currency. Reserved funds are tracked per auction: Release and
// Transfer only draw on the hold of the auction they name, so a replayed
// settlement fails once that hold is spent.
type Ledger[A, C comparable, B domain.Unsigned] struct {
	mu       sync.Mutex
	balances map[balanceKey[A, C]]*balance[B]
	holds    map[holdKey[A, C]]B
}

func NewLedger[A, C comparable, B domain.Unsigned]() *Ledger[A, C, B] {
	return &Ledger[A, C, B]{
		balances: make(map[balanceKey[A, C]]*balance[B]),
		holds:    make(map[holdKey[A, C]]B),
	}
}

func (l *Ledger[A, C, B]) entry(account A, currency C) *balance[B] {
	k := balanceKey[A, C]{account, currency}
	b, ok := l.balances[k]
	if !ok {
		b = &balance[B]{}
		l.balances[k] = b
	}
	return b
}

// Deposit credits the free balance.
func (l *Ledger[A, C, B]) Deposit(_ context.Context, account A, currency C, amount B) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.entry(account, currency)
	if b.free+amount < b.free {
		return fmt.Errorf("deposit of %v overflows balance", amount)
	}
	b.free += amount
	return nil
}

func (l *Ledger[A, C, B]) FreeBalance(account A, currency C) B {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entry(account, currency).free
}

// ReservedBalance is the sum of the account's holds across auctions.
func (l *Ledger[A, C, B]) ReservedBalance(account A, currency C) B {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entry(account, currency).reserved
}

// Held returns the amount reserved by account on one auction.
func (l *Ledger[A, C, B]) Held(auctionID uint64, account A, currency C) B {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holds[holdKey[A, C]{auctionID, account, currency}]
}

func (l *Ledger[A, C, B]) Reserve(_ context.Context, auctionID uint64, account A, currency C, amount B) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.entry(account, currency)
	if b.free < amount {
		return fmt.Errorf("reserve %v for %v: %w", amount, account, domain.ErrInsufficientBalance)
	}
	b.free -= amount
	b.reserved += amount
	l.holds[holdKey[A, C]{auctionID, account, currency}] += amount
	return nil
}

func (l *Ledger[A, C, B]) Release(_ context.Context, auctionID uint64, account A, currency C, amount B) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.take(auctionID, account, currency, amount); err != nil {
		return fmt.Errorf("release %v for %v: %w", amount, account, err)
	}
	l.entry(account, currency).free += amount
	return nil
}

func (l *Ledger[A, C, B]) Transfer(_ context.Context, auctionID uint64, from, to A, currency C, amount B) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dst := l.entry(to, currency)
	if dst.free+amount < dst.free {
		return fmt.Errorf("transfer of %v overflows balance of %v", amount, to)
	}
	if err := l.take(auctionID, from, currency, amount); err != nil {
		return fmt.Errorf("transfer %v from %v: %w", amount, from, err)
	}
	dst.free += amount
	return nil
}

// take removes amount from the hold of account on auctionID. Caller holds mu.
func (l *Ledger[A, C, B]) take(auctionID uint64, account A, currency C, amount B) error {
	k := holdKey[A, C]{auctionID, account, currency}
	held := l.holds[k]
	if held < amount {
		return fmt.Errorf("auction %d holds %v: %w", auctionID, held, domain.ErrInsufficientReserved)
	}
	if held == amount {
		delete(l.holds, k)
	} else {
		l.holds[k] = held - amount
	}
	l.entry(account, currency).reserved -= amount
	return nil
}
