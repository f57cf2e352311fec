package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

// Lua numbers are doubles, so the counter never goes past 2^53.
const maxLuaInteger = uint64(1) << 53

// Reserves the current counter value as id unless it reached ARGV[1].
const allocateIDScript = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
    return -1
end
redis.call('INCR', KEYS[1])
return current
`

// Registry stores one JSON document per auction. Ids come from a counter
// key that is checked and incremented atomically.
type Registry[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned] struct {
	client *redis.Client
	prefix string
}

func NewRegistry[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned](client *redis.Client, prefix string) *Registry[ID, A, C, B, T] {
	return &Registry[ID, A, C, B, T]{client: client, prefix: prefix}
}

func (r *Registry[ID, A, C, B, T]) auctionKey(id ID) string {
	return fmt.Sprintf("%s:auction:%d", r.prefix, uint64(id))
}

func (r *Registry[ID, A, C, B, T]) counterKey() string {
	return r.prefix + ":next_id"
}

func (r *Registry[ID, A, C, B, T]) AuctionInfo(ctx context.Context, id ID) (*domain.AuctionInfo[A, C, B, T], error) {
	data, err := r.client.Get(ctx, r.auctionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var info domain.AuctionInfo[A, C, B, T]
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode auction %d: %w", uint64(id), err)
	}
	return &info, nil
}

func (r *Registry[ID, A, C, B, T]) UpdateAuction(ctx context.Context, id ID, info domain.AuctionInfo[A, C, B, T]) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	updated, err := r.client.SetXX(ctx, r.auctionKey(id), data, 0).Result()
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Registry[ID, A, C, B, T]) NewAuction(ctx context.Context, start T, end *T, accepts, dispenses *C) (ID, error) {
	data, err := json.Marshal(domain.AuctionInfo[A, C, B, T]{
		Accepts:   accepts,
		Dispenses: dispenses,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return 0, err
	}

	limit := uint64(domain.MaxValue[ID]())
	if limit > maxLuaInteger {
		limit = maxLuaInteger
	}

	next, err := r.client.Eval(ctx, allocateIDScript, []string{r.counterKey()},
		strconv.FormatUint(limit, 10)).Int64()
	if err != nil {
		return 0, err
	}
	if next < 0 {
		return 0, domain.ErrIdsExhausted
	}

	id := ID(next)
	if err := r.client.Set(ctx, r.auctionKey(id), data, 0).Err(); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Registry[ID, A, C, B, T]) RemoveAuction(ctx context.Context, id ID) error {
	return r.client.Del(ctx, r.auctionKey(id)).Err()
}
