package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

type StateCache struct {
	client *redis.Client
	prefix string
}

func NewStateCache(client *redis.Client, prefix string) *StateCache {
	return &StateCache{client: client, prefix: prefix}
}

func (r *StateCache) statusKey(auctionID uint64) string {
	return fmt.Sprintf("%s:auction:%d:status", r.prefix, auctionID)
}

func (r *StateCache) SetAuctionStatus(ctx context.Context, auctionID uint64, status domain.AuctionStatus) error {
	return r.client.Set(ctx, r.statusKey(auctionID), int(status), 0).Err()
}

// GetAuctionStatus reports AuctionPending for ids never written.
func (r *StateCache) GetAuctionStatus(ctx context.Context, auctionID uint64) (domain.AuctionStatus, error) {
	result, err := r.client.Get(ctx, r.statusKey(auctionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AuctionPending, nil
		}
		return domain.AuctionPending, err
	}

	status, err := strconv.Atoi(result)
	if err != nil {
		return domain.AuctionPending, err
	}

	return domain.AuctionStatus(status), nil
}
