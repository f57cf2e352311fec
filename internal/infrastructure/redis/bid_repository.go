package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

// BidRepository appends bid events as JSON to a list per auction.
type BidRepository struct {
	client *redis.Client
	prefix string
}

func NewBidRepository(client *redis.Client, prefix string) *BidRepository {
	return &BidRepository{client: client, prefix: prefix}
}

func (r *BidRepository) key(auctionID uint64) string {
	return fmt.Sprintf("%s:bids:%d", r.prefix, auctionID)
}

func (r *BidRepository) SaveBidEvent(ctx context.Context, event *domain.BidEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, r.key(event.AuctionID), data).Err()
}

// GetBidHistory returns the accepted bids of an auction in arrival order.
func (r *BidRepository) GetBidHistory(ctx context.Context, auctionID uint64) ([]*domain.BidEvent, error) {
	raw, err := r.client.LRange(ctx, r.key(auctionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var events []*domain.BidEvent
	for _, item := range raw {
		var event domain.BidEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("decode bid event of auction %d: %w", auctionID, err)
		}
		if event.Type == domain.BidAccepted {
			events = append(events, &event)
		}
	}
	return events, nil
}
