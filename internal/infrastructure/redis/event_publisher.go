package redis

import (
	"context"
	"encoding/json"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

// EventPublisher broadcasts bid events as JSON on a pub/sub channel.
type EventPublisher struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client, channel string) *EventPublisher {
	return &EventPublisher{client: client, channel: channel}
}

func (r *EventPublisher) PublishBidEvent(ctx context.Context, event *domain.BidEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, r.channel, data).Err()
}
