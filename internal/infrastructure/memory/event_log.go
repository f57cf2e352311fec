package memory

import (
	"context"
	"sync"

	"auction-core/internal/domain"
)

// EventLog records bid events in memory. It serves both as publisher and
// as bid history.
type EventLog struct {
	mu     sync.RWMutex
	events []domain.BidEvent
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) PublishBidEvent(ctx context.Context, event *domain.BidEvent) error {
	return l.SaveBidEvent(ctx, event)
}

func (l *EventLog) SaveBidEvent(_ context.Context, event *domain.BidEvent) error {
	l.mu.Lock()
	l.events = append(l.events, *event)
	l.mu.Unlock()
	return nil
}

// GetBidHistory returns the accepted bids of an auction in arrival order.
func (l *EventLog) GetBidHistory(_ context.Context, auctionID uint64) ([]*domain.BidEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*domain.BidEvent
	for i := range l.events {
		if l.events[i].AuctionID == auctionID && l.events[i].Type == domain.BidAccepted {
			ev := l.events[i]
			out = append(out, &ev)
		}
	}
	return out, nil
}

// Events returns every recorded event.
func (l *EventLog) Events() []domain.BidEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.BidEvent(nil), l.events...)
}
