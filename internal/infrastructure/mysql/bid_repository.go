package mysql

import (
	"context"
	"database/sql"
	"time"

	"auction-core/internal/domain"
)

const (
	insertBidEventQuery = `INSERT INTO bid_events (auction_id, account, currency, amount, event_type, block, timestamp, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	bidHistoryQuery = `SELECT auction_id, account, currency, amount, event_type, block, timestamp FROM bid_events
        WHERE auction_id = ? AND event_type = 'bid_accepted' ORDER BY id ASC`
)

type BidRepository struct {
	db *sql.DB
}

func NewBidRepository(db *sql.DB) *BidRepository {
	return &BidRepository{db: db}
}

func (r *BidRepository) SaveBidEvent(ctx context.Context, event *domain.BidEvent) error {
	_, err := r.db.ExecContext(ctx, insertBidEventQuery,
		event.AuctionID, event.Account, event.Currency, event.Amount,
		string(event.Type), event.Block, event.Timestamp, time.Now())
	return err
}

// GetBidHistory returns the accepted bids of an auction in insertion order.
func (r *BidRepository) GetBidHistory(ctx context.Context, auctionID uint64) ([]*domain.BidEvent, error) {
	rows, err := r.db.QueryContext(ctx, bidHistoryQuery, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.BidEvent
	for rows.Next() {
		var event domain.BidEvent
		var eventType string

		err := rows.Scan(&event.AuctionID, &event.Account, &event.Currency, &event.Amount,
			&eventType, &event.Block, &event.Timestamp)
		if err != nil {
			return nil, err
		}

		event.Type = domain.BidEventType(eventType)
		events = append(events, &event)
	}

	return events, rows.Err()
}
