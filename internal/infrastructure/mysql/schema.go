package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
        id BIGINT UNSIGNED NOT NULL PRIMARY KEY,
        bid JSON NULL,
        accepts JSON NULL,
        dispenses JSON NULL,
        start_block BIGINT UNSIGNED NOT NULL,
        end_block BIGINT UNSIGNED NULL,
        updated_at DATETIME(6) NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS auction_sequence (
        name VARCHAR(64) NOT NULL PRIMARY KEY,
        next_id BIGINT UNSIGNED NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS scheduled_jobs (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        auction_id BIGINT UNSIGNED NOT NULL,
        job_type VARCHAR(32) NOT NULL,
        run_at BIGINT UNSIGNED NOT NULL,
        status VARCHAR(16) NOT NULL,
        created_at DATETIME(6) NOT NULL,
        INDEX idx_jobs_due (status, run_at),
        INDEX idx_jobs_auction (auction_id)
    )`,
	`CREATE TABLE IF NOT EXISTS bid_events (
        id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
        auction_id BIGINT UNSIGNED NOT NULL,
        account VARCHAR(128) NOT NULL,
        currency VARCHAR(64) NOT NULL,
        amount BIGINT UNSIGNED NOT NULL,
        event_type VARCHAR(32) NOT NULL,
        block BIGINT UNSIGNED NOT NULL,
        timestamp DATETIME(6) NOT NULL,
        created_at DATETIME(6) NOT NULL,
        INDEX idx_bid_events_auction (auction_id, event_type)
    )`,
}

// EnsureSchema creates the tables used by the MySQL stores when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
