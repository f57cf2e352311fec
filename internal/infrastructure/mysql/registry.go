package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auction-core/internal/domain"
)

const (
	selectAuctionQuery = `SELECT bid, accepts, dispenses, start_block, end_block FROM auctions WHERE id = ?`
	lockAuctionQuery   = `SELECT id FROM auctions WHERE id = ? FOR UPDATE`
	updateAuctionQuery = `UPDATE auctions SET bid = ?, accepts = ?, dispenses = ?, start_block = ?, end_block = ?, updated_at = ? WHERE id = ?`
	insertAuctionQuery = `INSERT INTO auctions (id, bid, accepts, dispenses, start_block, end_block, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	deleteAuctionQuery = `DELETE FROM auctions WHERE id = ?`

	lockSequenceQuery   = `SELECT next_id FROM auction_sequence WHERE name = ? FOR UPDATE`
	upsertSequenceQuery = `INSERT INTO auction_sequence (name, next_id) VALUES (?, ?) ON DUPLICATE KEY UPDATE next_id = VALUES(next_id)`
)

const DefaultSequence = "auctions"

// Registry keeps auction records in the auctions table. Optional fields are
// nullable JSON columns so any comparable account or currency type fits.
type Registry[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned] struct {
	db       *sql.DB
	sequence string
}

func NewRegistry[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned](db *sql.DB) *Registry[ID, A, C, B, T] {
	return &Registry[ID, A, C, B, T]{db: db, sequence: DefaultSequence}
}

func (r *Registry[ID, A, C, B, T]) AuctionInfo(ctx context.Context, id ID) (*domain.AuctionInfo[A, C, B, T], error) {
	var (
		bid, accepts, dispenses sql.NullString
		start                   uint64
		end                     *uint64
	)

	err := r.db.QueryRowContext(ctx, selectAuctionQuery, uint64(id)).Scan(&bid, &accepts, &dispenses, &start, &end)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	info := &domain.AuctionInfo[A, C, B, T]{Start: T(start)}
	if end != nil {
		e := T(*end)
		info.End = &e
	}
	if err := decodeNullable(bid, &info.Bid); err != nil {
		return nil, fmt.Errorf("decode bid of auction %d: %w", uint64(id), err)
	}
	if err := decodeNullable(accepts, &info.Accepts); err != nil {
		return nil, fmt.Errorf("decode accepts of auction %d: %w", uint64(id), err)
	}
	if err := decodeNullable(dispenses, &info.Dispenses); err != nil {
		return nil, fmt.Errorf("decode dispenses of auction %d: %w", uint64(id), err)
	}
	return info, nil
}

func (r *Registry[ID, A, C, B, T]) UpdateAuction(ctx context.Context, id ID, info domain.AuctionInfo[A, C, B, T]) error {
	args, err := r.columns(info)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var found uint64
	if err := tx.QueryRowContext(ctx, lockAuctionQuery, uint64(id)).Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	args = append(args, time.Now(), uint64(id))
	if _, err := tx.ExecContext(ctx, updateAuctionQuery, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Registry[ID, A, C, B, T]) NewAuction(ctx context.Context, start T, end *T, accepts, dispenses *C) (ID, error) {
	args, err := r.columns(domain.AuctionInfo[A, C, B, T]{
		Accepts:   accepts,
		Dispenses: dispenses,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next uint64
	err = tx.QueryRowContext(ctx, lockSequenceQuery, r.sequence).Scan(&next)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if next >= uint64(domain.MaxValue[ID]()) {
		return 0, domain.ErrIdsExhausted
	}

	row := append([]any{next}, args...)
	row = append(row, time.Now())
	if _, err := tx.ExecContext(ctx, insertAuctionQuery, row...); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, upsertSequenceQuery, r.sequence, next+1); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return ID(next), nil
}

func (r *Registry[ID, A, C, B, T]) RemoveAuction(ctx context.Context, id ID) error {
	_, err := r.db.ExecContext(ctx, deleteAuctionQuery, uint64(id))
	return err
}

// columns returns bid, accepts, dispenses, start_block and end_block.
func (r *Registry[ID, A, C, B, T]) columns(info domain.AuctionInfo[A, C, B, T]) ([]any, error) {
	bid, err := encodeNullable(info.Bid)
	if err != nil {
		return nil, err
	}
	accepts, err := encodeNullable(info.Accepts)
	if err != nil {
		return nil, err
	}
	dispenses, err := encodeNullable(info.Dispenses)
	if err != nil {
		return nil, err
	}

	var end any
	if info.End != nil {
		end = uint64(*info.End)
	}
	return []any{bid, accepts, dispenses, uint64(info.Start), end}, nil
}

func encodeNullable[V any](v *V) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeNullable[V any](col sql.NullString, dst **V) error {
	if !col.Valid {
		*dst = nil
		return nil
	}
	var v V
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}
