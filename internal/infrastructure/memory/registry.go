// Package memory holds in-process implementations of the auction
// collaborators. They are safe for concurrent use but keep nothing across
// restarts.
package memory

import (
	"context"
	"errors"
	"sync"

	"auction-core/internal/domain"
)

var errClosed = errors.New("registry closed")

// Registry keeps auction records in a map. Ids are handed out sequentially
// starting from zero; the maximum id is never allocated.
type Registry[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned] struct {
	mu       sync.RWMutex
	auctions map[ID]domain.AuctionInfo[A, C, B, T]
	nextID   ID
	closed   bool
}

func NewRegistry[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned]() *Registry[ID, A, C, B, T] {
	return &Registry[ID, A, C, B, T]{
		auctions: make(map[ID]domain.AuctionInfo[A, C, B, T]),
	}
}

// NewRegistryFrom starts allocating at next, for restoring a counter.
func NewRegistryFrom[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned](next ID) *Registry[ID, A, C, B, T] {
	r := NewRegistry[ID, A, C, B, T]()
	r.nextID = next
	return r
}

func (r *Registry[ID, A, C, B, T]) AuctionInfo(_ context.Context, id ID) (*domain.AuctionInfo[A, C, B, T], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errClosed
	}
	info, ok := r.auctions[id]
	if !ok {
		return nil, nil
	}
	out := info.Clone()
	return &out, nil
}

func (r *Registry[ID, A, C, B, T]) UpdateAuction(_ context.Context, id ID, info domain.AuctionInfo[A, C, B, T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errClosed
	}
	if _, ok := r.auctions[id]; !ok {
		return domain.ErrNotFound
	}
	r.auctions[id] = info.Clone()
	return nil
}

func (r *Registry[ID, A, C, B, T]) NewAuction(_ context.Context, start T, end *T, accepts, dispenses *C) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, errClosed
	}
	id := r.nextID
	if id == domain.MaxValue[ID]() {
		return 0, domain.ErrIdsExhausted
	}
	r.nextID = id + 1

	r.auctions[id] = domain.AuctionInfo[A, C, B, T]{
		Accepts:   accepts,
		Dispenses: dispenses,
		Start:     start,
		End:       end,
	}.Clone()
	return id, nil
}

func (r *Registry[ID, A, C, B, T]) RemoveAuction(_ context.Context, id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errClosed
	}
	delete(r.auctions, id)
	return nil
}

// Len returns the number of stored auctions.
func (r *Registry[ID, A, C, B, T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.auctions)
}

// Close drops every record; later calls fail.
func (r *Registry[ID, A, C, B, T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.auctions = nil
	return nil
}
