package memory

import (
	"context"
	"sync"

	"auction-core/internal/domain"
)

type StateCache struct {
	mu     sync.RWMutex
	status map[uint64]domain.AuctionStatus
}

func NewStateCache() *StateCache {
	return &StateCache{status: make(map[uint64]domain.AuctionStatus)}
}

func (c *StateCache) SetAuctionStatus(_ context.Context, auctionID uint64, status domain.AuctionStatus) error {
	c.mu.Lock()
	c.status[auctionID] = status
	c.mu.Unlock()
	return nil
}

// GetAuctionStatus reports unknown auctions as pending.
func (c *StateCache) GetAuctionStatus(_ context.Context, auctionID uint64) (domain.AuctionStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status[auctionID], nil
}
