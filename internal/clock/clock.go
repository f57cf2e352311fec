// Package clock provides the block counters that drive auction timing.
package clock

import (
	"sync"
	"time"

	"auction-core/internal/domain"
)

// Blocks derives a block height from wall time: one block per interval
// since genesis. Heights never go backwards even if the wall clock does.
type Blocks[T domain.Unsigned] struct {
	genesis  time.Time
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last T
}

func NewBlocks[T domain.Unsigned](genesis time.Time, interval time.Duration) *Blocks[T] {
	return &Blocks[T]{genesis: genesis, interval: interval, now: time.Now}
}

func (b *Blocks[T]) Now() T {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := b.now().Sub(b.genesis)
	if elapsed > 0 && b.interval > 0 {
		if h := T(elapsed / b.interval); h > b.last {
			b.last = h
		}
	}
	return b.last
}

// Manual is a block counter moved explicitly, used for replays and tests.
type Manual[T domain.Unsigned] struct {
	mu  sync.Mutex
	now T
}

func NewManual[T domain.Unsigned](start T) *Manual[T] {
	return &Manual[T]{now: start}
}

func (m *Manual[T]) Now() T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual[T]) Set(now T) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Manual[T]) Advance(blocks T) T {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += blocks
	return m.now
}
