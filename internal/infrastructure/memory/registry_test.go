package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-core/internal/domain"
)

type (
	testRegistry = Registry[uint8, string, string, uint64, uint64]
	testInfo     = domain.AuctionInfo[string, string, uint64, uint64]
)

func ptr[V any](v V) *V { return &v }

func newTestRegistry() *testRegistry {
	return NewRegistry[uint8, string, string, uint64, uint64]()
}

func TestRegistry_NewAuctionThenInfo(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	id, err := r.NewAuction(ctx, 0, ptr(uint64(100)), ptr("CUR1"), ptr("CUR2"))
	require.NoError(t, err)

	info, err := r.AuctionInfo(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Nil(t, info.Bid)
	assert.Equal(t, uint64(0), info.Start)
	assert.Equal(t, uint64(100), *info.End)
	assert.Equal(t, "CUR1", *info.Accepts)
	assert.Equal(t, "CUR2", *info.Dispenses)
}

func TestRegistry_IdsAreDistinctUntilExhausted(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	seen := make(map[uint8]bool)
	for i := 0; i < 255; i++ {
		id, err := r.NewAuction(ctx, 0, nil, nil, nil)
		require.NoError(t, err)
		require.False(t, seen[id], "id %d handed out twice", id)
		seen[id] = true
	}

	_, err := r.NewAuction(ctx, 0, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrIdsExhausted)
	assert.Equal(t, 255, r.Len())
}

func TestRegistry_NewRegistryFrom(t *testing.T) {
	ctx := context.Background()
	r := NewRegistryFrom[uint8, string, string, uint64, uint64](254)

	id, err := r.NewAuction(ctx, 0, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(254), id)

	_, err = r.NewAuction(ctx, 0, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrIdsExhausted)
}

func TestRegistry_UpdateMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	err := r.UpdateAuction(ctx, 3, testInfo{Start: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	info, err := r.AuctionInfo(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestRegistry_UpdateReplacesRecord(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	id, err := r.NewAuction(ctx, 0, ptr(uint64(100)), nil, nil)
	require.NoError(t, err)

	updated := testInfo{
		Bid:   &domain.Bid[string, string, uint64]{Account: "alice", Currency: "CUR1", Amount: 50},
		Start: 0,
		End:   ptr(uint64(103)),
	}
	require.NoError(t, r.UpdateAuction(ctx, id, updated))

	// mutating the caller's copy must not leak into the store
	updated.Bid.Amount = 1

	info, err := r.AuctionInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), info.Bid.Amount)
	assert.Equal(t, uint64(103), *info.End)
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	id, err := r.NewAuction(ctx, 0, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, r.RemoveAuction(ctx, id))
	require.NoError(t, r.RemoveAuction(ctx, id))
	require.NoError(t, r.RemoveAuction(ctx, 42))

	info, err := r.AuctionInfo(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestRegistry_Close(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	require.NoError(t, r.Close())

	_, err := r.NewAuction(ctx, 0, nil, nil, nil)
	assert.Error(t, err)
	_, err = r.AuctionInfo(ctx, 0)
	assert.Error(t, err)
}
