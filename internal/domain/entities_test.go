package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testInfo = AuctionInfo[AccountID, CurrencyID, Balance, BlockNumber]

func ptr[V any](v V) *V { return &v }

func TestMaxValue(t *testing.T) {
	assert.Equal(t, uint8(255), MaxValue[uint8]())
	assert.Equal(t, AuctionID(4294967295), MaxValue[AuctionID]())
}

func TestAuctionInfo_Clone(t *testing.T) {
	info := testInfo{
		Bid:       &Bid[AccountID, CurrencyID, Balance]{Account: "alice", Currency: "CUR1", Amount: 50},
		Accepts:   ptr(CurrencyID("CUR1")),
		Dispenses: ptr(CurrencyID("CUR2")),
		Start:     1,
		End:       ptr(BlockNumber(100)),
	}

	clone := info.Clone()
	require.Equal(t, info, clone)

	clone.Bid.Amount = 70
	*clone.End = 200
	*clone.Accepts = "OTHER"

	assert.Equal(t, Balance(50), info.Bid.Amount)
	assert.Equal(t, BlockNumber(100), *info.End)
	assert.Equal(t, CurrencyID("CUR1"), *info.Accepts)
}

func TestAuctionInfo_Status(t *testing.T) {
	info := testInfo{Start: 10, End: ptr(BlockNumber(20))}

	assert.Equal(t, AuctionPending, info.Status(9))
	assert.Equal(t, AuctionActive, info.Status(10))
	assert.Equal(t, AuctionActive, info.Status(19))
	assert.Equal(t, AuctionEnded, info.Status(20))

	open := testInfo{Start: 10}
	assert.Equal(t, AuctionActive, open.Status(1_000_000))
}

func TestChange(t *testing.T) {
	none := NoChange[*BlockNumber]()
	assert.True(t, none.IsNoChange())
	_, ok := none.Value()
	assert.False(t, ok)

	cleared := NewValue[*BlockNumber](nil)
	assert.False(t, cleared.IsNoChange())
	v, ok := cleared.Value()
	assert.True(t, ok)
	assert.Nil(t, v)

	set := NewValue(ptr(BlockNumber(103)))
	v, ok = set.Value()
	require.True(t, ok)
	assert.Equal(t, BlockNumber(103), *v)
}

func TestAuctionStatus_String(t *testing.T) {
	assert.Equal(t, "pending", AuctionPending.String())
	assert.Equal(t, "removed", AuctionRemoved.String())
	assert.Equal(t, "unknown", AuctionStatus(42).String())
}
