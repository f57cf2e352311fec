package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-core/internal/domain"
)

func newTestLedger(t *testing.T) *Ledger[string, string, uint64] {
	t.Helper()
	_, client := newRedis(t)
	return NewLedger[string, string, uint64](client, "test")
}

func balances(t *testing.T, l *Ledger[string, string, uint64], account string) (free, reserved uint64) {
	t.Helper()
	ctx := context.Background()
	free, err := l.FreeBalance(ctx, account, "CUR1")
	require.NoError(t, err)
	reserved, err = l.ReservedBalance(ctx, account, "CUR1")
	require.NoError(t, err)
	return free, reserved
}

func TestLedger_ReserveReleaseTransfer(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	require.NoError(t, l.Deposit(ctx, "alice", "CUR1", 100))

	require.NoError(t, l.Reserve(ctx, 1, "alice", "CUR1", 60))
	free, reserved := balances(t, l, "alice")
	assert.Equal(t, uint64(40), free)
	assert.Equal(t, uint64(60), reserved)

	err := l.Reserve(ctx, 1, "alice", "CUR1", 41)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	require.NoError(t, l.Release(ctx, 1, "alice", "CUR1", 10))
	_, reserved = balances(t, l, "alice")
	assert.Equal(t, uint64(50), reserved)

	require.NoError(t, l.Transfer(ctx, 1, "alice", "treasury", "CUR1", 50))
	free, reserved = balances(t, l, "alice")
	assert.Equal(t, uint64(50), free)
	assert.Equal(t, uint64(0), reserved)
	treasury, _ := balances(t, l, "treasury")
	assert.Equal(t, uint64(50), treasury)
}

func TestLedger_ReplayedTransferKeepsOtherHolds(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	require.NoError(t, l.Deposit(ctx, "W", "CUR1", 200))
	require.NoError(t, l.Reserve(ctx, 7, "W", "CUR1", 75))
	require.NoError(t, l.Reserve(ctx, 8, "W", "CUR1", 75))

	require.NoError(t, l.Transfer(ctx, 7, "W", "treasury", "CUR1", 75))
	err := l.Transfer(ctx, 7, "W", "treasury", "CUR1", 75)
	assert.ErrorIs(t, err, domain.ErrInsufficientReserved)

	treasury, _ := balances(t, l, "treasury")
	assert.Equal(t, uint64(75), treasury)
	held, err := l.Held(ctx, 8, "W", "CUR1")
	require.NoError(t, err)
	assert.Equal(t, uint64(75), held)

	require.NoError(t, l.Release(ctx, 8, "W", "CUR1", 75))
	free, reserved := balances(t, l, "W")
	assert.Equal(t, uint64(125), free)
	assert.Equal(t, uint64(0), reserved)
}

func TestLedger_SharedBetweenClients(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	first := NewLedger[string, string, uint64](client, "test")
	require.NoError(t, first.Deposit(ctx, "bob", "CUR1", 30))
	require.NoError(t, first.Reserve(ctx, 3, "bob", "CUR1", 30))

	other := newClient(t, mr)
	second := NewLedger[string, string, uint64](other, "test")
	require.NoError(t, second.Release(ctx, 3, "bob", "CUR1", 30))

	free, err := first.FreeBalance(ctx, "bob", "CUR1")
	require.NoError(t, err)
	assert.Equal(t, uint64(30), free)
	assert.Equal(t, "30", mr.HGet("test:funds:free:CUR1", "bob"))
}

func TestLedger_Limits(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	assert.Error(t, l.Deposit(ctx, "bob", "CUR1", maxLedgerAmount+1))
	require.NoError(t, l.Deposit(ctx, "bob", "CUR1", maxLedgerAmount))
	assert.Error(t, l.Deposit(ctx, "bob", "CUR1", 1))

	err := l.Release(ctx, 1, "bob", "CUR1", 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientReserved)
}
