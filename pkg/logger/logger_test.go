package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWithConfig_RejectsUnknownLevel(t *testing.T) {
	_, err := NewWithConfig("loud")
	require.Error(t, err)

	l, err := NewWithConfig("debug")
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestZapLogger_KeyValues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewFromZap(zap.New(core)).With("auction_id", 7)

	l.Info("Bid accepted", "account", "alice")
	l.Debug("Extension skipped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Bid accepted", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 7, fields["auction_id"])
	assert.Equal(t, "alice", fields["account"])
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Error("discarded", "error", "boom")
	l.With("k", "v").Warn("discarded")
}
