package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDueForSnapshot(t *testing.T) {
	tests := []struct {
		version int
		want    bool
	}{
		{0, false},
		{1, false},
		{SnapshotThreshold - 1, false},
		{SnapshotThreshold, true},
		{SnapshotThreshold + 1, false},
		{2 * SnapshotThreshold, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DueForSnapshot(tt.version), "version %d", tt.version)
	}
}

func TestSnapshot_RoundTripsState(t *testing.T) {
	type wallet struct {
		ID      string `json:"id"`
		Version int    `json:"version"`
		Balance string `json:"balance"`
	}

	snap, err := NewSnapshot("wallet-u1", "Wallet", 10, wallet{ID: "wallet-u1", Version: 10, Balance: "42.50"})
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Version)
	assert.False(t, snap.CreatedAt.IsZero())

	var got wallet
	require.NoError(t, snap.Restore(&got))
	assert.Equal(t, "42.50", got.Balance)
}

func TestSnapshot_Errors(t *testing.T) {
	_, err := NewSnapshot("x", "Order", 10, make(chan int))
	assert.Error(t, err)

	bad := &Snapshot{AggregateID: "x", AggregateType: "Order", State: []byte("{")}
	assert.ErrorContains(t, bad.Restore(&struct{}{}), "Order x snapshot")
}
