package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.keys = append(p.keys, key)
	return p.err
}

func TestMemoryEventStore_AppendVersionsPerAggregate(t *testing.T) {
	pub := &recordingPublisher{}
	es := NewMemoryEventStore(pub)
	ctx := context.Background()

	e1, err := es.Append(ctx, "order-1", "Order", "OrderPlaced", 0, map[string]string{"a": "b"})
	require.NoError(t, err)
	e2, err := es.Append(ctx, "order-1", "Order", "OrderStatusChanged", 1, map[string]string{})
	require.NoError(t, err)
	e3, err := es.Append(ctx, "order-2", "Order", "OrderPlaced", 0, map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 1, e1.Version)
	assert.Equal(t, 2, e2.Version)
	assert.Equal(t, 1, e3.Version)
	assert.JSONEq(t, `{"a":"b"}`, string(e1.Data))
	assert.Equal(t, []string{"order-1", "order-1", "order-2"}, pub.keys)

	events, err := es.GetEvents(ctx, "order-1")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	all, err := es.GetAllEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryEventStore_PublishErrorIsReturned(t *testing.T) {
	es := NewMemoryEventStore(&recordingPublisher{err: errors.New("broker down")})

	_, err := es.Append(context.Background(), "cart-1", "Cart", "CartCleared", 0, struct{}{})

	assert.EqualError(t, err, "broker down")
}

func TestMemoryEventStore_EventsFromVersionAndSnapshots(t *testing.T) {
	es := NewMemoryEventStore(nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := es.Append(ctx, "wallet-u1", "Wallet", "CreditIssued", i, i)
		require.NoError(t, err)
	}

	events, err := es.GetEventsFromVersion(ctx, "wallet-u1", 3)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 4, events[0].Version)

	snap, err := es.GetSnapshot(ctx, "wallet-u1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, es.SaveSnapshot(ctx, &Snapshot{AggregateID: "wallet-u1", Version: 3, State: []byte(`{}`)}))
	snap, err = es.GetSnapshot(ctx, "wallet-u1")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Version)
}

func TestMemoryEventStore_RejectsStaleExpectedVersion(t *testing.T) {
	pub := &recordingPublisher{}
	es := NewMemoryEventStore(pub)
	ctx := context.Background()

	_, err := es.Append(ctx, "wallet-u1", "Wallet", "CreditAdded", 0, struct{}{})
	require.NoError(t, err)

	_, err = es.Append(ctx, "wallet-u1", "Wallet", "CreditDebited", 0, struct{}{})
	assert.ErrorIs(t, err, ErrConcurrentAppend)
	_, err = es.Append(ctx, "wallet-u1", "Wallet", "CreditDebited", 2, struct{}{})
	assert.ErrorIs(t, err, ErrConcurrentAppend)

	events, err := es.GetEvents(ctx, "wallet-u1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, []string{"wallet-u1"}, pub.keys)
}

func TestReadStore_CRUD(t *testing.T) {
	rs := NewReadStore()

	require.NoError(t, rs.Set("orders", "o1", "placed"))
	v, ok, err := rs.Get("orders", "o1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "placed", v)

	updated, err := rs.Update("orders", "o1", func(current any) any { return current.(string) + "!" })
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = rs.Update("orders", "missing", func(current any) any { return current })
	require.NoError(t, err)
	assert.False(t, updated)

	all, err := rs.GetAll("orders")
	require.NoError(t, err)
	assert.Equal(t, []any{"placed!"}, all)

	require.NoError(t, rs.Delete("orders", "o1"))
	_, ok, _ = rs.Get("orders", "o1")
	assert.False(t, ok)

	empty, err := rs.GetAll("nothing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
