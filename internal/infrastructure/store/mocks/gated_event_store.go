package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// GatedEventStore holds the first n aggregate loads until all n have read,
// so n concurrent commands all decide on the same aggregate version.
type GatedEventStore struct {
	store.EventStoreInterface

	mu      sync.Mutex
	pending int
	gate    sync.WaitGroup
}

func NewGatedEventStore(inner store.EventStoreInterface, n int) *GatedEventStore {
	g := &GatedEventStore{EventStoreInterface: inner, pending: n}
	g.gate.Add(n)
	return g
}

func (g *GatedEventStore) GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) ([]store.Event, error) {
	events, err := g.EventStoreInterface.GetEventsFromVersion(ctx, aggregateID, fromVersion)

	g.mu.Lock()
	held := g.pending > 0
	if held {
		g.pending--
	}
	g.mu.Unlock()

	if held {
		g.gate.Done()
		g.gate.Wait()
	}
	return events, err
}
