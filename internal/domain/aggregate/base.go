package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// Aggregate defines the interface for event-sourced aggregates
type Aggregate interface {
	GetID() string
	GetVersion() int
	ApplyEvent(store.Event) error
}

// Base carries the identity and version shared by every aggregate.
type Base struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

func (b *Base) GetID() string   { return b.ID }
func (b *Base) GetVersion() int { return b.Version }

// Advance records the version of an applied event.
func (b *Base) Advance(e store.Event) { b.Version = e.Version }

// Load rebuilds an aggregate from its latest snapshot plus the events after it.
// found is false when the aggregate has neither a snapshot nor events.
func Load[T Aggregate](ctx context.Context, es store.EventStoreInterface, id string, newAggregate func() T) (agg T, found bool, err error) {
	agg = newAggregate()

	snapshot, err := es.GetSnapshot(ctx, id)
	if err != nil {
		return agg, false, fmt.Errorf("failed to get snapshot: %w", err)
	}

	fromVersion := 0
	if snapshot != nil {
		if err := snapshot.Restore(agg); err != nil {
			return agg, false, err
		}
		fromVersion = snapshot.Version
	}

	events, err := es.GetEventsFromVersion(ctx, id, fromVersion)
	if err != nil {
		return agg, false, fmt.Errorf("failed to load events: %w", err)
	}
	for _, event := range events {
		if err := agg.ApplyEvent(event); err != nil {
			return agg, false, fmt.Errorf("failed to apply event: %w", err)
		}
	}

	return agg, snapshot != nil || len(events) > 0, nil
}

// Record appends an event at the version agg was loaded at, applies it and
// snapshots on threshold. A concurrent writer surfaces as store.ErrConcurrentAppend.
// Snapshot failures are logged, never returned: the event is already durable.
func Record(ctx context.Context, es store.EventStoreInterface, agg Aggregate, aggregateType, eventType string, data any) error {
	event, err := es.Append(ctx, agg.GetID(), aggregateType, eventType, agg.GetVersion(), data)
	if err != nil {
		return err
	}
	if err := agg.ApplyEvent(*event); err != nil {
		return fmt.Errorf("failed to apply %s: %w", eventType, err)
	}
	if err := MaybeSnapshot(ctx, es, agg, aggregateType); err != nil {
		slog.WarnContext(ctx, "snapshot failed",
			"component", "aggregate", "aggregate_id", agg.GetID(), "error", err)
	}
	return nil
}

// MaybeSnapshot saves a snapshot every store.SnapshotThreshold versions
func MaybeSnapshot(ctx context.Context, es store.EventStoreInterface, agg Aggregate, aggregateType string) error {
	if !store.DueForSnapshot(agg.GetVersion()) {
		return nil
	}
	snapshot, err := store.NewSnapshot(agg.GetID(), aggregateType, agg.GetVersion(), agg)
	if err != nil {
		return err
	}
	return es.SaveSnapshot(ctx, snapshot)
}

// conflictRetries bounds how often a command reloads after losing a race.
const conflictRetries = 5

// RetryOnConflict runs op again while it fails with store.ErrConcurrentAppend.
// op must reload the aggregate and re-check its rules on every attempt; any
// other error is returned immediately.
func RetryOnConflict(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 100 * time.Millisecond

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !errors.Is(err, store.ErrConcurrentAppend) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, conflictRetries), ctx))
}
