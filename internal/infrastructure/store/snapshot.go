package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotThreshold is how many versions pass between aggregate snapshots.
const SnapshotThreshold = 10

// Snapshot is the serialized state of an aggregate as of Version. Loading
// replays only the events recorded after it.
type Snapshot struct {
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	State         json.RawMessage `json:"state"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DueForSnapshot reports whether version lands on a snapshot boundary.
func DueForSnapshot(version int) bool {
	return version > 0 && version%SnapshotThreshold == 0
}

// NewSnapshot captures state at version.
func NewSnapshot(aggregateID, aggregateType string, version int, state any) (*Snapshot, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal %s %s state: %w", aggregateType, aggregateID, err)
	}
	return &Snapshot{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       version,
		State:         raw,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Restore decodes the captured state into dst.
func (s *Snapshot) Restore(dst any) error {
	if err := json.Unmarshal(s.State, dst); err != nil {
		return fmt.Errorf("unmarshal %s %s snapshot: %w", s.AggregateType, s.AggregateID, err)
	}
	return nil
}
