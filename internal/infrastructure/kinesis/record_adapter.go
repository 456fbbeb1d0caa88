package kinesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

const insertEvent = "INSERT"

var errMissingFields = errors.New("stream image is missing required event fields")

// EventHandler receives the JSON encoding of a store.Event keyed by aggregate id.
// It has the same shape as the Kafka consumer handler so the projector serves both.
type EventHandler func(ctx context.Context, key, value []byte) error

// DecodeRecord unwraps a Kinesis record carrying a DynamoDB stream change.
// Non-INSERT changes decode to (nil, nil).
func DecodeRecord(record events.KinesisEventRecord) (*store.Event, error) {
	var change events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &change); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}
	return DecodeStreamRecord(change)
}

// DecodeStreamRecord converts a DynamoDB stream record read directly from the stream.
func DecodeStreamRecord(record events.DynamoDBEventRecord) (*store.Event, error) {
	if record.EventName != insertEvent {
		return nil, nil
	}
	return eventFromImage(record.Change.NewImage)
}

func eventFromImage(image map[string]events.DynamoDBAttributeValue) (*store.Event, error) {
	if image == nil {
		return nil, errors.New("DynamoDB image is nil")
	}

	str := func(name string) string {
		if v, ok := image[name]; ok && v.DataType() == events.DataTypeString {
			return v.String()
		}
		return ""
	}

	event := &store.Event{
		ID:            str("id"),
		AggregateID:   str("aggregate_id"),
		AggregateType: str("aggregate_type"),
		EventType:     str("event_type"),
		Data:          json.RawMessage(str("data")),
	}
	if event.ID == "" || event.AggregateID == "" || event.EventType == "" {
		return nil, fmt.Errorf("%w: id=%q aggregate_id=%q event_type=%q",
			errMissingFields, event.ID, event.AggregateID, event.EventType)
	}

	if raw := str("created_at"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		event.Timestamp = t
	}
	if v, ok := image["version"]; ok {
		version, err := v.Integer()
		if err != nil {
			return nil, fmt.Errorf("failed to parse version: %w", err)
		}
		event.Version = int(version)
	}
	return event, nil
}

// ProcessBatch feeds every INSERT record to handler and reports the records
// that failed so Lambda retries only those (partial batch response).
func ProcessBatch(ctx context.Context, batch events.KinesisEvent, handler EventHandler, logger *slog.Logger) events.KinesisEventResponse {
	var failures []events.KinesisBatchItemFailure
	fail := func(record events.KinesisEventRecord, err error) {
		logger.Error("record failed", "record", record.EventID, "error", err)
		failures = append(failures, events.KinesisBatchItemFailure{ItemIdentifier: record.Kinesis.SequenceNumber})
	}

	for _, record := range batch.Records {
		event, err := DecodeRecord(record)
		if err != nil {
			fail(record, err)
			continue
		}
		if event == nil {
			continue
		}

		payload, err := json.Marshal(event)
		if err != nil {
			fail(record, err)
			continue
		}
		if err := handler(ctx, []byte(event.AggregateID), payload); err != nil {
			fail(record, err)
			continue
		}
		logger.Debug("record processed", "event", event.ID, "type", event.EventType)
	}

	logger.Info("batch processed", "records", len(batch.Records), "failed", len(failures))
	return events.KinesisEventResponse{BatchItemFailures: failures}
}
