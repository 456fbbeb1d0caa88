// Package bootstrap wires the storage and messaging a process needs from its Config.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/migrations"
	"github.com/example/ec-storefront/internal/projection"
	"github.com/example/ec-storefront/internal/readmodel"
)

// Stores bundles the write and read sides selected by EVENT_STORE.
//
//   - memory: in-process event and read stores; events are projected as they
//     are appended.
//   - postgres: events and read models in PostgreSQL; events are published to Kafka.
//   - dynamo: events in DynamoDB (published through the table stream), read
//     models in PostgreSQL.
type Stores struct {
	Events    store.EventStoreInterface
	Read      store.ReadStoreInterface
	DB        *sql.DB
	Producer  *kafka.Producer
	Projector *projection.Projector

	closers []func() error
}

// OpenStores connects the configured backends and applies pending migrations.
func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	s := &Stores{}

	if cfg.EventStore == config.EventStoreMemory {
		readStore := store.NewReadStore()
		s.Read = readStore
		s.Projector = projection.NewProjector(readStore, logger)
		s.Events = store.NewMemoryEventStore(s.Projector)
		logger.Info("using in-memory stores")
		return s, nil
	}

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s.DB = db
	s.closers = append(s.closers, db.Close)

	if err := migrations.Up(db); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.Read = store.NewPostgresReadStore(db, readmodel.Factories)
	s.Projector = projection.NewProjector(s.Read, logger)

	switch cfg.EventStore {
	case config.EventStorePostgres:
		s.Producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		s.closers = append(s.closers, s.Producer.Close)
		s.Events = store.NewPostgresEventStore(db, s.Producer)
		logger.Info("using postgres event store", "kafka_brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)

	case config.EventStoreDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		s.Events = store.NewDynamoEventStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoEventsTable, cfg.DynamoSnapshotsTable)
		logger.Info("using dynamo event store", "table", cfg.DynamoEventsTable, "region", awsCfg.Region)

	default:
		s.Close()
		return nil, fmt.Errorf("unsupported event store %q", cfg.EventStore)
	}
	return s, nil
}

// ReadOnly connects just the PostgreSQL read side, for the projector and notifier processes.
func ReadOnly(ctx context.Context, cfg *config.Config) (*Stores, error) {
	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Stores{
		DB:      db,
		Read:    store.NewPostgresReadStore(db, readmodel.Factories),
		closers: []func() error{db.Close},
	}, nil
}

// Close releases connections in reverse order of opening.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
