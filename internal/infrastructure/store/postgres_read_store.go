package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ModelFactory returns a fresh pointer to the read model type of a collection.
type ModelFactory func() any

// PostgresReadStore implements ReadStoreInterface on a single JSONB document
// table keyed by (collection, id).
type PostgresReadStore struct {
	db        *sql.DB
	factories map[string]ModelFactory
	timeout   time.Duration
}

// NewPostgresReadStore creates a read store that decodes rows with the given factories.
// Collections without a factory are rejected.
func NewPostgresReadStore(db *sql.DB, factories map[string]ModelFactory) *PostgresReadStore {
	return &PostgresReadStore{db: db, factories: factories, timeout: 5 * time.Second}
}

func (rs *PostgresReadStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), rs.timeout)
}

func (rs *PostgresReadStore) decode(collection string, raw []byte) (any, error) {
	factory, ok := rs.factories[collection]
	if !ok {
		return nil, fmt.Errorf("unknown read model collection %q", collection)
	}
	model := factory()
	if err := json.Unmarshal(raw, model); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return model, nil
}

func (rs *PostgresReadStore) Set(collection, id string, data any) error {
	if _, ok := rs.factories[collection]; !ok {
		return fmt.Errorf("unknown read model collection %q", collection)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	ctx, cancel := rs.ctx()
	defer cancel()
	return upsertReadModel(ctx, rs.db, collection, id, raw)
}

func (rs *PostgresReadStore) Get(collection, id string) (any, bool, error) {
	ctx, cancel := rs.ctx()
	defer cancel()

	var raw []byte
	err := rs.db.QueryRowContext(ctx,
		`SELECT data FROM read_models WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	model, err := rs.decode(collection, raw)
	if err != nil {
		return nil, false, err
	}
	return model, true, nil
}

func (rs *PostgresReadStore) GetAll(collection string) ([]any, error) {
	ctx, cancel := rs.ctx()
	defer cancel()

	rows, err := rs.db.QueryContext(ctx,
		`SELECT data FROM read_models WHERE collection = $1 ORDER BY updated_at DESC`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var items []any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		model, err := rs.decode(collection, raw)
		if err != nil {
			return nil, err
		}
		items = append(items, model)
	}
	return items, rows.Err()
}

func (rs *PostgresReadStore) Delete(collection, id string) error {
	ctx, cancel := rs.ctx()
	defer cancel()

	_, err := rs.db.ExecContext(ctx,
		`DELETE FROM read_models WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	return err
}

// Update locks the row for the duration of updateFn so concurrent projectors
// cannot interleave read-modify-write cycles.
func (rs *PostgresReadStore) Update(collection, id string, updateFn func(current any) any) (bool, error) {
	ctx, cancel := rs.ctx()
	defer cancel()

	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM read_models WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	current, err := rs.decode(collection, raw)
	if err != nil {
		return false, err
	}
	updated, err := json.Marshal(updateFn(current))
	if err != nil {
		return false, err
	}
	if err := upsertReadModel(ctx, tx, collection, id, updated); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertReadModel(ctx context.Context, db execer, collection, id string, raw []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO read_models (collection, id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, collection, id, raw)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}
