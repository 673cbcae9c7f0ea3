// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package postgres implements the history store on PostgreSQL via pgx/v5.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/heddle/internal/pgxdriver"
	"github.com/teradata-labs/heddle/pkg/observability"
)

// Store persists history records in PostgreSQL. Safe for concurrent use;
// the pool handles connection management.
type Store struct {
	pool   *pgxpool.Pool
	tracer observability.Tracer
}

// NewStore connects to PostgreSQL using dsn and ensures the schema exists.
// A nil tracer defaults to no-op.
func NewStore(ctx context.Context, dsn string, tracer observability.Tracer) (*Store, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	pool, err := pgxdriver.NewPool(ctx, pgxdriver.Config{DSN: dsn}, tracer)
	if err != nil {
		return nil, err
	}

	store := &Store{pool: pool, tracer: tracer}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewStoreWithPool wraps an existing pool. The caller keeps ownership of the
// pool; Close becomes a no-op for it.
func NewStoreWithPool(ctx context.Context, pool *pgxpool.Pool, tracer observability.Tracer) (*Store, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	store := &Store{pool: pool, tracer: tracer}
	if err := store.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the kv table if it doesn't exist.
func (s *Store) initSchema(ctx context.Context) error {
	ctx, span := s.tracer.StartSpan(ctx, "pg_kv_store.init_schema")
	defer s.tracer.EndSpan(span)

	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		group_id   TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (group_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_kv_updated ON kv(updated_at);
	`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Get returns the stored value, or nil when the key is absent.
func (s *Store) Get(ctx context.Context, groupID, key string) (json.RawMessage, error) {
	ctx, span := s.tracer.StartSpan(ctx, "pg_kv_store.get")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("group_id", groupID)
	span.SetAttribute("key", key)

	var value []byte
	err := s.pool.QueryRow(ctx,
		"SELECT value FROM kv WHERE group_id = $1 AND key = $2", groupID, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetAttribute("found", "false")
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load value: %w", err)
	}

	span.SetAttribute("found", "true")
	return json.RawMessage(value), nil
}

// Set marshals value and upserts it under (groupID, key).
func (s *Store) Set(ctx context.Context, groupID, key string, value any) error {
	ctx, span := s.tracer.StartSpan(ctx, "pg_kv_store.set")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("group_id", groupID)
	span.SetAttribute("key", key)

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	query := `
		INSERT INTO kv (group_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, groupID, key, data, time.Now().UTC()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save value: %w", err)
	}

	span.SetAttribute("value_bytes", fmt.Sprintf("%d", len(data)))
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
