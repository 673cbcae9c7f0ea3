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

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/teradata-labs/heddle/pkg/observability"

	_ "github.com/teradata-labs/heddle/internal/sqlitedriver"
)

// SQLiteStore persists history records in a local SQLite database.
// All database operations are traced for observability.
type SQLiteStore struct {
	db     *sql.DB
	tracer observability.Tracer
}

// NewSQLiteStore opens (creating if necessary) the database at dbPath.
// A nil tracer defaults to no-op.
func NewSQLiteStore(dbPath string, tracer observability.Tracer) (*SQLiteStore, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db, tracer: tracer}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	ctx, span := s.tracer.StartSpan(context.Background(), "kv_store.init_schema")
	defer s.tracer.EndSpan(span)

	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		group_id   TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (group_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_kv_updated ON kv(updated_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Get returns the stored value, or nil when the key is absent.
func (s *SQLiteStore) Get(ctx context.Context, groupID, key string) (json.RawMessage, error) {
	ctx, span := s.tracer.StartSpan(ctx, "kv_store.get")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("group_id", groupID)
	span.SetAttribute("key", key)

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE group_id = ? AND key = ?", groupID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
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
func (s *SQLiteStore) Set(ctx context.Context, groupID, key string, value any) error {
	ctx, span := s.tracer.StartSpan(ctx, "kv_store.set")
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
		VALUES (?, ?, ?, ?)
		ON CONFLICT(group_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, groupID, key, string(data), time.Now().Unix()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save value: %w", err)
	}

	span.SetAttribute("value_bytes", fmt.Sprintf("%d", len(data)))
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
