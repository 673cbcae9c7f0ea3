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

// Package storage persists execution history records grouped by namespace.
// Values are opaque JSON documents keyed by (group, key); the audit pipeline
// is the primary writer.
package storage

import (
	"context"
	"encoding/json"
)

// KVStore defines the backend-agnostic interface for grouped JSON storage.
// Implementations include in-memory (MemoryStore), SQLite (SQLiteStore),
// and PostgreSQL (postgres.Store). All operations must be safe for
// concurrent use.
type KVStore interface {
	// Get returns the stored value, or nil when the key is absent.
	Get(ctx context.Context, groupID, key string) (json.RawMessage, error)

	// Set marshals value to JSON and stores it under (groupID, key),
	// replacing any previous value.
	Set(ctx context.Context, groupID, key string, value any) error

	// Close closes the store.
	Close() error
}

// Compile-time checks: all backends implement KVStore.
var (
	_ KVStore = (*MemoryStore)(nil)
	_ KVStore = (*SQLiteStore)(nil)
)
