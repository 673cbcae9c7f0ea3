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
	"fmt"

	"github.com/teradata-labs/heddle/pkg/config"
	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/storage/postgres"
)

// Compile-time check: the postgres backend implements KVStore.
// (Declared here so the postgres package does not import its parent.)
var _ KVStore = (*postgres.Store)(nil)

// Open creates the KVStore selected by cfg.Backend.
// An empty backend defaults to memory.
func Open(ctx context.Context, cfg config.StorageConfig, tracer observability.Tracer) (KVStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires storage.path")
		}
		return NewSQLiteStore(cfg.Path, tracer)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires storage.dsn")
		}
		return postgres.NewStore(ctx, cfg.DSN, tracer)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q (must be memory, sqlite, or postgres)", cfg.Backend)
	}
}
