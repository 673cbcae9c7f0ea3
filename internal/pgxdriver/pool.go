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

// Package pgxdriver builds tuned pgxpool pools from connection settings.
package pgxdriver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/heddle/pkg/observability"
)

// Config holds PostgreSQL connection settings.
// If DSN is set, it takes precedence over the individual connection fields.
type Config struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string // default: require
	Schema   string // search_path, default: public
	Pool     PoolConfig
}

// PoolConfig holds connection pool tuning. Zero values fall back to defaults.
type PoolConfig struct {
	MaxConnections             int32 // default: 25
	MinConnections             int32 // default: 5
	MaxIdleTimeSeconds         int64 // default: 300
	MaxLifetimeSeconds         int64 // default: 3600
	HealthCheckIntervalSeconds int64 // default: 30
}

// NewPool creates a pgxpool.Pool from cfg and verifies connectivity.
func NewPool(ctx context.Context, cfg Config, tracer observability.Tracer) (*pgxpool.Pool, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	ctx, span := tracer.StartSpan(ctx, "pgxdriver.new_pool")
	defer tracer.EndSpan(span)

	dsn := buildDSN(cfg)
	if dsn == "" {
		return nil, fmt.Errorf("postgres configuration requires either dsn or host+database")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}

	applyPoolConfig(poolCfg, cfg.Pool)

	// Set schema search path via AfterConnect hook
	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}

	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create postgres connection pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	span.SetAttribute("pool.max_conns", poolCfg.MaxConns)
	span.SetAttribute("pool.min_conns", poolCfg.MinConns)
	span.SetAttribute("pool.schema", schema)

	return pool, nil
}

// buildDSN constructs a PostgreSQL connection string from cfg.
// Values are single-quoted per libpq keyword/value format to handle special
// characters (spaces, @, =, etc.) safely. See:
// https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING
func buildDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	if cfg.Host == "" || cfg.Database == "" {
		return ""
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		dsnQuoteValue(cfg.Host), port, dsnQuoteValue(cfg.Database), dsnQuoteValue(sslMode))

	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", dsnQuoteValue(cfg.User))
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", dsnQuoteValue(cfg.Password))
	}

	return dsn
}

// dsnQuoteValue quotes a value for use in a libpq keyword/value connection string.
// Per the PostgreSQL documentation, values containing spaces, special characters,
// or that are empty must be enclosed in single quotes. Within quoted values,
// single quotes and backslashes must be escaped with a backslash.
// For simplicity and safety, we always quote all values.
func dsnQuoteValue(val string) string {
	// Escape backslashes and single quotes within the value.
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(val)
	return "'" + escaped + "'"
}

// applyPoolConfig maps pool settings to pgxpool.Config.
func applyPoolConfig(poolCfg *pgxpool.Config, pc PoolConfig) {
	if pc.MaxConnections > 0 {
		poolCfg.MaxConns = pc.MaxConnections
	} else {
		poolCfg.MaxConns = 25
	}

	if pc.MinConnections > 0 {
		poolCfg.MinConns = pc.MinConnections
	} else {
		poolCfg.MinConns = 5
	}

	if pc.MaxIdleTimeSeconds > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(pc.MaxIdleTimeSeconds) * time.Second
	} else {
		poolCfg.MaxConnIdleTime = 5 * time.Minute
	}

	if pc.MaxLifetimeSeconds > 0 {
		poolCfg.MaxConnLifetime = time.Duration(pc.MaxLifetimeSeconds) * time.Second
	} else {
		poolCfg.MaxConnLifetime = 1 * time.Hour
	}

	if pc.HealthCheckIntervalSeconds > 0 {
		poolCfg.HealthCheckPeriod = time.Duration(pc.HealthCheckIntervalSeconds) * time.Second
	} else {
		poolCfg.HealthCheckPeriod = 30 * time.Second
	}
}
