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

// Package session keeps at most MaxSessions live agents keyed by session id,
// with LRU eviction on capacity and a background sweeper that reclaims idle
// sessions.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/agent"
	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/types"
)

// Defaults applied by NewManager when Config leaves them zero.
const (
	DefaultMaxSessions    = 1000
	DefaultSessionTimeout = 30 * time.Minute
	DefaultSweepInterval  = 60 * time.Second
)

// Agent is the per-session surface the manager drives. pkg/agent.Agent
// satisfies it; tests substitute stubs.
type Agent interface {
	Run(ctx context.Context, task string) *types.TaskResult
	Cleanup() error
	State() *types.SessionState
}

var _ Agent = (*agent.Agent)(nil)

// Factory constructs the agent for a newly admitted session id.
type Factory func(sessionID string) (Agent, error)

// Config parameterizes a Manager.
type Config struct {
	// MaxSessions caps live agents. Defaults to DefaultMaxSessions.
	MaxSessions int

	// SessionTimeout is the idle age at which the sweeper reclaims a
	// session. Defaults to DefaultSessionTimeout.
	SessionTimeout time.Duration

	// SweepInterval is the sweeper period. Defaults to
	// DefaultSweepInterval; tests shorten it.
	SweepInterval time.Duration

	// Factory builds agents on demand. Required.
	Factory Factory

	Logger *zap.Logger
	Tracer observability.Tracer
}

type entry struct {
	agent        Agent
	lastActivity time.Time
}

// Manager owns the session table. All table access is serialized by mu; the
// LRU's recency order tracks Acquire calls, so the oldest entry is always
// the one idle longest.
type Manager struct {
	mu    sync.Mutex
	table *simplelru.LRU[string, *entry]

	factory       Factory
	maxSessions   int
	timeout       time.Duration
	sweepInterval time.Duration

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger *zap.Logger
	tracer observability.Tracer
}

// NewManager validates cfg, builds the table, and starts the sweeper.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Factory == nil {
		return nil, types.NewValidationError("session manager requires an agent factory")
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}

	table, err := simplelru.NewLRU[string, *entry](cfg.MaxSessions, nil)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		table:         table,
		factory:       cfg.Factory,
		maxSessions:   cfg.MaxSessions,
		timeout:       cfg.SessionTimeout,
		sweepInterval: cfg.SweepInterval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		logger:        cfg.Logger,
		tracer:        cfg.Tracer,
	}
	go m.sweep()
	return m, nil
}

// Acquire returns the agent for sessionID, constructing and admitting one
// when the id is new. Admission past capacity evicts the least recently
// acquired session; the newcomer is never the victim.
func (m *Manager) Acquire(sessionID string) (Agent, error) {
	if sessionID == "" {
		return nil, types.NewValidationError("session id is empty")
	}

	m.mu.Lock()
	if e, ok := m.table.Get(sessionID); ok {
		e.lastActivity = time.Now()
		a := e.agent
		m.mu.Unlock()
		return a, nil
	}
	m.mu.Unlock()

	// Construct outside the lock; factories wire planners and sandboxes
	// and may touch the filesystem.
	built, err := m.factory(sessionID)
	if err != nil {
		return nil, types.NewResourceExhaustedError("failed to construct agent for session %q", sessionID).WithCause(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have admitted the id while we were building.
	// The table copy wins; ours is discarded.
	if e, ok := m.table.Get(sessionID); ok {
		e.lastActivity = time.Now()
		m.cleanupAsync(sessionID, built)
		return e.agent, nil
	}

	for m.table.Len() >= m.maxSessions {
		m.evictOldestLocked()
	}
	m.table.Add(sessionID, &entry{agent: built, lastActivity: time.Now()})
	m.tracer.RecordMetric("session.admitted", 1.0, map[string]string{"session_id": sessionID})
	m.logger.Debug("session admitted", zap.String("session_id", sessionID))
	return built, nil
}

// Release cleans up the session and forgets it. Unknown ids are a no-op;
// cleanup errors are logged and swallowed.
func (m *Manager) Release(sessionID string) {
	m.mu.Lock()
	e, ok := m.table.Peek(sessionID)
	if ok {
		m.table.Remove(sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if err := e.agent.Cleanup(); err != nil {
		m.logger.Warn("session cleanup failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	m.logger.Debug("session released", zap.String("session_id", sessionID))
}

// ActiveSessions lists live session ids, least recently acquired first.
func (m *Manager) ActiveSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Keys()
}

// SessionCount reports the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Len()
}

// Shutdown stops the sweeper, waits for in-flight eviction cleanups, and
// releases every session. Idempotent.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		<-m.doneCh
		m.wg.Wait()

		m.mu.Lock()
		ids := m.table.Keys()
		entries := make([]*entry, 0, len(ids))
		for _, id := range ids {
			if e, ok := m.table.Peek(id); ok {
				entries = append(entries, e)
			}
		}
		m.table.Purge()
		m.mu.Unlock()

		for i, e := range entries {
			if err := e.agent.Cleanup(); err != nil {
				m.logger.Warn("session cleanup failed during shutdown",
					zap.String("session_id", ids[i]), zap.Error(err))
			}
		}
		m.logger.Info("session manager stopped", zap.Int("released", len(entries)))
	})
}

// evictOldestLocked removes the least recently acquired entry and schedules
// its cleanup off the table lock, so a victim mid-Run cannot stall Acquire.
func (m *Manager) evictOldestLocked() {
	id, e, ok := m.table.RemoveOldest()
	if !ok {
		return
	}
	m.logger.Info("evicting least recently used session", zap.String("session_id", id))
	m.tracer.RecordMetric("session.evicted", 1.0, map[string]string{"session_id": id})
	m.cleanupAsync(id, e.agent)
}

func (m *Manager) cleanupAsync(sessionID string, a Agent) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := a.Cleanup(); err != nil {
			m.logger.Warn("session cleanup failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

// sweep periodically reclaims sessions idle longer than the timeout.
func (m *Manager) sweep() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

// sweepOnce walks entries oldest-first and releases the expired ones,
// stopping at the first fresh entry. The table lock is never held across a
// Cleanup call.
func (m *Manager) sweepOnce() {
	cutoff := time.Now().Add(-m.timeout)
	for {
		m.mu.Lock()
		id, e, ok := m.table.GetOldest()
		if !ok || e.lastActivity.After(cutoff) {
			m.mu.Unlock()
			return
		}
		m.table.Remove(id)
		m.mu.Unlock()

		if err := e.agent.Cleanup(); err != nil {
			m.logger.Warn("session cleanup failed",
				zap.String("session_id", id), zap.Error(err))
		}
		m.logger.Info("session expired",
			zap.String("session_id", id),
			zap.Duration("idle", time.Since(e.lastActivity)))
	}
}
