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
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/heddle/pkg/types"
)

type stubAgent struct {
	id       string
	cleanups atomic.Int32
}

func (s *stubAgent) Run(_ context.Context, task string) *types.TaskResult {
	return &types.TaskResult{Success: true, Output: "ran: " + task, SessionID: s.id}
}

func (s *stubAgent) Cleanup() error {
	s.cleanups.Add(1)
	return nil
}

func (s *stubAgent) State() *types.SessionState {
	return types.NewSessionState(s.id)
}

// stubFactory builds stubAgents and remembers them by id.
type stubFactory struct {
	mu     sync.Mutex
	agents map[string]*stubAgent
	made   int
	err    error
}

func newStubFactory() *stubFactory {
	return &stubFactory{agents: make(map[string]*stubAgent)}
}

func (f *stubFactory) new(sessionID string) (Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.made++
	a := &stubAgent{id: sessionID}
	f.agents[sessionID] = a
	return a, nil
}

func (f *stubFactory) agent(sessionID string) *stubAgent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.agents[sessionID]
}

func (f *stubFactory) constructed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.made
}

func newTestManager(t *testing.T, factory *stubFactory, cfg Config) *Manager {
	t.Helper()
	cfg.Factory = factory.new
	m, err := NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)
	return m
}

func TestAcquireConstructsOnce(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory, Config{})

	first, err := m.Acquire("alpha")
	require.NoError(t, err)
	second, err := m.Acquire("alpha")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, factory.constructed())
	assert.Equal(t, 1, m.SessionCount())
}

func TestAcquireEvictsLeastRecentlyUsed(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory, Config{MaxSessions: 2})

	_, err := m.Acquire("alpha")
	require.NoError(t, err)
	_, err = m.Acquire("beta")
	require.NoError(t, err)

	// Touch alpha so beta becomes the eviction candidate.
	_, err = m.Acquire("alpha")
	require.NoError(t, err)

	_, err = m.Acquire("gamma")
	require.NoError(t, err)

	assert.Equal(t, 2, m.SessionCount())
	assert.ElementsMatch(t, []string{"alpha", "gamma"}, m.ActiveSessions())

	// Eviction cleanup is asynchronous.
	require.Eventually(t, func() bool {
		return factory.agent("beta").cleanups.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAcquireNeverEvictsNewcomer(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory, Config{MaxSessions: 1})

	_, err := m.Acquire("old")
	require.NoError(t, err)
	_, err = m.Acquire("new")
	require.NoError(t, err)

	assert.Equal(t, []string{"new"}, m.ActiveSessions())
	require.Eventually(t, func() bool {
		return factory.agent("old").cleanups.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAcquireFactoryFailure(t *testing.T) {
	factory := newStubFactory()
	factory.err = errors.New("backend unavailable")
	m := newTestManager(t, factory, Config{})

	_, err := m.Acquire("alpha")
	require.Error(t, err)
	assert.Equal(t, types.KindResourceExhausted, types.KindOf(err))
	assert.Equal(t, 0, m.SessionCount())
}

func TestAcquireEmptyID(t *testing.T) {
	m := newTestManager(t, newStubFactory(), Config{})

	_, err := m.Acquire("")
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestReleaseIsSynchronousAndIdempotent(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory, Config{})

	_, err := m.Acquire("alpha")
	require.NoError(t, err)

	m.Release("alpha")
	assert.Equal(t, int32(1), factory.agent("alpha").cleanups.Load(),
		"release cleans up before returning")
	assert.Equal(t, 0, m.SessionCount())

	m.Release("alpha")
	m.Release("never-existed")
	assert.Equal(t, int32(1), factory.agent("alpha").cleanups.Load())
}

func TestConcurrentAcquireSameID(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory, Config{})

	const callers = 8
	agents := make([]Agent, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := m.Acquire("shared")
			assert.NoError(t, err)
			agents[i] = a
		}(i)
	}
	wg.Wait()

	// Every caller observes the single admitted agent.
	assert.Equal(t, 1, m.SessionCount())
	for i := 1; i < callers; i++ {
		assert.Same(t, agents[0], agents[i])
	}

	// Construction races lose gracefully: extras are cleaned up.
	if extra := factory.constructed() - 1; extra > 0 {
		winner := agents[0].(*stubAgent)
		require.Eventually(t, func() bool {
			total := int32(0)
			factory.mu.Lock()
			for _, a := range factory.agents {
				if a != winner {
					total += a.cleanups.Load()
				}
			}
			factory.mu.Unlock()
			return int(total) == extra
		}, 2*time.Second, 10*time.Millisecond)
	}
}

func TestSweeperReclaimsIdleSessions(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory, Config{
		SessionTimeout: 50 * time.Millisecond,
		SweepInterval:  20 * time.Millisecond,
	})

	_, err := m.Acquire("idle")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return m.SessionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), factory.agent("idle").cleanups.Load())
}

func TestSweeperKeepsFreshSessions(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory, Config{
		SessionTimeout: 150 * time.Millisecond,
		SweepInterval:  20 * time.Millisecond,
	})

	_, err := m.Acquire("idle")
	require.NoError(t, err)
	_, err = m.Acquire("busy")
	require.NoError(t, err)

	// Keep one session warm until the other has been swept.
	require.Eventually(t, func() bool {
		_, acqErr := m.Acquire("busy")
		assert.NoError(t, acqErr)
		return m.SessionCount() == 1
	}, 2*time.Second, 25*time.Millisecond)

	assert.Equal(t, []string{"busy"}, m.ActiveSessions())
	assert.Equal(t, int32(0), factory.agent("busy").cleanups.Load())
}

func TestShutdownReleasesEverything(t *testing.T) {
	factory := newStubFactory()
	cfg := Config{Factory: factory.new}
	m, err := NewManager(cfg)
	require.NoError(t, err)

	_, err = m.Acquire("alpha")
	require.NoError(t, err)
	_, err = m.Acquire("beta")
	require.NoError(t, err)

	m.Shutdown()

	assert.Equal(t, 0, m.SessionCount())
	assert.Equal(t, int32(1), factory.agent("alpha").cleanups.Load())
	assert.Equal(t, int32(1), factory.agent("beta").cleanups.Load())

	// Idempotent.
	m.Shutdown()
	assert.Equal(t, int32(1), factory.agent("alpha").cleanups.Load())
}

func TestNewManagerRequiresFactory(t *testing.T) {
	_, err := NewManager(Config{})
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}
