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
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process KVStore. It is the default backend and the
// one tests use; contents are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	groups map[string]map[string]json.RawMessage
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups: make(map[string]map[string]json.RawMessage),
	}
}

// Get returns the stored value, or nil when the key is absent.
func (s *MemoryStore) Get(ctx context.Context, groupID, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("memory store is closed")
	}

	group, ok := s.groups[groupID]
	if !ok {
		return nil, nil
	}
	value, ok := group[key]
	if !ok {
		return nil, nil
	}

	// Copy so callers cannot mutate the stored bytes.
	out := make(json.RawMessage, len(value))
	copy(out, value)
	return out, nil
}

// Set marshals value and stores it under (groupID, key).
func (s *MemoryStore) Set(ctx context.Context, groupID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("memory store is closed")
	}

	group, ok := s.groups[groupID]
	if !ok {
		group = make(map[string]json.RawMessage)
		s.groups[groupID] = group
	}
	group[key] = data
	return nil
}

// Close marks the store closed; subsequent operations fail.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.groups = nil
	return nil
}
