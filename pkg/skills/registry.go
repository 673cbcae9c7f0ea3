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
package skills

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/observability"
)

// snapshot is one immutable view of the catalog. Readers hold a snapshot
// pointer; Reload builds a fresh one and swaps it in.
type snapshot struct {
	byName  map[string]*Manifest
	ordered []*Manifest // sorted by name
}

// Registry is the process-wide skill catalog. Reads are lock-free against
// the current snapshot; Reload replaces the snapshot atomically, so readers
// see either the old or the new catalog, never a partial state.
type Registry struct {
	dir     string
	logger  *zap.Logger
	tracer  observability.Tracer
	current atomic.Pointer[snapshot]
}

// Config holds configuration for the registry.
type Config struct {
	// Dir is the skills root. Each immediate subdirectory holding a
	// manifest.yaml (or manifest.yml) is one skill.
	Dir    string
	Logger *zap.Logger
	Tracer observability.Tracer
}

// NewRegistry creates the registry and runs the initial discovery.
// A missing skills root is not fatal: the registry starts empty.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("skills directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}

	r := &Registry{
		dir:    cfg.Dir,
		logger: cfg.Logger,
		tracer: cfg.Tracer,
	}
	r.current.Store(&snapshot{byName: map[string]*Manifest{}})

	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the skills root the registry scans.
func (r *Registry) Dir() string {
	return r.dir
}

// Reload re-runs discovery and swaps in the new snapshot.
func (r *Registry) Reload() error {
	_, span := r.tracer.StartSpan(context.Background(), "skills.registry.reload")
	defer r.tracer.EndSpan(span)

	manifests, err := discover(r.dir, r.logger)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Warn("skills directory does not exist, registry is empty",
				zap.String("dir", r.dir))
			r.current.Store(&snapshot{byName: map[string]*Manifest{}})
			return nil
		}
		if span != nil {
			span.RecordError(err)
		}
		return fmt.Errorf("discover skills in %s: %w", r.dir, err)
	}

	// Manifests arrive in lexical directory order, so on duplicate names
	// the last insert wins.
	byName := make(map[string]*Manifest, len(manifests))
	for _, m := range manifests {
		if prev, dup := byName[m.Name]; dup {
			r.logger.Warn("duplicate skill name, keeping the later directory",
				zap.String("skill", m.Name),
				zap.String("dropped", prev.Path),
				zap.String("kept", m.Path))
		}
		byName[m.Name] = m
	}

	ordered := make([]*Manifest, 0, len(byName))
	for _, m := range byName {
		ordered = append(ordered, m)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	r.current.Store(&snapshot{byName: byName, ordered: ordered})

	if span != nil {
		span.SetAttribute("skills.count", fmt.Sprintf("%d", len(byName)))
	}
	r.tracer.RecordMetric("skills.registry.reload", 1.0, map[string]string{
		"count": fmt.Sprintf("%d", len(byName)),
	})
	r.logger.Info("skill registry loaded",
		zap.String("dir", r.dir),
		zap.Int("skills", len(byName)))

	return nil
}

// List returns all manifests sorted by name.
func (r *Registry) List() []*Manifest {
	return r.current.Load().ordered
}

// Get looks up a manifest by name.
func (r *Registry) Get(name string) (*Manifest, bool) {
	m, ok := r.current.Load().byName[name]
	return m, ok
}

// Count returns the number of registered skills.
func (r *Registry) Count() int {
	return len(r.current.Load().ordered)
}

// FilterByTag returns manifests carrying the given tag, sorted by name.
func (r *Registry) FilterByTag(tag string) []*Manifest {
	var out []*Manifest
	for _, m := range r.current.Load().ordered {
		if m.HasTag(tag) {
			out = append(out, m)
		}
	}
	return out
}

// CountByTag returns how many skills carry each tag.
func (r *Registry) CountByTag() map[string]int {
	counts := make(map[string]int)
	for _, m := range r.current.Load().ordered {
		for _, tag := range m.Tags {
			counts[tag]++
		}
	}
	return counts
}

// CountByType returns how many skills declare each type. Untyped skills
// are counted under the empty key, so the values always sum to Count().
func (r *Registry) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, m := range r.current.Load().ordered {
		counts[m.Type]++
	}
	return counts
}
