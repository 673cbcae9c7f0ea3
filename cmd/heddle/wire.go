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
package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/internal/log"
	"github.com/teradata-labs/heddle/pkg/agent"
	"github.com/teradata-labs/heddle/pkg/llm/factory"
	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/pipeline"
	"github.com/teradata-labs/heddle/pkg/planner"
	"github.com/teradata-labs/heddle/pkg/sandbox"
	"github.com/teradata-labs/heddle/pkg/session"
	"github.com/teradata-labs/heddle/pkg/skills"
	"github.com/teradata-labs/heddle/pkg/storage"
)

// runtime bundles the wired core components for command handlers.
type runtime struct {
	logger   *zap.Logger
	tracer   observability.Tracer
	registry *skills.Registry
	adapter  *sandbox.PythonAdapter
	store    storage.KVStore
	manager  *session.Manager
	pipeline *pipeline.Pipeline

	watcher *skills.Watcher // nil unless skills.watch
	janitor *cron.Cron

	closeOnce sync.Once
}

// buildRuntime constructs the full orchestrator from the loaded config:
// registry, LLM client, planner, one process-wide sandbox adapter, history
// store, session manager, and pipeline. On error nothing keeps running.
func buildRuntime(ctx context.Context) (*runtime, error) {
	logger := log.Logger()
	tracer := observability.NewLogTracer(logger)

	registry, err := skills.NewRegistry(skills.Config{
		Dir:    cfg.Skills.Dir,
		Logger: logger,
		Tracer: tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("skill discovery failed: %w", err)
	}

	completer, err := factory.NewCompleter(factory.Config{
		Provider:        cfg.LLM.Provider,
		Model:           cfg.LLM.Model,
		BaseURL:         cfg.LLM.BaseURL,
		AnthropicAPIKey: cfg.LLM.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.LLM.OpenAIAPIKey,
		MaxTokens:       cfg.LLM.MaxTokens,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         cfg.LLM.Timeout(),
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	generator, err := planner.NewGenerator(planner.Config{
		LLM:           completer,
		Registry:      registry,
		HistoryWindow: cfg.History.Window,
		Logger:        logger,
		Tracer:        tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create planner: %w", err)
	}

	skillsRoot := cfg.Sandbox.SkillsRoot
	if skillsRoot == "" {
		skillsRoot = cfg.Skills.Dir
	}
	adapter, err := sandbox.NewPythonAdapter(sandbox.Config{
		PythonPath: cfg.Sandbox.PythonPath,
		Workspace:  cfg.Sandbox.Workspace,
		SkillsRoot: skillsRoot,
		MaxTimeout: cfg.Sandbox.Timeout(),
		MaxActive:  cfg.Sandbox.MaxActive,
		Logger:     logger,
		Tracer:     tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage, tracer)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	// One adapter serves every agent so sandbox capacity is a process-wide
	// limit; adapters key per-execution state by session id.
	taskTimeout := cfg.Session.TaskTimeout()
	newAgent := func(sessionID string) (session.Agent, error) {
		return agent.New(agent.Config{
			SessionID:   sessionID,
			Planner:     generator,
			Sandbox:     adapter,
			TaskTimeout: taskTimeout,
			Logger:      logger,
			Tracer:      tracer,
		})
	}

	manager, err := session.NewManager(session.Config{
		MaxSessions:    cfg.Session.MaxSessions,
		SessionTimeout: cfg.Session.Timeout(),
		SweepInterval:  cfg.Session.SweepInterval(),
		Factory:        newAgent,
		Logger:         logger,
		Tracer:         tracer,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	pipe, err := pipeline.New(pipeline.Config{
		Sessions:     manager,
		Store:        store,
		IncludeStack: cfg.DevMode,
		Logger:       logger,
		Tracer:       tracer,
	})
	if err != nil {
		manager.Shutdown()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	rt := &runtime{
		logger:   logger,
		tracer:   tracer,
		registry: registry,
		adapter:  adapter,
		store:    store,
		manager:  manager,
		pipeline: pipe,
	}

	if cfg.Skills.Watch {
		watcher, err := skills.NewWatcher(registry, skills.WatcherConfig{Logger: logger})
		if err != nil {
			logger.Warn("skill hot-reload unavailable", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("skill hot-reload unavailable", zap.Error(err))
			_ = watcher.Close()
		} else {
			rt.watcher = watcher
		}
	}

	retention := cfg.Maintenance.DebugRetention()
	janitor := cron.New()
	_, err = janitor.AddFunc("@every 1h", func() {
		if _, err := adapter.PruneDebugFiles(retention); err != nil {
			logger.Warn("debug file pruning failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Warn("debug file janitor not scheduled", zap.Error(err))
	} else {
		janitor.Start()
		rt.janitor = janitor
	}

	return rt, nil
}

// Close stops background work and releases every session. Safe to call
// more than once.
func (r *runtime) Close() {
	r.closeOnce.Do(func() {
		if r.janitor != nil {
			r.janitor.Stop()
		}
		if r.watcher != nil {
			_ = r.watcher.Close()
		}
		r.manager.Shutdown()
		if err := r.store.Close(); err != nil {
			r.logger.Warn("failed to close history store", zap.Error(err))
		}
		_ = r.tracer.Flush(context.Background())
	})
}
