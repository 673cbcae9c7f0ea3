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

// Package agent hosts the per-session orchestrator: one Agent owns one
// session's state and turns task strings into task results by driving the
// planner and the sandbox.
package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/planner"
	"github.com/teradata-labs/heddle/pkg/sandbox"
	"github.com/teradata-labs/heddle/pkg/types"
)

// DefaultTaskTimeout bounds one sandbox execution when the config does not.
const DefaultTaskTimeout = 60 * time.Second

// skillCallPattern is the textual marker a generated program uses to invoke
// a skill; occurrences approximate the skill-call count.
const skillCallPattern = "executor.execute"

// ProgramGenerator is the planner surface the agent consumes.
type ProgramGenerator interface {
	Generate(ctx context.Context, req planner.Request) (*planner.Result, error)
}

var _ ProgramGenerator = (*planner.Generator)(nil)

// Config parameterizes an Agent.
type Config struct {
	// SessionID names the session this agent owns. Required.
	SessionID string

	// Planner generates programs. Required.
	Planner ProgramGenerator

	// Sandbox executes programs. Required.
	Sandbox sandbox.Adapter

	// TaskTimeout bounds each execution. Defaults to DefaultTaskTimeout.
	TaskTimeout time.Duration

	Logger *zap.Logger
	Tracer observability.Tracer
}

// Agent owns one SessionState. Run calls serialize on an internal mutex so
// concurrent submissions for the same session observe a consistent history
// order.
type Agent struct {
	mu    sync.Mutex
	state *types.SessionState

	planner     ProgramGenerator
	sandbox     sandbox.Adapter
	taskTimeout time.Duration

	logger *zap.Logger
	tracer observability.Tracer
}

// New validates cfg and builds an Agent with fresh session state.
func New(cfg Config) (*Agent, error) {
	if cfg.SessionID == "" {
		return nil, types.NewValidationError("agent requires a session id")
	}
	if cfg.Planner == nil {
		return nil, types.NewValidationError("agent requires a planner")
	}
	if cfg.Sandbox == nil {
		return nil, types.NewValidationError("agent requires a sandbox adapter")
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}

	return &Agent{
		state:       types.NewSessionState(cfg.SessionID),
		planner:     cfg.Planner,
		sandbox:     cfg.Sandbox,
		taskTimeout: cfg.TaskTimeout,
		logger:      cfg.Logger.With(zap.String("session_id", cfg.SessionID)),
		tracer:      cfg.Tracer,
	}, nil
}

// Run executes one task end to end: plan, implement, execute, record.
// It always returns a TaskResult; failures are reported in the result
// rather than as a separate error so the pipeline has one shape to handle.
func (a *Agent) Run(ctx context.Context, task string) *types.TaskResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := a.tracer.StartSpan(ctx, "agent.run", observability.WithSpanKind("agent"))
	defer a.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrSessionID, a.state.SessionID)

	start := time.Now()

	if strings.TrimSpace(task) == "" {
		err := types.NewValidationError("task is empty")
		span.RecordError(err)
		return a.failure(start, err, types.TaskMetadata{})
	}

	a.state.Touch()
	a.state.AppendTurn(types.RoleUser, task)

	generated, err := a.planner.Generate(ctx, planner.Request{
		Task:      task,
		History:   a.state.Turns,
		Variables: a.state.Variables,
	})

	var metadata types.TaskMetadata
	if generated != nil {
		metadata.LLMCalls = generated.LLMCalls
		metadata.TotalTokens = generated.Usage.TotalTokens
	}
	if err != nil {
		a.state.AppendTurn(types.RoleAssistant, "Error: "+errorText(err))
		span.RecordError(err)
		a.logger.Warn("program generation failed", zap.Error(err))
		return a.failure(start, err, metadata)
	}

	result, err := a.sandbox.Execute(ctx, generated.Code, sandbox.Options{
		SessionID: a.state.SessionID,
		TraceID:   span.TraceID,
		Timeout:   a.taskTimeout,
	})
	if err != nil {
		a.state.AppendTurn(types.RoleAssistant, "Error: "+errorText(err))
		span.RecordError(err)
		a.logger.Warn("sandbox execution failed", zap.Error(err))
		return a.failure(start, err, metadata)
	}

	a.state.AppendExecution(task, result.Stdout, result.DurationMs)
	a.state.AppendTurn(types.RoleAssistant, result.Stdout)
	for name, value := range result.Variables {
		a.state.Variables[name] = value
	}
	metadata.SkillCalls = strings.Count(generated.Code, skillCallPattern)

	elapsed := time.Since(start).Milliseconds()
	span.SetAttribute("duration_ms", elapsed)
	a.logger.Info("task completed",
		zap.Int64("duration_ms", elapsed),
		zap.Int("llm_calls", metadata.LLMCalls),
		zap.Int("skill_calls", metadata.SkillCalls))

	return &types.TaskResult{
		Success:    true,
		Output:     result.Stdout,
		DurationMs: elapsed,
		SessionID:  a.state.SessionID,
		State:      a.state.Summary(),
		Metadata:   metadata,
	}
}

// Cleanup releases the session's sandbox resources and clears its state.
func (a *Agent) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.sandbox.Cleanup(a.state.SessionID)
	a.state.Reset()
	return err
}

// State returns a deep copy of the session state.
func (a *Agent) State() *types.SessionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

func (a *Agent) failure(start time.Time, err error, metadata types.TaskMetadata) *types.TaskResult {
	return &types.TaskResult{
		Success:    false,
		Error:      errorText(err),
		ErrorKind:  types.KindOf(err),
		DurationMs: time.Since(start).Milliseconds(),
		SessionID:  a.state.SessionID,
		State:      a.state.Summary(),
		Metadata:   metadata,
	}
}

// errorText prefers the structured message over the kind-prefixed Error()
// string for conversation turns and result payloads.
func errorText(err error) string {
	var e *types.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
