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

// Package pipeline routes task submissions to session agents and publishes
// lifecycle events. Submit is the entry point: it resolves the session,
// runs the task, and emits task.completed or task.failed on the internal
// bus, where the audit sinks persist and log outcomes.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/session"
	"github.com/teradata-labs/heddle/pkg/storage"
	"github.com/teradata-labs/heddle/pkg/types"
)

// Bus topics published by the pipeline.
const (
	// TopicTaskExecute announces an accepted submission, after ids are
	// assigned and before the agent runs.
	TopicTaskExecute = "task.execute"
	// TopicTaskCompleted carries the result of a successful run.
	TopicTaskCompleted = "task.completed"
	// TopicTaskFailed carries the error of a failed or rejected run.
	TopicTaskFailed = "task.failed"
)

// TaskRequest is a task submission. Task is required; TaskID and SessionID
// are minted when absent. Continue marks the submission as a follow-up in
// an existing conversation; it is carried to subscribers but does not alter
// routing, which keys on SessionID alone.
type TaskRequest struct {
	TaskID    string `json:"taskId,omitempty"`
	Task      string `json:"task"`
	SessionID string `json:"sessionId,omitempty"`
	Continue  bool   `json:"continue,omitempty"`
}

// TaskResponse is returned to the submitter. Result holds the full task
// result for in-process callers; the exported fields are the wire shape.
type TaskResponse struct {
	Success   bool               `json:"success"`
	TaskID    string             `json:"taskId"`
	SessionID string             `json:"sessionId"`
	Output    string             `json:"output,omitempty"`
	Error     string             `json:"error,omitempty"`
	State     types.StateSummary `json:"state"`

	Result *types.TaskResult `json:"-"`
}

// TaskCompleted is the payload on TopicTaskCompleted.
type TaskCompleted struct {
	TaskID    string            `json:"taskId"`
	SessionID string            `json:"sessionId"`
	Task      string            `json:"task"`
	Result    *types.TaskResult `json:"result"`
}

// TaskFailed is the payload on TopicTaskFailed. Stack is populated only for
// panics, and only when the pipeline is configured to include stacks.
type TaskFailed struct {
	TaskID    string `json:"taskId"`
	SessionID string `json:"sessionId"`
	Task      string `json:"task"`
	Error     string `json:"error"`
	Stack     string `json:"stack,omitempty"`
}

// SessionProvider yields the agent bound to a session id.
type SessionProvider interface {
	Acquire(sessionID string) (session.Agent, error)
}

var _ SessionProvider = (*session.Manager)(nil)

// Config configures a Pipeline.
type Config struct {
	// Sessions resolves session ids to agents. Required.
	Sessions SessionProvider

	// Store persists the completion history. Required.
	Store storage.KVStore

	// HistoryLimit caps the persisted completion list. Defaults to
	// DefaultHistoryLimit.
	HistoryLimit int

	// IncludeStack attaches panic stacks to task.failed payloads. Meant
	// for development; user-facing error text stays stack-free without it.
	IncludeStack bool

	Logger *zap.Logger
	Tracer observability.Tracer
}

// Pipeline accepts task submissions and routes them through session agents.
type Pipeline struct {
	sessions     SessionProvider
	store        storage.KVStore
	bus          *Bus
	historyLimit int
	includeStack bool
	logger       *zap.Logger
	tracer       observability.Tracer

	// historyMu serializes read-modify-write cycles on the completion list.
	historyMu sync.Mutex
}

// New creates a Pipeline and registers the audit sinks on its bus.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Sessions == nil {
		return nil, types.NewValidationError("session provider is required")
	}
	if cfg.Store == nil {
		return nil, types.NewValidationError("history store is required")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}

	p := &Pipeline{
		sessions:     cfg.Sessions,
		store:        cfg.Store,
		bus:          NewBus(cfg.Logger),
		historyLimit: cfg.HistoryLimit,
		includeStack: cfg.IncludeStack,
		logger:       cfg.Logger,
		tracer:       cfg.Tracer,
	}
	p.bus.Subscribe(TopicTaskCompleted, p.recordCompletion)
	p.bus.Subscribe(TopicTaskFailed, p.recordFailure)
	return p, nil
}

// Bus exposes the pipeline's bus so callers can attach their own sinks,
// e.g. retry or alerting hooks on TopicTaskFailed.
func (p *Pipeline) Bus() *Bus {
	return p.bus
}

// Submit runs one task. It resolves (or mints) the session, invokes the
// agent, publishes the outcome, and returns the response. The agent is not
// released afterwards; session lifetime belongs to the session manager.
//
// The returned error is non-nil only when the task never ran: an empty task
// or a session that could not be acquired. A run that fails still returns a
// response with Success=false and a populated Error.
func (p *Pipeline) Submit(ctx context.Context, req TaskRequest) (*TaskResponse, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, types.NewValidationError("task is required")
	}
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx = session.WithSessionID(ctx, req.SessionID)
	ctx = session.WithTaskID(ctx, req.TaskID)

	ctx, span := p.tracer.StartSpan(ctx, "pipeline.submit",
		observability.WithSpanKind("pipeline"))
	defer p.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrSessionID, req.SessionID)
	span.SetAttribute(observability.AttrTaskID, req.TaskID)

	p.bus.Publish(ctx, Event{Topic: TopicTaskExecute, Payload: req})

	agent, err := p.sessions.Acquire(req.SessionID)
	if err != nil {
		span.RecordError(err)
		p.bus.Publish(ctx, Event{Topic: TopicTaskFailed, Payload: TaskFailed{
			TaskID:    req.TaskID,
			SessionID: req.SessionID,
			Task:      req.Task,
			Error:     err.Error(),
		}})
		p.tracer.RecordMetric("pipeline.tasks", 1, map[string]string{"outcome": "rejected"})
		return nil, err
	}

	result, stack := p.run(ctx, agent, req.Task)

	if result.Success {
		p.bus.Publish(ctx, Event{Topic: TopicTaskCompleted, Payload: TaskCompleted{
			TaskID:    req.TaskID,
			SessionID: req.SessionID,
			Task:      req.Task,
			Result:    result,
		}})
		p.tracer.RecordMetric("pipeline.tasks", 1, map[string]string{"outcome": "completed"})
	} else {
		failed := TaskFailed{
			TaskID:    req.TaskID,
			SessionID: req.SessionID,
			Task:      req.Task,
			Error:     result.Error,
		}
		if p.includeStack {
			failed.Stack = stack
		}
		p.bus.Publish(ctx, Event{Topic: TopicTaskFailed, Payload: failed})
		p.tracer.RecordMetric("pipeline.tasks", 1, map[string]string{"outcome": "failed"})
	}

	return &TaskResponse{
		Success:   result.Success,
		TaskID:    req.TaskID,
		SessionID: req.SessionID,
		Output:    result.Output,
		Error:     result.Error,
		State:     result.State,
		Result:    result,
	}, nil
}

// run invokes the agent and converts a panic into a failed result so one
// broken task cannot take down the process.
func (p *Pipeline) run(ctx context.Context, agent session.Agent, task string) (result *types.TaskResult, stack string) {
	defer func() {
		if r := recover(); r != nil {
			stack = string(debug.Stack())
			p.logger.Error("agent run panicked",
				zap.String("session_id", session.SessionIDFromContext(ctx)),
				zap.String("task_id", session.TaskIDFromContext(ctx)),
				zap.Any("panic", r),
				zap.String("stack", stack))
			result = &types.TaskResult{
				Success:   false,
				Error:     fmt.Sprintf("internal error: %v", r),
				ErrorKind: types.KindExecution,
				SessionID: session.SessionIDFromContext(ctx),
			}
		}
	}()
	return agent.Run(ctx, task), ""
}
