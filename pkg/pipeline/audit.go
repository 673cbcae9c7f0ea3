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
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/types"
)

// Completion history location in the external store.
const (
	HistoryGroupID = "agent:execution"
	HistoryKey     = "history"

	// DefaultHistoryLimit caps the persisted completion list.
	DefaultHistoryLimit = 100
)

// CompletionRecord is one entry in the persisted completion history,
// ordered most recent first.
type CompletionRecord struct {
	TaskID      string            `json:"taskId"`
	SessionID   string            `json:"sessionId"`
	Task        string            `json:"task"`
	Result      *types.TaskResult `json:"result"`
	CompletedAt time.Time         `json:"completedAt"`
}

// recordCompletion is the task.completed sink. It prepends the completion
// to the bounded history list in the store. Storage errors are logged and
// swallowed; auditing never fails a task that already succeeded.
func (p *Pipeline) recordCompletion(ctx context.Context, event Event) {
	payload, ok := event.Payload.(TaskCompleted)
	if !ok {
		p.logger.Warn("unexpected payload on completion topic",
			zap.String("topic", event.Topic))
		return
	}

	p.historyMu.Lock()
	defer p.historyMu.Unlock()

	records, err := p.loadHistory(ctx)
	if err != nil {
		p.logger.Warn("failed to load completion history",
			zap.String("task_id", payload.TaskID),
			zap.Error(err))
		return
	}

	// Idempotent on double delivery.
	for _, r := range records {
		if r.TaskID == payload.TaskID {
			p.logger.Debug("duplicate completion delivery skipped",
				zap.String("task_id", payload.TaskID))
			return
		}
	}

	record := CompletionRecord{
		TaskID:      payload.TaskID,
		SessionID:   payload.SessionID,
		Task:        payload.Task,
		Result:      payload.Result,
		CompletedAt: time.Now().UTC(),
	}
	records = append([]CompletionRecord{record}, records...)
	if len(records) > p.historyLimit {
		records = records[:p.historyLimit]
	}

	if err := p.store.Set(ctx, HistoryGroupID, HistoryKey, records); err != nil {
		p.logger.Warn("failed to persist completion history",
			zap.String("task_id", payload.TaskID),
			zap.Error(err))
	}
}

// recordFailure is the task.failed sink. Failures are logged at WARN; this
// is also the attachment point for future retry or alerting hooks.
func (p *Pipeline) recordFailure(ctx context.Context, event Event) {
	payload, ok := event.Payload.(TaskFailed)
	if !ok {
		p.logger.Warn("unexpected payload on failure topic",
			zap.String("topic", event.Topic))
		return
	}

	fields := []zap.Field{
		zap.String("task_id", payload.TaskID),
		zap.String("session_id", payload.SessionID),
		zap.String("error", payload.Error),
	}
	if payload.Stack != "" {
		fields = append(fields, zap.String("stack", payload.Stack))
	}
	p.logger.Warn("task failed", fields...)
}

func (p *Pipeline) loadHistory(ctx context.Context) ([]CompletionRecord, error) {
	raw, err := p.store.Get(ctx, HistoryGroupID, HistoryKey)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var records []CompletionRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		// A corrupt list is unrecoverable; start a fresh one rather than
		// wedging the sink forever.
		p.logger.Warn("completion history is corrupt, starting fresh",
			zap.Error(err))
		return nil, nil
	}
	return records, nil
}

// History returns the persisted completion records, most recent first.
func (p *Pipeline) History(ctx context.Context) ([]CompletionRecord, error) {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()
	return p.loadHistory(ctx)
}
