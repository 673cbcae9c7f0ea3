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
package observability

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LogTracer exports completed spans and metrics to a zap logger.
// Spans log at debug; spans that recorded an error log at warn.
type LogTracer struct {
	logger *zap.Logger
}

// NewLogTracer creates a tracer backed by the given logger.
// A nil logger falls back to zap.NewNop().
func NewLogTracer(logger *zap.Logger) *LogTracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTracer{logger: logger}
}

// StartSpan creates a span linked to any parent in ctx.
func (t *LogTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	span := newSpan(ctx, name, opts...)
	return ContextWithSpan(ctx, span), span
}

// EndSpan finalizes the span and writes it to the log.
func (t *LogTracer) EndSpan(span *Span) {
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)

	fields := []zap.Field{
		zap.String("trace_id", span.TraceID),
		zap.String("span_id", span.SpanID),
		zap.Duration("duration", span.Duration),
		zap.String("status", span.Status.Code.String()),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", span.ParentID))
	}
	if len(span.Attributes) > 0 {
		fields = append(fields, zap.Any("attributes", span.Attributes))
	}

	if span.Status.Code == StatusError {
		t.logger.Warn("span "+span.Name, fields...)
		return
	}
	t.logger.Debug("span "+span.Name, fields...)
}

// RecordMetric writes the metric to the log at debug.
func (t *LogTracer) RecordMetric(name string, value float64, labels map[string]string) {
	t.logger.Debug("metric "+name,
		zap.Float64("value", value),
		zap.Any("labels", labels))
}

// Flush syncs the underlying logger.
func (t *LogTracer) Flush(ctx context.Context) error {
	// Sync errors on stderr sinks are expected and ignorable.
	_ = t.logger.Sync()
	return nil
}

var _ Tracer = (*LogTracer)(nil)
