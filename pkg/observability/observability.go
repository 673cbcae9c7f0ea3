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

// Package observability provides lightweight tracing for heddle operations.
//
// Task runs, LLM calls, sandbox executions, and store operations accept a
// Tracer; the default export target is the structured log (LogTracer), with
// NoOpTracer for tests and disabled deployments.
//
// Example usage:
//
//	ctx, span := tracer.StartSpan(ctx, "agent.run")
//	defer tracer.EndSpan(span)
//	span.SetAttribute("session.id", id)
package observability

import "context"

// Tracer is the main interface for instrumenting heddle operations.
//
// Thread-safe: all methods can be called concurrently.
type Tracer interface {
	// StartSpan creates a new span and returns a context containing it.
	// The span is automatically linked to its parent via context propagation.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span)

	// EndSpan completes a span, calculates duration, and exports it.
	// Always call this via defer after StartSpan.
	EndSpan(span *Span)

	// RecordMetric records a point-in-time metric value with labels.
	RecordMetric(name string, value float64, labels map[string]string)

	// Flush forces immediate export of buffered spans and metrics.
	Flush(ctx context.Context) error
}

// SpanFromContext retrieves the current span from context, if any.
// Returns nil if no span exists in context.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey).(*Span); ok {
		return span
	}
	return nil
}

// ContextWithSpan returns a new context with the span attached.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}

type contextKey string

const spanContextKey contextKey = "heddle.span"
