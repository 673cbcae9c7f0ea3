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

import "time"

// Common attribute keys.
const (
	AttrSessionID    = "session.id"
	AttrTaskID       = "task.id"
	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// StatusCode represents the final status of a span.
type StatusCode int

const (
	// StatusUnset indicates status was not explicitly set.
	StatusUnset StatusCode = iota
	// StatusOK indicates successful completion.
	StatusOK
	// StatusError indicates an error occurred.
	StatusError
)

func (s StatusCode) String() string {
	switch s {
	case StatusUnset:
		return "unset"
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Status represents the final status of a span with optional message.
type Status struct {
	Code    StatusCode
	Message string
}

// Span represents a unit of work with timing and metadata.
// Spans form a tree structure via ParentID references.
type Span struct {
	TraceID  string // unique ID for entire trace
	SpanID   string // unique ID for this span
	ParentID string // parent span ID (empty for root)

	Name       string
	Attributes map[string]interface{}

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration // calculated on EndSpan

	Status Status
}

// SetAttribute sets a key-value attribute on the span.
func (s *Span) SetAttribute(key string, value interface{}) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]interface{})
	}
	s.Attributes[key] = value
}

// RecordError records an error on the span.
// Sets status to StatusError and adds error attributes.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.Status = Status{
		Code:    StatusError,
		Message: err.Error(),
	}
	s.SetAttribute(AttrErrorMessage, err.Error())
	s.SetAttribute(AttrErrorType, "error")
}

// SpanOption is a functional option for configuring spans.
type SpanOption func(*Span)

// WithAttribute returns a SpanOption that sets an attribute.
func WithAttribute(key string, value interface{}) SpanOption {
	return func(s *Span) {
		s.SetAttribute(key, value)
	}
}

// WithSpanKind returns a SpanOption that sets the span.kind attribute.
// Common values: "agent", "llm", "sandbox", "store", "pipeline"
func WithSpanKind(kind string) SpanOption {
	return func(s *Span) {
		s.SetAttribute("span.kind", kind)
	}
}
