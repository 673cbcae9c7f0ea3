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

// Package sandbox runs generated Python programs in isolated subprocesses.
//
// Programs are wrapped in an async entry point that exposes the skill
// executor helper, written to a per-session workspace file, and executed
// under a process group so runaway work can be terminated as a unit.
package sandbox

import (
	"context"
	"time"
)

// DefaultTimeout caps a single execution when the caller does not set one.
const DefaultTimeout = 300000 * time.Millisecond

// Options controls a single Execute call.
type Options struct {
	// SessionID names the workspace script; minted when empty.
	SessionID string

	// TraceID is surfaced to the subprocess as HEDDLE_TRACE_ID.
	TraceID string

	// Timeout caps this execution (default: DefaultTimeout). The adapter's
	// configured maximum applies regardless.
	Timeout time.Duration

	// Env is merged into the subprocess environment.
	Env map[string]string
}

// Result reports the outcome of one execution.
type Result struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	TimedOut   bool
	DurationMs int64

	// Variables holds values the program surfaced via set_variable.
	Variables map[string]any
}

// Info describes the adapter's runtime state.
type Info struct {
	Interpreter string
	Workspace   string
	Active      int
	MaxActive   int
}

// Adapter executes sandboxed programs.
//
// When a program runs but fails (non-zero exit, timeout), Execute returns
// both a Result carrying the captured output and a typed error describing
// the failure.
type Adapter interface {
	// Execute wraps code, runs it, and reports the outcome.
	Execute(ctx context.Context, code string, opts Options) (*Result, error)

	// Cleanup removes any leftover workspace script for the session.
	Cleanup(sessionID string) error

	// HealthCheck verifies the interpreter responds within 5 seconds.
	HealthCheck(ctx context.Context) error

	// Info returns the adapter's runtime state.
	Info() Info
}

// Compile-time check: PythonAdapter implements Adapter.
var _ Adapter = (*PythonAdapter)(nil)
