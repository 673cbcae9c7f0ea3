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

package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/types"
)

const (
	// maxStdoutBytes and maxStderrBytes bound captured output; only the
	// tail is retained when a program exceeds them.
	maxStdoutBytes = 1 << 20   // 1 MB
	maxStderrBytes = 256 << 10 // 256 KB

	// killGrace is how long a process group gets between SIGTERM and SIGKILL.
	killGrace = 5 * time.Second
)

// Config parameterizes a PythonAdapter. Zero values take defaults.
type Config struct {
	// PythonPath is the interpreter binary. Defaults to "python3".
	PythonPath string

	// Workspace holds generated scripts and debug copies.
	// Defaults to <tmpdir>/heddle-sandbox.
	Workspace string

	// SkillsRoot is embedded into generated programs for module path
	// extension. Empty disables it.
	SkillsRoot string

	// MaxTimeout caps per-execution timeouts. Defaults to DefaultTimeout.
	MaxTimeout time.Duration

	// MaxActive caps concurrent executions. Defaults to 1000.
	MaxActive int

	Logger *zap.Logger
	Tracer observability.Tracer
}

// PythonAdapter executes generated programs with a Python interpreter
// subprocess. Each execution gets its own process group so that runaway
// children die with their parent.
type PythonAdapter struct {
	pythonPath string
	workspace  string
	skillsRoot string
	maxTimeout time.Duration
	maxActive  int

	logger *zap.Logger
	tracer observability.Tracer

	mu     sync.Mutex
	active int
}

// NewPythonAdapter creates the adapter and its workspace directory.
func NewPythonAdapter(cfg Config) (*PythonAdapter, error) {
	if cfg.PythonPath == "" {
		cfg.PythonPath = "python3"
	}
	if cfg.Workspace == "" {
		cfg.Workspace = filepath.Join(os.TempDir(), "heddle-sandbox")
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = DefaultTimeout
	}
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}

	if err := os.MkdirAll(cfg.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox workspace: %w", err)
	}

	return &PythonAdapter{
		pythonPath: cfg.PythonPath,
		workspace:  cfg.Workspace,
		skillsRoot: cfg.SkillsRoot,
		maxTimeout: cfg.MaxTimeout,
		maxActive:  cfg.MaxActive,
		logger:     cfg.Logger,
		tracer:     cfg.Tracer,
	}, nil
}

// Execute wraps code, writes it to the workspace, and runs it under the
// configured interpreter. See Adapter for the result/error contract.
func (a *PythonAdapter) Execute(ctx context.Context, code string, opts Options) (*Result, error) {
	ctx, span := a.tracer.StartSpan(ctx, "sandbox.execute", observability.WithSpanKind("sandbox"))
	defer a.tracer.EndSpan(span)

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	span.SetAttribute(observability.AttrSessionID, sessionID)

	if err := a.acquireSlot(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer a.releaseSlot()

	wrapped, err := Wrap(code, WrapOptions{SkillsRoot: a.skillsRoot})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	scriptPath := filepath.Join(a.workspace, sessionID+".py")
	if err := os.WriteFile(scriptPath, []byte(wrapped), 0o644); err != nil {
		err = types.NewExecutionError("failed to write sandbox script").WithCause(err)
		span.RecordError(err)
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > a.maxTimeout {
		timeout = a.maxTimeout
	}
	span.SetAttribute("timeout_ms", timeout.Milliseconds())

	cmd := exec.Command(a.pythonPath, scriptPath)
	cmd.Dir = a.workspace
	cmd.Env = a.buildEnv(opts)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := &tailBuffer{max: maxStdoutBytes}
	stderr := &tailBuffer{max: maxStderrBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	a.logger.Debug("executing sandboxed program",
		zap.String("session_id", sessionID),
		zap.String("script", scriptPath),
		zap.Duration("timeout", timeout))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		a.finishScript(sessionID, scriptPath, true)
		e := types.NewExecutionError("failed to start interpreter %q", a.pythonPath).WithCause(err)
		e.Suggestion = "check sandbox.python_path or install Python 3"
		span.RecordError(e)
		return nil, e
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case waitErr = <-waitDone:
		// fell through to the normal exit path below

	case <-timer.C:
		a.terminate(cmd, waitDone)
		a.finishScript(sessionID, scriptPath, true)
		result := timedOutResult(start)
		err := types.NewTimeoutError("execution exceeded %s", timeout).
			WithDetail("session_id", sessionID)
		span.SetAttribute("timed_out", true)
		span.RecordError(err)
		return result, err

	case <-ctx.Done():
		a.terminate(cmd, waitDone)
		a.finishScript(sessionID, scriptPath, true)
		result := timedOutResult(start)
		err := types.NewTimeoutError("execution canceled").
			WithDetail("session_id", sessionID).
			WithCause(ctx.Err())
		span.RecordError(err)
		return result, err
	}

	durationMs := time.Since(start).Milliseconds()

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			a.finishScript(sessionID, scriptPath, true)
			err := types.NewExecutionError("interpreter wait failed").WithCause(waitErr)
			span.RecordError(err)
			return nil, err
		}
	}

	variables, cleanStdout := extractVariables(stdout.String())
	result := &Result{
		ExitCode:   exitCode,
		Stdout:     cleanStdout,
		Stderr:     stderr.String(),
		DurationMs: durationMs,
		Variables:  variables,
	}
	span.SetAttribute("exit_code", exitCode)
	span.SetAttribute("duration_ms", durationMs)

	if exitCode != 0 {
		a.finishScript(sessionID, scriptPath, true)
		err := types.NewExecutionError("python process exited with code %d", exitCode).
			WithDetail("session_id", sessionID).
			WithDetail("stderr", result.Stderr)
		span.RecordError(err)
		return result, err
	}

	a.finishScript(sessionID, scriptPath, false)
	return result, nil
}

// Cleanup removes the session's script file, if any.
func (a *PythonAdapter) Cleanup(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := os.Remove(filepath.Join(a.workspace, sessionID+".py"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove sandbox script: %w", err)
	}
	return nil
}

// HealthCheck verifies the interpreter can be invoked.
func (a *PythonAdapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := exec.CommandContext(ctx, a.pythonPath, "--version").Run(); err != nil {
		e := types.NewExecutionError("interpreter %q is not runnable", a.pythonPath).WithCause(err)
		e.Suggestion = "check sandbox.python_path or install Python 3"
		return e
	}
	return nil
}

// Info reports the adapter's configuration and current load.
func (a *PythonAdapter) Info() Info {
	a.mu.Lock()
	active := a.active
	a.mu.Unlock()

	return Info{
		Interpreter: a.pythonPath,
		Workspace:   a.workspace,
		Active:      active,
		MaxActive:   a.maxActive,
	}
}

func (a *PythonAdapter) acquireSlot() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active >= a.maxActive {
		return types.NewResourceExhaustedError("sandbox at capacity (%d active executions)", a.active).
			WithDetail("max_active", a.maxActive)
	}
	a.active++
	return nil
}

func (a *PythonAdapter) releaseSlot() {
	a.mu.Lock()
	a.active--
	a.mu.Unlock()
}

// terminate signals the command's process group: SIGTERM, a grace period,
// then SIGKILL. It drains waitDone before returning so the caller never
// races the reaper goroutine.
func (a *PythonAdapter) terminate(cmd *exec.Cmd, waitDone <-chan error) {
	pgid := cmd.Process.Pid // Setpgid makes the child lead its own group
	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	select {
	case <-waitDone:
		return
	case <-time.After(killGrace):
	}

	a.logger.Warn("process group survived SIGTERM; escalating to SIGKILL",
		zap.Int("pgid", pgid))
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
	<-waitDone
}

// finishScript handles script retention after an execution: failed runs get
// a timestamped debug copy before removal, successful runs are just removed.
func (a *PythonAdapter) finishScript(sessionID, scriptPath string, failed bool) {
	if failed {
		debugPath := filepath.Join(a.workspace,
			fmt.Sprintf("debug_%s_%d.py", sessionID, time.Now().UnixMilli()))
		if data, err := os.ReadFile(scriptPath); err == nil {
			if err := os.WriteFile(debugPath, data, 0o644); err != nil {
				a.logger.Warn("failed to write debug copy",
					zap.String("path", debugPath), zap.Error(err))
			}
		}
	}
	if err := os.Remove(scriptPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.logger.Warn("failed to remove sandbox script",
			zap.String("path", scriptPath), zap.Error(err))
	}
}

// buildEnv assembles the subprocess environment: the parent environment,
// trace and skills plumbing, module path, then caller overrides.
func (a *PythonAdapter) buildEnv(opts Options) []string {
	env := os.Environ()
	if opts.TraceID != "" {
		env = append(env, "HEDDLE_TRACE_ID="+opts.TraceID)
	}
	if a.skillsRoot != "" {
		env = append(env, "HEDDLE_SKILLS_ROOT="+a.skillsRoot)
	}
	if paths := computeModulePath(a.skillsRoot); len(paths) > 0 {
		env = append(env, "PYTHONPATH="+strings.Join(paths, ":"))
	}
	for k, v := range opts.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// computeModulePath mirrors the prelude's sys.path extension on the Go
// side so that import resolution works before the prelude runs.
func computeModulePath(root string) []string {
	if root == "" {
		return nil
	}
	paths := []string{root}

	src := filepath.Join(filepath.Dir(root), "src")
	if info, err := os.Stat(src); err == nil && info.IsDir() {
		paths = append(paths, src)
	}

	matches, _ := filepath.Glob(filepath.Join(root, "python_modules", "lib", "python3.*", "site-packages"))
	paths = append(paths, matches...)
	return paths
}

// timedOutResult is the uniform shape for runs terminated by the adapter.
func timedOutResult(start time.Time) *Result {
	return &Result{
		ExitCode:   -1,
		Stderr:     "Execution timeout",
		TimedOut:   true,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// extractVariables pulls the surfaced-variables line off the end of stdout.
// The line is removed only when it parses as a JSON object; otherwise the
// output is returned untouched.
func extractVariables(stdout string) (map[string]any, string) {
	trimmed := strings.TrimRight(stdout, "\n")
	if trimmed == "" {
		return nil, stdout
	}

	last := trimmed
	rest := ""
	if idx := strings.LastIndex(trimmed, "\n"); idx >= 0 {
		last = trimmed[idx+1:]
		rest = trimmed[:idx]
	}

	if !strings.HasPrefix(last, variablesPrefix+" ") {
		return nil, stdout
	}

	payload := strings.TrimPrefix(last, variablesPrefix+" ")
	var variables map[string]any
	if err := json.Unmarshal([]byte(payload), &variables); err != nil {
		return nil, stdout
	}

	if rest != "" {
		rest += "\n"
	}
	return variables, rest
}

// tailBuffer is an io.Writer that retains at most max trailing bytes.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
