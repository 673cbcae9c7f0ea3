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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/heddle/pkg/types"
)

// writeFakeInterpreter stands in for a Python binary so adapter behavior
// can be tested without one installed.
func writeFakeInterpreter(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-python")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestAdapter(t *testing.T, python string) *PythonAdapter {
	t.Helper()
	adapter, err := NewPythonAdapter(Config{
		PythonPath: python,
		Workspace:  t.TempDir(),
	})
	require.NoError(t, err)
	return adapter
}

func TestPythonAdapterExecuteSuccess(t *testing.T) {
	python := writeFakeInterpreter(t, "#!/bin/sh\necho \"hello from sandbox\"\n")
	adapter := newTestAdapter(t, python)

	result, err := adapter.Execute(context.Background(), "print('hi')", Options{SessionID: "sess-ok"})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "hello from sandbox")
	assert.False(t, result.TimedOut)
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))

	// Successful runs leave nothing behind.
	_, statErr := os.Stat(filepath.Join(adapter.workspace, "sess-ok.py"))
	assert.True(t, os.IsNotExist(statErr))
	debugFiles, _ := filepath.Glob(filepath.Join(adapter.workspace, "debug_*.py"))
	assert.Empty(t, debugFiles)
}

func TestPythonAdapterExecuteExtractsVariables(t *testing.T) {
	python := writeFakeInterpreter(t,
		"#!/bin/sh\necho \"working\"\necho '__HEDDLE_VARIABLES__ {\"total\": 42, \"label\": \"ok\"}'\n")
	adapter := newTestAdapter(t, python)

	result, err := adapter.Execute(context.Background(), "set_variable('total', 42)", Options{})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"total": float64(42), "label": "ok"}, result.Variables)
	assert.Equal(t, "working\n", result.Stdout, "variables line should be stripped from stdout")
}

func TestPythonAdapterExecuteLeavesMalformedVariablesLine(t *testing.T) {
	python := writeFakeInterpreter(t,
		"#!/bin/sh\necho '__HEDDLE_VARIABLES__ not-json'\n")
	adapter := newTestAdapter(t, python)

	result, err := adapter.Execute(context.Background(), "print('x')", Options{})
	require.NoError(t, err)

	assert.Nil(t, result.Variables)
	assert.Contains(t, result.Stdout, "__HEDDLE_VARIABLES__ not-json")
}

func TestPythonAdapterExecuteFailure(t *testing.T) {
	python := writeFakeInterpreter(t, "#!/bin/sh\necho \"boom\" >&2\nexit 3\n")
	adapter := newTestAdapter(t, python)

	result, err := adapter.Execute(context.Background(), "raise ValueError()", Options{SessionID: "sess-fail"})
	require.Error(t, err)
	require.NotNil(t, result, "failed runs still return the captured result")

	assert.Equal(t, types.KindExecution, types.KindOf(err))
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Stderr, "boom")

	// The script is kept as a timestamped debug copy, original removed.
	debugFiles, globErr := filepath.Glob(filepath.Join(adapter.workspace, "debug_sess-fail_*.py"))
	require.NoError(t, globErr)
	assert.Len(t, debugFiles, 1)
	_, statErr := os.Stat(filepath.Join(adapter.workspace, "sess-fail.py"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPythonAdapterExecuteTimeout(t *testing.T) {
	python := writeFakeInterpreter(t, "#!/bin/sh\nsleep 30\n")
	adapter := newTestAdapter(t, python)

	start := time.Now()
	result, err := adapter.Execute(context.Background(), "print('x')", Options{
		SessionID: "sess-slow",
		Timeout:   100 * time.Millisecond,
	})
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Equal(t, types.KindTimeout, types.KindOf(err))
	assert.True(t, result.TimedOut)
	assert.Equal(t, -1, result.ExitCode)
	assert.Equal(t, "Execution timeout", result.Stderr)
	assert.Less(t, time.Since(start), 10*time.Second, "process group should die on SIGTERM")
}

func TestPythonAdapterExecuteContextCancel(t *testing.T) {
	python := writeFakeInterpreter(t, "#!/bin/sh\nsleep 30\n")
	adapter := newTestAdapter(t, python)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result, err := adapter.Execute(ctx, "print('x')", Options{SessionID: "sess-cancel"})
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Equal(t, types.KindTimeout, types.KindOf(err))
	assert.True(t, result.TimedOut)
}

func TestPythonAdapterExecuteEmptyCode(t *testing.T) {
	python := writeFakeInterpreter(t, "#!/bin/sh\nexit 0\n")
	adapter := newTestAdapter(t, python)

	result, err := adapter.Execute(context.Background(), "   \n  ", Options{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestPythonAdapterExecuteMissingInterpreter(t *testing.T) {
	adapter := newTestAdapter(t, filepath.Join(t.TempDir(), "does-not-exist"))

	result, err := adapter.Execute(context.Background(), "print('x')", Options{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, types.KindExecution, types.KindOf(err))
}

func TestPythonAdapterCapacity(t *testing.T) {
	python := writeFakeInterpreter(t, "#!/bin/sh\nsleep 30\n")
	adapter, err := NewPythonAdapter(Config{
		PythonPath: python,
		Workspace:  t.TempDir(),
		MaxActive:  1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = adapter.Execute(ctx, "print('x')", Options{SessionID: "long"})
	}()

	require.Eventually(t, func() bool { return adapter.Info().Active == 1 },
		2*time.Second, 10*time.Millisecond)

	// Capacity is checked before code validation: even an empty program is
	// rejected with resource_exhausted while the adapter is full.
	_, err = adapter.Execute(context.Background(), "", Options{SessionID: "second"})
	require.Error(t, err)
	assert.Equal(t, types.KindResourceExhausted, types.KindOf(err))

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("first execution did not stop after cancel")
	}
	assert.Equal(t, 0, adapter.Info().Active)
}

func TestPythonAdapterExecuteEnvPlumbing(t *testing.T) {
	python := writeFakeInterpreter(t,
		"#!/bin/sh\necho \"trace=$HEDDLE_TRACE_ID\"\necho \"custom=$HEDDLE_TEST_CUSTOM\"\n")
	adapter := newTestAdapter(t, python)

	result, err := adapter.Execute(context.Background(), "print('x')", Options{
		TraceID: "trace-123",
		Env:     map[string]string{"HEDDLE_TEST_CUSTOM": "custom-value"},
	})
	require.NoError(t, err)

	assert.Contains(t, result.Stdout, "trace=trace-123")
	assert.Contains(t, result.Stdout, "custom=custom-value")
}

func TestPythonAdapterCleanup(t *testing.T) {
	python := writeFakeInterpreter(t, "#!/bin/sh\nexit 0\n")
	adapter := newTestAdapter(t, python)

	scriptPath := filepath.Join(adapter.workspace, "sess-1.py")
	require.NoError(t, os.WriteFile(scriptPath, []byte("print('x')\n"), 0o644))

	require.NoError(t, adapter.Cleanup("sess-1"))
	_, err := os.Stat(scriptPath)
	assert.True(t, os.IsNotExist(err))

	// Idempotent.
	require.NoError(t, adapter.Cleanup("sess-1"))
	require.NoError(t, adapter.Cleanup(""))
}

func TestPythonAdapterHealthCheck(t *testing.T) {
	python := writeFakeInterpreter(t, "#!/bin/sh\necho \"Python 3.12.0\"\nexit 0\n")
	adapter := newTestAdapter(t, python)
	require.NoError(t, adapter.HealthCheck(context.Background()))

	broken := newTestAdapter(t, filepath.Join(t.TempDir(), "missing"))
	err := broken.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.KindExecution, types.KindOf(err))
}

func TestPythonAdapterInfo(t *testing.T) {
	python := writeFakeInterpreter(t, "#!/bin/sh\nexit 0\n")
	workspace := t.TempDir()
	adapter, err := NewPythonAdapter(Config{
		PythonPath: python,
		Workspace:  workspace,
		MaxActive:  7,
	})
	require.NoError(t, err)

	info := adapter.Info()
	assert.Equal(t, python, info.Interpreter)
	assert.Equal(t, workspace, info.Workspace)
	assert.Equal(t, 0, info.Active)
	assert.Equal(t, 7, info.MaxActive)
}

func TestPruneDebugFiles(t *testing.T) {
	python := writeFakeInterpreter(t, "#!/bin/sh\nexit 0\n")
	adapter := newTestAdapter(t, python)

	old := time.Now().Add(-2 * time.Hour)
	oldDebug := filepath.Join(adapter.workspace, "debug_a_1.py")
	require.NoError(t, os.WriteFile(oldDebug, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(oldDebug, old, old))

	freshDebug := filepath.Join(adapter.workspace, "debug_b_2.py")
	require.NoError(t, os.WriteFile(freshDebug, []byte("x"), 0o644))

	stray := filepath.Join(adapter.workspace, "stray.py")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(stray, old, old))

	removed, err := adapter.PruneDebugFiles(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(oldDebug)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshDebug)
	assert.NoError(t, err)
	_, err = os.Stat(stray)
	assert.NoError(t, err, "only debug_ copies are pruned")
}
