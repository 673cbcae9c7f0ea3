// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStateAppendOrder(t *testing.T) {
	s := NewSessionState("s1")
	require.False(t, s.LastActivityAt.Before(s.CreatedAt))

	s.AppendTurn(RoleUser, "first")
	s.AppendTurn(RoleAssistant, "second")
	s.AppendExecution("first", "ok", 12)

	require.Len(t, s.Turns, 2)
	assert.Equal(t, RoleUser, s.Turns[0].Role)
	assert.Equal(t, RoleAssistant, s.Turns[1].Role)
	assert.False(t, s.Turns[1].Timestamp.Before(s.Turns[0].Timestamp))

	sum := s.Summary()
	assert.Equal(t, 2, sum.ConversationLength)
	assert.Equal(t, 1, sum.ExecutionCount)
	assert.Equal(t, 0, sum.VariablesCount)
}

func TestSessionStateTouchAndReset(t *testing.T) {
	s := NewSessionState("s1")
	created := s.CreatedAt

	s.Touch()
	assert.False(t, s.LastActivityAt.Before(created))

	s.Variables["x"] = 42
	s.AppendTurn(RoleUser, "hi")
	s.Reset()

	assert.Empty(t, s.Turns)
	assert.Empty(t, s.Executions)
	assert.Empty(t, s.Variables)
	assert.NotNil(t, s.Variables)
}

func TestErrorKindClassification(t *testing.T) {
	base := NewTimeoutError("killed after %dms", 200)
	wrapped := fmt.Errorf("run failed: %w", base)

	assert.Equal(t, KindTimeout, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))

	var e *Error
	require.True(t, errors.As(wrapped, &e))
	assert.True(t, e.Retryable)
}

func TestErrorCauseChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewProviderError("request failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "provider")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSkillNotFoundDetails(t *testing.T) {
	err := NewSkillNotFoundError("summarize")
	assert.Equal(t, "summarize", err.Details["skill"])
	assert.NotEmpty(t, err.Suggestion)
	assert.Equal(t, KindSkillNotFound, KindOf(err))
}
