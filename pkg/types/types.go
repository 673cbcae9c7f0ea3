// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package types contains shared types used across the heddle orchestrator.
// This package breaks import cycles by providing common types that the
// agent, planner, llm, and pipeline packages all depend on.
package types

import (
	"context"
	"time"
)

// Role identifies the author of a chat message or conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single chat-completion message.
type Message struct {
	// Role is one of RoleUser, RoleAssistant, RoleSystem
	Role Role

	// Content is the message text
	Content string
}

// CompletionOptions tunes a single Complete call.
// Zero values fall back to DefaultMaxTokens / DefaultTemperature and the
// client's configured model.
type CompletionOptions struct {
	// MaxTokens caps the completion length
	MaxTokens int

	// Temperature controls sampling randomness
	Temperature float64

	// Model overrides the client's default model for this call
	Model string
}

// Defaults applied by every ChatCompleter implementation when the
// corresponding option is unset.
const (
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.7
)

// Usage reports token consumption for one completion.
// All fields are zero when the provider omits usage data.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the provider-agnostic result of a Complete call.
type CompletionResponse struct {
	// Content is the generated text
	Content string

	// Model is the identifier the provider actually used
	Model string

	// Usage is the token accounting, zeros if not reported
	Usage Usage
}

// ChatCompleter is the provider-agnostic chat-completion interface.
// Implementations differ only in how they transmit system messages:
// anthropic-like clients extract them into an out-of-band field,
// openai-compatible clients send them inline.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*CompletionResponse, error)
}

// ConversationTurn is one entry in a session's conversation history.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionRecord captures one completed sandbox execution.
type ExecutionRecord struct {
	Task       string    `json:"task"`
	Output     string    `json:"output"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"durationMs"`
}

// SessionState is the mutable state owned by exactly one agent.
//
// It carries no lock: the owning agent serializes all mutation through its
// own Run mutex, and external callers may only inspect the state between
// Run calls. LastActivityAt never precedes CreatedAt.
type SessionState struct {
	SessionID      string
	CreatedAt      time.Time
	LastActivityAt time.Time

	// Turns is the ordered conversation history, oldest first.
	Turns []ConversationTurn

	// Executions is the ordered record of successful sandbox runs.
	Executions []ExecutionRecord

	// Variables maps names to JSON-encodable values surfaced by
	// sandbox executions.
	Variables map[string]any
}

// NewSessionState creates the state for a fresh session.
func NewSessionState(sessionID string) *SessionState {
	now := time.Now()
	return &SessionState{
		SessionID:      sessionID,
		CreatedAt:      now,
		LastActivityAt: now,
		Variables:      make(map[string]any),
	}
}

// AppendTurn adds a conversation turn with the current timestamp.
func (s *SessionState) AppendTurn(role Role, content string) {
	s.Turns = append(s.Turns, ConversationTurn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// AppendExecution records a completed sandbox run.
func (s *SessionState) AppendExecution(task, output string, durationMs int64) {
	s.Executions = append(s.Executions, ExecutionRecord{
		Task:       task,
		Output:     output,
		Timestamp:  time.Now(),
		DurationMs: durationMs,
	})
}

// Touch refreshes the activity timestamp.
func (s *SessionState) Touch() {
	s.LastActivityAt = time.Now()
}

// Summary returns the compact size summary reported in task results.
func (s *SessionState) Summary() StateSummary {
	return StateSummary{
		ConversationLength: len(s.Turns),
		ExecutionCount:     len(s.Executions),
		VariablesCount:     len(s.Variables),
	}
}

// Reset clears history, execution records, and variables.
func (s *SessionState) Reset() {
	s.Turns = nil
	s.Executions = nil
	s.Variables = make(map[string]any)
}

// Clone returns a deep copy safe to read after the agent resumes mutating.
func (s *SessionState) Clone() *SessionState {
	clone := &SessionState{
		SessionID:      s.SessionID,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		Turns:          make([]ConversationTurn, len(s.Turns)),
		Executions:     make([]ExecutionRecord, len(s.Executions)),
		Variables:      make(map[string]any, len(s.Variables)),
	}
	copy(clone.Turns, s.Turns)
	copy(clone.Executions, s.Executions)
	for k, v := range s.Variables {
		clone.Variables[k] = v
	}
	return clone
}

// StateSummary is the compact session snapshot included in TaskResult.
type StateSummary struct {
	ConversationLength int `json:"conversationLength"`
	ExecutionCount     int `json:"executionCount"`
	VariablesCount     int `json:"variablesCount"`
}

// TaskMetadata counts the work behind one task.
type TaskMetadata struct {
	// LLMCalls is the number of completions issued (plan + implement)
	LLMCalls int `json:"llmCalls"`

	// SkillCalls is the number of executor.execute occurrences in the
	// generated program
	SkillCalls int `json:"skillCalls"`

	// TotalTokens sums token usage across all completions
	TotalTokens int `json:"totalTokens"`
}

// TaskResult is the structured outcome of one agent Run.
// Exactly one of Output or Error is meaningfully populated, keyed by
// Success. State reflects session sizes after this call's mutations.
type TaskResult struct {
	Success    bool         `json:"success"`
	Output     string       `json:"output,omitempty"`
	Error      string       `json:"error,omitempty"`
	ErrorKind  ErrorKind    `json:"errorKind,omitempty"`
	DurationMs int64        `json:"executionTime"`
	SessionID  string       `json:"sessionId"`
	State      StateSummary `json:"state"`
	Metadata   TaskMetadata `json:"metadata"`
}
