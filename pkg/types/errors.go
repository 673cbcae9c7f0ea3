// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies orchestrator failures for machine consumption.
type ErrorKind string

const (
	// KindValidation: task missing/empty, or generated code empty after
	// normalization.
	KindValidation ErrorKind = "validation"

	// KindParse: the plan or program could not be extracted from LLM output.
	KindParse ErrorKind = "parse"

	// KindSkillNotFound: the plan names a skill absent from the registry.
	KindSkillNotFound ErrorKind = "skill_not_found"

	// KindProvider: the LLM call failed at the transport or protocol level.
	KindProvider ErrorKind = "provider"

	// KindExecution: the sandbox exited non-zero.
	KindExecution ErrorKind = "execution"

	// KindTimeout: the sandbox exceeded its wall clock.
	KindTimeout ErrorKind = "timeout"

	// KindResourceExhausted: a capacity limit rejected the operation.
	KindResourceExhausted ErrorKind = "resource_exhausted"
)

// Error is a structured orchestrator error.
type Error struct {
	// Kind is the machine-readable classification
	Kind ErrorKind

	// Message is a human-readable description, free of stack traces
	Message string

	// Details provides additional context
	Details map[string]any

	// Retryable indicates whether the operation may be retried
	Retryable bool

	// Suggestion hints at a fix
	Suggestion string

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail attaches a detail entry and returns the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError reports invalid caller input.
func NewValidationError(format string, args ...any) *Error {
	return NewError(KindValidation, format, args...)
}

// NewParseError reports unextractable LLM output.
func NewParseError(format string, args ...any) *Error {
	return NewError(KindParse, format, args...)
}

// NewSkillNotFoundError reports a plan referencing an unknown skill.
func NewSkillNotFoundError(name string) *Error {
	e := NewError(KindSkillNotFound, "skill %q is not registered", name)
	e.Suggestion = "check the skills directory or reload the registry"
	return e.WithDetail("skill", name)
}

// NewProviderError reports an LLM transport/protocol failure.
func NewProviderError(format string, args ...any) *Error {
	e := NewError(KindProvider, format, args...)
	e.Retryable = true
	return e
}

// NewExecutionError reports a non-zero sandbox exit.
func NewExecutionError(format string, args ...any) *Error {
	return NewError(KindExecution, format, args...)
}

// NewTimeoutError reports an exceeded wall clock.
func NewTimeoutError(format string, args ...any) *Error {
	e := NewError(KindTimeout, format, args...)
	e.Retryable = true
	return e
}

// NewResourceExhaustedError reports a capacity rejection.
func NewResourceExhaustedError(format string, args ...any) *Error {
	e := NewError(KindResourceExhausted, format, args...)
	e.Retryable = true
	return e
}

// KindOf extracts the ErrorKind from err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
