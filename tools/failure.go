package tools

import (
	"errors"
	"fmt"

	"velora/sandbox"
)

// Kind classifies a failed tool call.
type Kind string

const (
	KindInvalid          Kind = "invalid"
	KindSandboxViolation Kind = "sandbox_violation"
	KindNotFound         Kind = "not_found"
	KindToolNotFound     Kind = "tool_not_found"
	KindHandler          Kind = "handler"
)

// JSON-RPC error codes carried by failures.
const (
	CodeInvalidParams    = -32602
	CodeResourceNotFound = -32002
	CodeInternalError    = -32603
)

// Failure is the error half of a tool call result.
type Failure struct {
	Kind    Kind
	Code    int
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

func codeFor(kind Kind) int {
	switch kind {
	case KindInvalid, KindSandboxViolation, KindToolNotFound:
		return CodeInvalidParams
	case KindNotFound:
		return CodeResourceNotFound
	default:
		return CodeInternalError
	}
}

func NewFailure(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Code: codeFor(kind), Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) *Failure {
	return NewFailure(KindInvalid, format, args...)
}

func NotFound(format string, args ...any) *Failure {
	return NewFailure(KindNotFound, format, args...)
}

// AsFailure converts any handler error into a *Failure. Sandbox
// violations keep their constant message; everything else that is not
// already a Failure becomes a handler failure with its message preserved.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, sandbox.ErrOutsideWorkspace) {
		return NewFailure(KindSandboxViolation, "%s", sandbox.ViolationMessage)
	}
	return NewFailure(KindHandler, "%s", err.Error())
}
