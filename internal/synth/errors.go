package synth

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a synthesis failure.
type Kind string

const (
	KindEmptyInput           Kind = "empty_input"
	KindOversizeInput        Kind = "oversize_input"
	KindSynthesisFailure     Kind = "synthesis_failure"
	KindConcatenationFailure Kind = "concatenation_failure"
	KindVoiceNotFound        Kind = "voice_not_found"
	KindUnauthenticated      Kind = "unauthenticated"
	KindCanceled             Kind = "canceled"
	KindInternal             Kind = "internal"
)

// User-facing messages. Backend detail never reaches the caller.
const (
	MessageEmptyInput    = "Please enter some text."
	MessageVoiceNotFound = "No voices found for this gender. Default voice will be used."
	MessageFailed        = "Voice generation failed. Please try again."
)

// Error is returned by the pipeline. Chunk is the zero-based chunk index
// for per-chunk failures and -1 otherwise.
type Error struct {
	Kind  Kind
	Chunk int
	Err   error
}

func (e *Error) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("%s (chunk %d): %v", e.Kind, e.Chunk, e.Err)
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the text shown to end users for this error.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindEmptyInput:
		return MessageEmptyInput
	case KindOversizeInput:
		return e.Err.Error()
	case KindUnauthenticated:
		return "Invalid password."
	case KindCanceled:
		return "Request canceled."
	default:
		return MessageFailed
	}
}

func newError(kind Kind, chunk int, err error) *Error {
	return &Error{Kind: kind, Chunk: chunk, Err: err}
}

// KindOf returns the Kind of err, KindCanceled for context errors and
// KindInternal for anything else. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindInternal
}

// UserMessage returns the end-user text for any error.
func UserMessage(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.UserMessage()
	}
	return MessageFailed
}

// Unauthenticated builds the error returned when the password gate refuses a request.
func Unauthenticated(err error) *Error {
	return newError(KindUnauthenticated, -1, err)
}
