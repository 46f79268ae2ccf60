package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyAnswer is returned when a traversal would terminate without any
// specialist having produced an answer.
var ErrEmptyAnswer = errors.New("graph terminated without an answer")

// ClassificationError signals that the router's completion call failed
// (transport error, timeout or empty output). It is fatal for the request.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// UnrecognizedRouteLabelError reports router output outside the known label
// set. The router recovers from it locally by falling back to the default
// specialist; it is never surfaced to callers.
type UnrecognizedRouteLabelError struct {
	Label string
}

func (e *UnrecognizedRouteLabelError) Error() string {
	return fmt.Sprintf("unrecognized route label %q", e.Label)
}

// RetrievalError wraps a failed retrieval call made by a specialist.
type RetrievalError struct {
	Specialist string
	Err        error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed in %s: %v", e.Specialist, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError wraps a failed or empty completion inside a specialist.
type GenerationError struct {
	Specialist string
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed in %s: %v", e.Specialist, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// AugmentationError reports a failed study-plan step. The augmenter degrades
// to the original answer, so this error is logged rather than returned.
type AugmentationError struct {
	Err error
}

func (e *AugmentationError) Error() string {
	return fmt.Sprintf("augmentation failed: %v", e.Err)
}

func (e *AugmentationError) Unwrap() error { return e.Err }

// ErrorKind classifies an error into the taxonomy above. Unknown errors map
// to "internal"; context cancellation maps to "canceled".
func ErrorKind(err error) string {
	var (
		ce *ClassificationError
		re *RetrievalError
		ge *GenerationError
		ae *AugmentationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ce):
		return "classification"
	case errors.As(err, &re):
		return "retrieval"
	case errors.As(err, &ge):
		return "generation"
	case errors.As(err, &ae):
		return "augmentation"
	case errors.Is(err, ErrEmptyAnswer):
		return "empty_answer"
	case isContextErr(err):
		return "canceled"
	default:
		return "internal"
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
