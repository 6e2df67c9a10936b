package rag

import (
	"fmt"

	"github.com/ziadkadry99/clinrag/internal/llm"
)

// GenerationError reports a failed answer synthesis with the failure
// class attached, so callers can map it to a status code or retry hint.
type GenerationError struct {
	Kind llm.FailureKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
