// Package engine defines the contract between the workflow controller and
// pluggable OCR backends. Implementations may be remote APIs or local
// libraries; callers treat them as opaque and never retry on their behalf.
package engine

import (
	"context"
	"fmt"
	"strings"
)

// Result carries the outcome of a successful recognition. Text may be empty
// when the backend found nothing but did not fail.
type Result struct {
	Text string
}

// Progress is one out-of-band status event emitted during Init or Recognize.
// Fraction is in [0,1].
type Progress struct {
	Status   string
	Fraction float64
}

// ProgressFunc receives progress events. It may be called from any goroutine
// and must not block.
type ProgressFunc func(Progress)

// Engine is a pluggable OCR backend.
type Engine interface {
	Name() string

	// Init brings the backend up for the given language code. It must be
	// called once before Recognize; failures are reported as *InitError.
	Init(ctx context.Context, language string) error

	// Recognize extracts text from an encoded image. Failures are reported
	// as *RecognitionError.
	Recognize(ctx context.Context, image []byte) (Result, error)

	// Terminate releases backend resources. Best-effort; callers ignore the
	// returned error beyond logging it.
	Terminate(ctx context.Context) error
}

// Kind selects a backend implementation.
type Kind string

const (
	KindOpenRouter Kind = "openrouter"
	KindOpenAI     Kind = "openai"
	KindTesseract  Kind = "tesseract"
)

// ParseKind normalizes a configured engine name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindOpenRouter:
		return KindOpenRouter, nil
	case KindOpenAI:
		return KindOpenAI, nil
	case KindTesseract:
		return KindTesseract, nil
	default:
		return "", fmt.Errorf("unknown engine %q (expected %s, %s, or %s)", s, KindOpenRouter, KindOpenAI, KindTesseract)
	}
}
