//go:build !ocr

// Package tesseract implements the recognition engine contract on a local
// Tesseract installation through gosseract.
//
// This is the stub used when the "ocr" build tag is not set: every call
// reports ErrNotEnabled. Rebuild with -tags ocr (and Tesseract installed) to
// enable it.
package tesseract

import (
	"context"
	"errors"

	"textgrab/engine"
)

// ErrNotEnabled is returned when the tesseract engine is selected but the
// binary was built without the "ocr" build tag.
var ErrNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags ocr")

// Engine is the stub Tesseract engine.
type Engine struct {
	progress engine.ProgressFunc
}

// New creates a stub engine whose Init always fails with ErrNotEnabled.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Init(ctx context.Context, language string) error {
	return &engine.InitError{Engine: e.Name(), Err: ErrNotEnabled}
}

func (e *Engine) Recognize(ctx context.Context, image []byte) (engine.Result, error) {
	return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: ErrNotEnabled}
}

func (e *Engine) Terminate(ctx context.Context) error { return nil }
