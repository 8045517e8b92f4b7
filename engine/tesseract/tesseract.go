//go:build ocr

// Package tesseract implements the recognition engine contract on a local
// Tesseract installation through gosseract. It needs cgo and the Tesseract
// libraries, so it only compiles behind the "ocr" build tag; without the tag
// a stub that reports ErrNotEnabled takes its place.
package tesseract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"textgrab/engine"
)

// Engine is a Tesseract-backed OCR engine. The gosseract client is not safe
// for concurrent use, so calls are serialized.
type Engine struct {
	mu            sync.Mutex
	clientFactory func() *gosseract.Client
	client        *gosseract.Client
	progress      engine.ProgressFunc
}

// New creates a Tesseract engine. Call Init before Recognize.
func New(opts ...Option) *Engine {
	e := &Engine{clientFactory: gosseract.NewClient}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) emit(status string, fraction float64) {
	if e.progress != nil {
		e.progress(engine.Progress{Status: status, Fraction: fraction})
	}
}

// Init loads the language data. An unknown language code fails here, not on
// the first image.
func (e *Engine) Init(ctx context.Context, language string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return nil
	}

	e.emit("loading tesseract", 0.2)
	c := e.clientFactory()
	if language != "" {
		if err := c.SetLanguage(language); err != nil {
			c.Close()
			return &engine.InitError{Engine: e.Name(), Err: fmt.Errorf("set language %q: %w", language, err)}
		}
	}

	e.client = c
	e.emit("recognizer ready", 1)
	return nil
}

// Recognize runs OCR on the image bytes. ctx is not consulted; gosseract has
// no cancellation, so callers bound the call externally.
func (e *Engine) Recognize(ctx context.Context, image []byte) (engine.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: errors.New("engine not initialized")}
	}

	e.emit("recognizing", 0.25)
	if err := e.client.SetImageFromBytes(image); err != nil {
		return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: fmt.Errorf("set image: %w", err)}
	}
	text, err := e.client.Text()
	if err != nil {
		return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: err}
	}

	plain := strings.TrimSpace(text)
	if plain == "" {
		return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: engine.ErrNoText}
	}

	e.emit("finished", 1)
	return engine.Result{Text: plain}, nil
}

// Terminate closes the underlying client.
func (e *Engine) Terminate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
