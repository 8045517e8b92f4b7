package tesseract

import "textgrab/engine"

// Option configures an Engine.
type Option func(*Engine)

// WithProgress registers a progress listener.
func WithProgress(fn engine.ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}
