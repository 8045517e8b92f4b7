package engine

import "errors"

// ErrNoText reports that a recognition completed but the backend saw no text
// in the image.
var ErrNoText = errors.New("no text detected in image")

// InitError wraps any failure that kept a backend from becoming ready.
type InitError struct {
	Engine string
	Err    error
}

func (e *InitError) Error() string { return e.Engine + " engine init: " + e.Err.Error() }

func (e *InitError) Unwrap() error { return e.Err }

// RecognitionError wraps any failure during a recognition call.
type RecognitionError struct {
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string { return e.Engine + " recognition: " + e.Err.Error() }

func (e *RecognitionError) Unwrap() error { return e.Err }
