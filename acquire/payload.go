// Package acquire turns the supported input sources (uploads, the system
// clipboard, the screen) into validated image payloads ready for submission.
package acquire

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Payload is one acquired image.
type Payload struct {
	Data []byte
	MIME string
	Name string
}

var (
	// ErrNotImage marks a payload whose content is not a recognized image format.
	ErrNotImage = errors.New("payload is not an image")
	// ErrTooLarge marks a payload over the configured size limit.
	ErrTooLarge = errors.New("payload too large")
)

// FromBytes validates raw bytes into a Payload. The MIME type is sniffed from
// content, never trusted from the sender. limit <= 0 disables the size cap.
func FromBytes(data []byte, name string, limit int64) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, fmt.Errorf("%w: empty payload", ErrNotImage)
	}
	if limit > 0 && int64(len(data)) > limit {
		return Payload{}, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), limit)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return Payload{}, fmt.Errorf("%w: detected %s", ErrNotImage, mime)
	}
	return Payload{Data: data, MIME: mime, Name: name}, nil
}
