package acquire

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/kbinani/screenshot"
)

// ErrCaptureFailed marks a failed screen grab.
var ErrCaptureFailed = errors.New("screen capture failed")

// CaptureScreen grabs the primary display and returns it as a PNG payload.
func CaptureScreen() (Payload, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return Payload{}, fmt.Errorf("%w: no active displays", ErrCaptureFailed)
	}
	img, err := screenshot.CaptureDisplay(0)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Payload{}, fmt.Errorf("%w: encode: %v", ErrCaptureFailed, err)
	}
	return Payload{Data: buf.Bytes(), MIME: "image/png", Name: "screen.png"}, nil
}
