package acquire

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	xclipboard "golang.design/x/clipboard"
)

// Clipboard error kinds, one per user-distinguishable failure.
var (
	ErrClipboardUnavailable = errors.New("clipboard unavailable")
	ErrClipboardDenied      = errors.New("clipboard access denied")
	ErrClipboardNoImage     = errors.New("no image on clipboard")
)

// System is the narrow surface of the OS clipboard used here, extracted so
// tests can substitute a fake.
type System interface {
	Init() error
	ReadImage() []byte
	WriteText(text []byte)
}

type osClipboard struct{}

func (osClipboard) Init() error { return xclipboard.Init() }

func (osClipboard) ReadImage() []byte { return xclipboard.Read(xclipboard.FmtImage) }

func (osClipboard) WriteText(text []byte) { xclipboard.Write(xclipboard.FmtText, text) }

// Clipboard reads image payloads from and writes text to the system
// clipboard. The backend is initialized once on first use; an init failure
// is sticky.
type Clipboard struct {
	sys      System
	initOnce sync.Once
	initErr  error
}

// NewClipboard returns a Clipboard over the real OS backend.
func NewClipboard() *Clipboard { return &Clipboard{sys: osClipboard{}} }

// NewClipboardWithSystem returns a Clipboard over the given backend.
func NewClipboardWithSystem(sys System) *Clipboard { return &Clipboard{sys: sys} }

func (c *Clipboard) ensureInit() error {
	c.initOnce.Do(func() {
		c.initErr = c.sys.Init()
	})
	if c.initErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", classifyInitError(c.initErr), c.initErr)
}

// ReadImage scans the clipboard for an image payload.
func (c *Clipboard) ReadImage(limit int64) (Payload, error) {
	if err := c.ensureInit(); err != nil {
		return Payload{}, err
	}
	data := c.sys.ReadImage()
	if len(data) == 0 {
		return Payload{}, ErrClipboardNoImage
	}
	return FromBytes(data, "clipboard", limit)
}

// WriteText places text on the clipboard.
func (c *Clipboard) WriteText(text string) error {
	if err := c.ensureInit(); err != nil {
		return err
	}
	c.sys.WriteText([]byte(text))
	return nil
}

// classifyInitError separates permission denials from a missing backend.
func classifyInitError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "denied") || strings.Contains(msg, "permission") || strings.Contains(msg, "not authorized") {
		return ErrClipboardDenied
	}
	return ErrClipboardUnavailable
}
