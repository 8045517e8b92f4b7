package server

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"textgrab/acquire"
	"textgrab/controller"
)

// Fixed user-facing messages for acquisition failures. The controller owns
// the recognition-side messages; these cover everything that goes wrong
// before an image reaches it.
const (
	msgMissingFile          = "No image file in the request."
	msgReadFailed           = "Could not read the uploaded file."
	msgNotImage             = "The selected file is not a recognizable image."
	msgTooLarge             = "The image is too large to process."
	msgClipboardUnsupported = "Clipboard access is not available in this environment."
	msgClipboardDenied      = "Clipboard permission was denied."
	msgClipboardNoImage     = "No image found on the clipboard."
	msgCaptureFailed        = "Screen capture failed."
	msgNothingToCopy        = "No recognized text to copy."
)

// handleError shapes routing and transport failures as JSON. A body over
// the fiber limit is rejected before handleRecognize ever runs, so the
// fixed oversize message is applied here.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	if code == fiber.StatusRequestEntityTooLarge && c.Path() == "/api/recognize" {
		s.ctrl.ReportError(msgTooLarge)
		return c.Status(code).JSON(fiber.Map{
			"accepted": false,
			"error":    msgTooLarge,
			"state":    s.ctrl.Snapshot(),
		})
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "textgrab",
	})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Snapshot())
}

func (s *Server) handleRecognize(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return s.acquisitionError(c, msgMissingFile)
	}

	f, err := fileHeader.Open()
	if err != nil {
		log.Error().Err(err).Str("file", fileHeader.Filename).Msg("failed to open upload")
		return s.acquisitionError(c, msgReadFailed)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		log.Error().Err(err).Str("file", fileHeader.Filename).Msg("failed to read upload")
		return s.acquisitionError(c, msgReadFailed)
	}

	payload, err := acquire.FromBytes(data, fileHeader.Filename, s.maxUpload)
	if err != nil {
		return s.acquisitionError(c, payloadMessage(err))
	}

	return s.submit(c, payload)
}

func (s *Server) handlePaste(c *fiber.Ctx) error {
	payload, err := s.clip.ReadImage(s.maxUpload)
	if err != nil {
		return s.acquisitionError(c, clipboardMessage(err))
	}
	return s.submit(c, payload)
}

func (s *Server) handleScreenshot(c *fiber.Ctx) error {
	payload, err := acquire.CaptureScreen()
	if err != nil {
		log.Error().Err(err).Msg("screen capture failed")
		return s.acquisitionError(c, msgCaptureFailed)
	}
	return s.submit(c, payload)
}

// submit hands a payload to the controller. A drop while busy is not an
// error: the response just reports accepted=false and the unchanged state.
func (s *Server) submit(c *fiber.Ctx, payload acquire.Payload) error {
	accepted := s.ctrl.Submit(payload)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted": accepted,
		"state":    s.ctrl.Snapshot(),
	})
}

// acquisitionError surfaces an adapter failure to the user. The controller
// drops the report unless it is idle, which is exactly the contract: a
// running recognition is never interrupted by a failed acquisition.
func (s *Server) acquisitionError(c *fiber.Ctx, msg string) error {
	s.ctrl.ReportError(msg)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"accepted": false,
		"error":    msg,
		"state":    s.ctrl.Snapshot(),
	})
}

func (s *Server) handleCopy(c *fiber.Ctx) error {
	st := s.ctrl.Snapshot()
	if st.Stage != controller.StageDone {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": msgNothingToCopy,
		})
	}

	if err := s.clip.WriteText(st.Text); err != nil {
		log.Error().Err(err).Msg("clipboard write failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": clipboardMessage(err),
		})
	}

	return c.JSON(fiber.Map{
		"copied":     true,
		"characters": len(st.Text),
	})
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	s.ctrl.Reset()
	return c.JSON(s.ctrl.Snapshot())
}

func (s *Server) handlePreview(c *fiber.Ctx) error {
	data, mime, ok := s.ctrl.PreviewData(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no such preview",
		})
	}
	c.Set(fiber.HeaderContentType, mime)
	return c.Send(data)
}

func payloadMessage(err error) string {
	switch {
	case errors.Is(err, acquire.ErrTooLarge):
		return msgTooLarge
	case errors.Is(err, acquire.ErrNotImage):
		return msgNotImage
	default:
		return msgReadFailed
	}
}

func clipboardMessage(err error) string {
	switch {
	case errors.Is(err, acquire.ErrClipboardNoImage):
		return msgClipboardNoImage
	case errors.Is(err, acquire.ErrClipboardDenied):
		return msgClipboardDenied
	case errors.Is(err, acquire.ErrTooLarge):
		return msgTooLarge
	case errors.Is(err, acquire.ErrNotImage):
		return msgNotImage
	default:
		return msgClipboardUnsupported
	}
}
