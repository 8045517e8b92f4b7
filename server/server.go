// Package server exposes the recognition workflow over HTTP: a JSON API
// driven by the embedded browser UI, a server-sent event stream of state
// snapshots, and the preview image endpoint.
package server

import (
	"net"
	"time"

	"github.com/gofiber/fiber/v2"

	"textgrab/acquire"
	"textgrab/controller"
)

// shutdownTimeout bounds the connection drain on Shutdown.
const shutdownTimeout = 5 * time.Second

type Server struct {
	app       *fiber.App
	ctrl      *controller.Controller
	clip      *acquire.Clipboard
	maxUpload int64
}

// New wires the fiber app around a controller. maxUpload caps accepted
// image payloads in bytes.
func New(ctrl *controller.Controller, clip *acquire.Clipboard, maxUpload int64) *Server {
	s := &Server{ctrl: ctrl, clip: clip, maxUpload: maxUpload}
	s.app = fiber.New(fiber.Config{
		AppName:               "textgrab",
		DisableStartupMessage: true,
		// Leave headroom for multipart framing around the image itself.
		BodyLimit:    int(maxUpload) + 1<<20,
		ErrorHandler: s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.handleHealth)

	s.app.Get("/api/state", s.handleState)
	s.app.Get("/api/events", s.handleEvents)
	s.app.Post("/api/recognize", s.handleRecognize)
	s.app.Post("/api/paste", s.handlePaste)
	s.app.Post("/api/screenshot", s.handleScreenshot)
	s.app.Post("/api/copy", s.handleCopy)
	s.app.Post("/api/reset", s.handleReset)

	s.app.Get("/preview/:id", s.handlePreview)

	// UI assets last so the API keeps priority.
	s.app.Use("/", s.static())
}

// Listen blocks serving HTTP on addr.
func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

// Serve blocks serving HTTP on an existing listener.
func (s *Server) Serve(ln net.Listener) error { return s.app.Listener(ln) }

// Shutdown stops the server. The controller is closed first: open event
// streams end only when its subscriber channels close, and the connection
// drain waits on them. The drain itself is bounded by shutdownTimeout.
func (s *Server) Shutdown() error {
	s.ctrl.Close()
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}
