package server

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// handleEvents streams state snapshots as server-sent events. Each update
// carries the full snapshot, so a client that misses intermediate frames
// still renders the current state. The stream ends when the client
// disconnects or the controller shuts down.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	updates, cancel := s.ctrl.Subscribe()

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for st := range updates {
			data, err := json.Marshal(st)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			// Flush fails once the client is gone.
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}
