package server

import (
	"embed"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
)

//go:embed web
var webAssets embed.FS

// static serves the embedded single-page UI.
func (s *Server) static() fiber.Handler {
	return filesystem.New(filesystem.Config{
		Root:       http.FS(webAssets),
		PathPrefix: "web",
		Index:      "index.html",
	})
}
