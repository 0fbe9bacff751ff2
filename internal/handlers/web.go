package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/mediadrop/internal/stats"
)

const notFoundPage = "404.html"

// WebHandler serves the static website for every route no other handler
// claims, falling back to the site's 404 page.
type WebHandler struct {
	root   string
	stats  *stats.Stats
	logger *slog.Logger
}

// NewWebHandler creates a static site handler rooted at dir. st may be nil.
func NewWebHandler(log *slog.Logger, dir string, st *stats.Stats) *WebHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebHandler{
		root:   dir,
		stats:  st,
		logger: log.With(slog.String("handler", "web")),
	}
}

// Register mounts the catch-all route.
func (h *WebHandler) Register(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.stats != nil {
		mw = append(mw, h.stats.Middleware(stats.WebsiteVisitors))
	}
	e.GET("/*", h.Serve, mw...)
	e.HEAD("/*", h.Serve, mw...)
}

// Serve resolves the request path inside the site root.
func (h *WebHandler) Serve(c echo.Context) error {
	rel := path.Clean("/" + c.Param("*"))
	full := filepath.Join(h.root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
	}
	if err != nil || info.IsDir() {
		return h.notFound(c)
	}
	return c.File(full)
}

func (h *WebHandler) notFound(c echo.Context) error {
	data, err := os.ReadFile(filepath.Join(h.root, notFoundPage))
	if err != nil {
		if !os.IsNotExist(err) {
			h.logger.Warn("read 404 page", slog.Any("error", err))
		}
		return c.String(http.StatusNotFound, "Not Found")
	}
	if strings.EqualFold(c.Request().Method, http.MethodHead) {
		return c.NoContent(http.StatusNotFound)
	}
	return c.HTMLBlob(http.StatusNotFound, data)
}
