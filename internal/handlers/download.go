package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/memohai/mediadrop/internal/delivery"
	"github.com/memohai/mediadrop/internal/media"
	"github.com/memohai/mediadrop/internal/stats"
)

// Downloader acquires media for a raw link without touching the id cache.
type Downloader interface {
	Acquire(ctx context.Context, rawLink string, kind media.Kind) (*media.Handle, error)
}

// DownloadHandler streams media straight to HTTP clients.
type DownloadHandler struct {
	downloader Downloader
	stats      *stats.Stats
	logger     *slog.Logger
}

// NewDownloadHandler creates the /video and /audio handler. st may be nil.
func NewDownloadHandler(log *slog.Logger, downloader Downloader, st *stats.Stats) *DownloadHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DownloadHandler{
		downloader: downloader,
		stats:      st,
		logger:     log.With(slog.String("handler", "download")),
	}
}

// Register mounts GET /video and GET /audio.
func (h *DownloadHandler) Register(e *echo.Echo) {
	var videoMW, audioMW []echo.MiddlewareFunc
	if h.stats != nil {
		videoMW = append(videoMW, h.stats.Middleware(stats.VideoDownloaders))
		audioMW = append(audioMW, h.stats.Middleware(stats.AudioDownloaders))
	}
	e.GET("/video", h.Video, videoMW...)
	e.GET("/audio", h.Audio, audioMW...)
}

// Video serves GET /video?link=...
func (h *DownloadHandler) Video(c echo.Context) error {
	return h.serve(c, media.Video)
}

// Audio serves GET /audio?link=...
func (h *DownloadHandler) Audio(c echo.Context) error {
	return h.serve(c, media.Audio)
}

func (h *DownloadHandler) serve(c echo.Context, kind media.Kind) error {
	req := c.Request()
	if req.URL.RawQuery == "" {
		return c.String(http.StatusBadRequest, "no query parameters provided")
	}
	links, ok := c.QueryParams()["link"]
	if !ok || len(links) == 0 {
		return c.String(http.StatusBadRequest, "`link` query parameter missing")
	}
	link := links[len(links)-1]

	ctx := req.Context()
	h.logger.InfoContext(ctx, "download requested", slog.String("kind", kind.String()), slog.String("link", link))
	handle, err := h.downloader.Acquire(ctx, link, kind)
	if err != nil {
		h.logger.WarnContext(ctx, "download failed", slog.String("link", link), slog.Any("error", err))
		status, text := delivery.HTTPError(err)
		return c.String(status, text)
	}
	defer handle.Close()

	name := handle.TakeFilename()
	if !validHeaderValue(name) {
		h.logger.WarnContext(ctx, "filename is not a valid header value", slog.String("filename", name))
		return c.String(http.StatusInternalServerError, "Internal server error")
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, kind.MimeType())
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	if handle.SizeExact {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(handle.Size, 10))
	}
	c.Response().WriteHeader(http.StatusOK)
	n, err := io.Copy(c.Response(), handle)
	if err != nil {
		h.logger.ErrorContext(ctx, "stream interrupted", slog.String("link", link), slog.Int64("written", n), slog.Any("error", err))
		return nil
	}
	h.logger.InfoContext(ctx, "download served", slog.String("filename", name), slog.Int64("bytes", n))
	return nil
}

func validHeaderValue(v string) bool {
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < 0x20 && c != '\t') || c == 0x7f {
			return false
		}
	}
	return true
}
