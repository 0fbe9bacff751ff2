package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// UpdateReceiver accepts an update posted by the chat platform.
type UpdateReceiver interface {
	HandleWebhook(r *http.Request) error
}

// WebhookHandler serves POST /bot.
type WebhookHandler struct {
	receiver UpdateReceiver
	logger   *slog.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(log *slog.Logger, receiver UpdateReceiver) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		receiver: receiver,
		logger:   log.With(slog.String("handler", "webhook")),
	}
}

// Register mounts POST /bot.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/bot", h.Receive)
}

// Receive acknowledges the update immediately; processing continues in the
// background so Telegram does not retry slow deliveries.
func (h *WebhookHandler) Receive(c echo.Context) error {
	if err := h.receiver.HandleWebhook(c.Request()); err != nil {
		h.logger.Warn("rejected update", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid update")
	}
	return c.NoContent(http.StatusOK)
}
