package handlers

import (
	"encoding/json"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
)

type UpdateDispatcher interface {
	Dispatch(upd tgbotapi.Update)
}

type WebhookHandler struct {
	d UpdateDispatcher
}

func NewWebhookHandler(d UpdateDispatcher) *WebhookHandler {
	return &WebhookHandler{d: d}
}

// Receive queues the update on the sender's lane and acknowledges at once.
// Telegram retries anything that is not a 2xx, so malformed bodies are
// acknowledged too.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var upd tgbotapi.Update
	if err := json.Unmarshal(c.Body(), &upd); err != nil {
		slog.Warn("malformed webhook update", "error", err)
		return c.SendStatus(fiber.StatusOK)
	}

	h.d.Dispatch(upd)
	return c.SendStatus(fiber.StatusOK)
}
