package handlers

import (
	"io"
	"net/http"

	"seminarbuchung/internal/external"
	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/models"

	"github.com/gin-gonic/gin"
)

// PayPal event bodies are a few kilobytes
const maxWebhookBody = 1 << 20

// PaymentWebhook - POST /public/payment-webhook
// Принимать уведомления PayPal. Ответ всегда 200, иначе PayPal будет повторять доставку
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		logger.WithContext(c.Request.Context()).Warn("Failed to read PayPal webhook body", "error", err)
		c.JSON(http.StatusOK, models.WebhookAck{OK: true})
		return
	}

	ack := h.webhooks.HandleEvent(c.Request.Context(), external.WebhookHeadersFrom(c.Request.Header), body)
	c.JSON(http.StatusOK, ack)
}
