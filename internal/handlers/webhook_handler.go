package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/kiwify"
)

const (
	webhookPath = "/kiwify-webhook"
	// maxWebhookBody matches the DynamoDB item size limit; the raw body is stored with the sale.
	maxWebhookBody = 400 << 10
)

// RegisterWebhookRoutes registers the Kiwify webhook endpoint.
func RegisterWebhookRoutes(r *gin.Engine, cfg HandlerConfig) {
	log := loggerOrDefault(cfg.Logger)

	r.Any(webhookPath, CORS(), func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if _, err := cfg.Webhook.Process(c.Request.Context(), body); err != nil {
			if errors.Is(err, kiwify.ErrMissingTransactionID) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Missing transaction ID"})
				return
			}
			log.WithError(err).Error("error processing webhook")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Webhook processed successfully"})
	})
}
