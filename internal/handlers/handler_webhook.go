package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/services"
	"github.com/easebot/rankledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// SignatureHeader is the sender-specific field carrying the hex HMAC-SHA256
// signature of the raw request body.
const SignatureHeader = "X-Ease-Signature"

// maxWebhookBody bounds the raw payload size.
const maxWebhookBody = 256 << 10

// WebhookHandler handles inbound payment notifications.
type WebhookHandler struct {
	purchaseService *services.PurchaseService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(purchaseService *services.PurchaseService) *WebhookHandler {
	return &WebhookHandler{purchaseService: purchaseService}
}

// Receive godoc
// @Summary Ingest a signed purchase notification
// @Description Verifies the HMAC signature over the exact raw body, credits the buyer and applies promotions
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /easebot [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	// The signature covers the exact bytes as received, so the body must be
	// read raw, never re-parsed and re-serialized.
	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}

	sig := c.GetHeader(SignatureHeader)
	receipt, err := h.purchaseService.IngestWebhook(c.Request.Context(), rawBody, sig, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrConfiguration):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured"})
		case errors.Is(err, apperrors.ErrAuthentication):
			msg := "invalid signature"
			if sig == "" {
				msg = "missing signature"
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		default:
			logger.Error("webhook ingestion failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		}
		return
	}

	resp := gin.H{"ok": true}
	if receipt.Note != "" {
		resp["note"] = receipt.Note
	}
	c.JSON(http.StatusOK, resp)
}
