package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/services"
	"github.com/easebot/rankledger/internal/dto"
	"github.com/easebot/rankledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// PurchaseHandler handles manual contribution requests.
type PurchaseHandler struct {
	purchaseService *services.PurchaseService
}

// NewPurchaseHandler creates a new PurchaseHandler.
func NewPurchaseHandler(purchaseService *services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchaseService: purchaseService}
}

// Create godoc
// @Summary Register a manual contribution for the authenticated user
// @Description Applies the amount to the caller's ledger; role sync follows asynchronously
// @Accept json
// @Produce json
// @Param purchase body dto.ManualPurchaseRequest true "Contribution"
// @Success 200 {object} dto.ManualPurchaseResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/purchases [post]
func (h *PurchaseHandler) Create(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	userID, ok := middleware.GetUserIDFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req dto.ManualPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "insira um valor válido"})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "insira um valor válido"})
		return
	}

	receipt, err := h.purchaseService.IngestManual(c.Request.Context(), userID, req.Amount)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "insira um valor válido"})
			return
		}
		logger.Error("manual contribution failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	resp := dto.ManualPurchaseResponse{OK: true, Total: receipt.Total}
	if receipt.Promotion != nil {
		resp.NewTier = receipt.Promotion.RoleID
		resp.Promoted = true
	}
	c.JSON(http.StatusOK, resp)
}
