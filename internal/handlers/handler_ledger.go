package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/easebot/rankledger/internal/core/services"
	"github.com/easebot/rankledger/internal/dto"
	"github.com/easebot/rankledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// LedgerHandler serves account queries, audit reads and on-demand backups.
type LedgerHandler struct {
	ledgerService *services.LedgerService
	rankService   *services.RankService
	auditService  *services.AuditService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerService *services.LedgerService, rankService *services.RankService, auditService *services.AuditService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		rankService:   rankService,
		auditService:  auditService,
	}
}

// GetUser godoc
// @Summary Get a user's total, history and resolved rank
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} dto.UserResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/users/{userID} [get]
func (h *LedgerHandler) GetUser(c *gin.Context) {
	userID := c.Param("userID")
	acct, err := h.ledgerService.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("user lookup failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	resp := dto.UserResponse{UserID: userID, Total: acct.Total, History: acct.History}
	if tier := h.rankService.Resolve(acct.Total); tier != nil {
		resp.Rank = tier.RoleID
	}
	c.JSON(http.StatusOK, resp)
}

// GetAuditLog godoc
// @Summary Read recent audit entries, newest first
// @Produce json
// @Param limit query int false "Maximum entries" default(200)
// @Success 200 {array} domain.AuditEntry
// @Router /api/v1/audit [get]
func (h *LedgerHandler) GetAuditLog(c *gin.Context) {
	limit := 200
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := h.auditService.Recent(c.Request.Context(), limit)
	if err != nil {
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("audit read failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// CreateBackup godoc
// @Summary Write a timestamped full-ledger snapshot
// @Produce json
// @Success 200 {object} dto.BackupResponse
// @Router /api/v1/backups [post]
func (h *LedgerHandler) CreateBackup(c *gin.Context) {
	path, err := h.ledgerService.Backup(c.Request.Context())
	if err != nil {
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("backup failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	h.auditService.Record(domain.AuditBackupCreated, map[string]any{"path": path})
	c.JSON(http.StatusOK, dto.BackupResponse{Path: path})
}
