package handlers

import (
	"errors"
	"net/http"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/services"
	"github.com/easebot/rankledger/internal/dto"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles operator authentication.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login godoc
// @Summary Exchange operator credentials for a session token
// @Accept json
// @Produce json
// @Param credentials body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operatorID and password are required"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.OperatorID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrConfiguration):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "login disabled"})
		case errors.Is(err, apperrors.ErrAuthentication):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		}
		return
	}
	c.JSON(http.StatusOK, dto.LoginResponse{Token: token})
}
