package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/config"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/middleware"
	"github.com/chiangyiyang/sr-twrw-line-bot/pkg/response"
)

// AuthHandler issues admin tokens.
type AuthHandler struct {
	cfg *config.Config
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/v1/auth/login. Admin login is disabled until a
// password is configured.
func (h *AuthHandler) Login(c *gin.Context) {
	if h.cfg.AdminPassword == "" {
		response.Error(c, http.StatusForbidden, "Admin login is not configured", nil)
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.AdminPassword)) == 1
	if !userOK || !passOK {
		response.Error(c, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}

	token, err := middleware.GenerateToken(h.cfg.JWTSecret, req.Username)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	response.Success(c, gin.H{"token": token})
}
