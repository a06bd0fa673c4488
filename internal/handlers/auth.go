package handlers

import (
	"net/http"

	"gamedash/internal/accounts"
	"gamedash/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AuthHandlers serves login and logout for the dashboard API.
type AuthHandlers struct {
	auth  *middleware.AuthService
	users *accounts.Store
}

// NewAuthHandlers wires the auth service and user store.
func NewAuthHandlers(auth *middleware.AuthService, users *accounts.Store) *AuthHandlers {
	return &AuthHandlers{auth: auth, users: users}
}

type loginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=1,max=128"`
}

// APILogin exchanges credentials for a session token.
func (h *AuthHandlers) APILogin(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, ok := h.users.Get(req.Username)
	if !ok || !h.auth.CheckPassword(req.Password, user.PasswordHash) {
		log.Warn().Str("username", req.Username).Str("ip", c.ClientIP()).Msg("Failed login attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, err := h.auth.GenerateToken(user.Username, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	h.auth.SetAuthCookie(c, token)
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"username": user.Username,
		"role":     user.Role,
	})
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c *gin.Context) {
	h.auth.ClearAuthCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}
