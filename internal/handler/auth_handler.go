package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/auth"
	"taskboard/internal/session"
	"taskboard/internal/sync"
)

type AuthHandler struct {
	session  *session.SessionStore
	provider *auth.DocstoreProvider
	manager  *sync.Manager
	logger   *zap.Logger
}

func NewAuthHandler(session *session.SessionStore, provider *auth.DocstoreProvider, manager *sync.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{session: session, provider: provider, manager: manager, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	if err := h.session.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		switch {
		case h.session.ConnectionError():
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "connection_error"})
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrWrongPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		case errors.Is(err, auth.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed"})
		}
		return
	}

	ident := h.session.Identity()
	c.JSON(http.StatusOK, gin.H{
		"token":   ident.Token,
		"user_id": ident.UserID,
		"profile": h.session.Profile(),
	})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	u, err := h.provider.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("Register failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user_id": u.ID})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	userID := c.GetString("user_id")
	h.session.SignOut(c.Request.Context())
	if userID != "" {
		h.manager.Release(userID)
	}
	c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
}

func (h *AuthHandler) Session(c *gin.Context) {
	ident := h.session.Identity()
	if ident == nil {
		c.JSON(http.StatusOK, gin.H{"signed_in": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"signed_in":        true,
		"user_id":          ident.UserID,
		"profile":          h.session.Profile(),
		"connection_error": h.session.ConnectionError(),
	})
}

func (h *AuthHandler) RetryConnection(c *gin.Context) {
	if err := h.session.RetryConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "connection_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": h.session.Profile()})
}
