package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/logger"

	"github.com/gin-gonic/gin"
)

// Cleaner runs the orphaned-media sweep triggered on login and logout.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

type Handler struct {
	service *Service
	issuer  *TokenIssuer
	cleaner Cleaner
}

func NewHandler(service *Service, issuer *TokenIssuer, cleaner Cleaner) *Handler {
	return &Handler{
		service: service,
		issuer:  issuer,
		cleaner: cleaner,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/token", h.Login)
	r.POST("/logout", h.Logout)
}

type loginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.service.Authenticate(c.Request.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect username or password"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		return
	}

	token, err := h.issuer.Issue(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	h.cleanup(c)

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (h *Handler) Logout(c *gin.Context) {
	h.cleanup(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// cleanup is best-effort housekeeping; a failure never blocks auth.
func (h *Handler) cleanup(c *gin.Context) {
	if h.cleaner == nil {
		return
	}
	if err := h.cleaner.Cleanup(c.Request.Context()); err != nil {
		logger.Warn("media cleanup failed", map[string]any{
			"error": err.Error(),
		})
	}
}
