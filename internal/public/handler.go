package public

import (
	"context"
	"errors"
	"net/http"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/arbiter"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/catalog"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/logger"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/stats"

	"github.com/gin-gonic/gin"
)

// HeaderSessionToken carries the view credential: issued in the open-view
// response body and echoed back by the client on renewal.
const HeaderSessionToken = "X-Session-Token"

// Catalog is the slice of the catalog the public surface reads.
type Catalog interface {
	AssignmentView(ctx context.Context, token string) (*catalog.AssignmentView, error)
}

type Handler struct {
	arbiter  *arbiter.Arbiter
	recorder *stats.Recorder
	catalog  Catalog
}

func NewHandler(arb *arbiter.Arbiter, recorder *stats.Recorder, cat Catalog) *Handler {
	return &Handler{
		arbiter:  arb,
		recorder: recorder,
		catalog:  cat,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	pub := r.Group("/public")
	pub.GET("/view/:token", h.View)
	pub.POST("/heartbeat", h.Heartbeat)
	pub.POST("/leave", h.Leave)
	pub.POST("/event", h.Event)
}

func (h *Handler) View(c *gin.Context) {
	token := c.Param("token")

	claimant := arbiter.Identity{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	presented := c.GetHeader(HeaderSessionToken)

	lease, err := h.arbiter.Claim(c.Request.Context(), token, claimant, presented)
	if err != nil {
		switch {
		case errors.Is(err, arbiter.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid token"})
		case errors.Is(err, arbiter.ErrConflict):
			c.JSON(http.StatusForbidden, gin.H{
				"error": "assignment is active in another session",
			})
		default:
			logger.Error("claim failed", map[string]any{"error": err.Error()})
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		}
		return
	}

	view, err := h.catalog.AssignmentView(c.Request.Context(), token)
	if err != nil {
		// The claim just resolved this token, so even ErrNotFound here
		// means the store failed mid-request, not a bad token.
		logger.Error("view load failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recipient":     view.RecipientName,
		"album":         view.AlbumTitle,
		"album_cover":   view.AlbumCover,
		"media":         view.Media,
		"session_token": lease.Credential,
		"assignment_id": lease.AssignmentID,
	})
}

type heartbeatRequest struct {
	SessionToken string `json:"session_token" binding:"required"`
}

func (h *Handler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.arbiter.Heartbeat(c.Request.Context(), req.SessionToken)
	if errors.Is(err, arbiter.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Leave(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.arbiter.Release(c.Request.Context(), req.SessionToken); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type eventRequest struct {
	SessionToken string  `json:"session_token" binding:"required"`
	EventType    string  `json:"event_type" binding:"required"`
	MediaItemID  *int64  `json:"media_item_id"`
	Details      *string `json:"details"`
}

func (h *Handler) Event(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	recorded, err := h.recorder.Record(c.Request.Context(),
		req.SessionToken, req.EventType, req.MediaItemID, req.Details)
	if errors.Is(err, stats.ErrUnauthorized) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid or expired session"})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		return
	}

	status := "ok"
	if !recorded {
		status = "ignored"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}
