package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/catalog"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/logger"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/mediastore"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/qr"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/stats"

	"github.com/gin-gonic/gin"
)

// Catalog is the slice of the catalog the admin surface drives.
type Catalog interface {
	CreateRecipient(ctx context.Context, r catalog.Recipient) (catalog.Recipient, error)
	ListRecipients(ctx context.Context) ([]catalog.Recipient, error)
	DeleteRecipient(ctx context.Context, id int64) error

	CreateMediaItem(ctx context.Context, m catalog.MediaItem) (catalog.MediaItem, error)
	ListMedia(ctx context.Context) ([]catalog.MediaItem, error)
	DeleteMediaItem(ctx context.Context, id int64) ([]string, error)
	SetMediaCover(ctx context.Context, id int64, filename string) error

	CreateAlbum(ctx context.Context, a catalog.Album) (catalog.Album, error)
	ListAlbums(ctx context.Context) ([]catalog.AlbumWithMedia, error)
	DeleteAlbum(ctx context.Context, id int64) error
	SetAlbumCover(ctx context.Context, id int64, filename string) error
	AddMediaToAlbum(ctx context.Context, albumID, mediaID int64) error
	RemoveMediaFromAlbum(ctx context.Context, albumID, mediaID int64) error

	CreateAssignment(ctx context.Context, recipientID, albumID int64) (catalog.Assignment, error)
	ListAssignments(ctx context.Context) ([]catalog.Assignment, error)
	DeleteAssignment(ctx context.Context, id int64) error
}

// SessionEvictor drops the live view session of a deleted assignment.
type SessionEvictor interface {
	Evict(ctx context.Context, assignmentID int64) error
}

type Handler struct {
	catalog  Catalog
	media    *mediastore.Store
	recorder *stats.Recorder
	evictor  SessionEvictor
}

func NewHandler(cat Catalog, media *mediastore.Store, recorder *stats.Recorder, evictor SessionEvictor) *Handler {
	return &Handler{
		catalog:  cat,
		media:    media,
		recorder: recorder,
		evictor:  evictor,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/recipients", h.CreateRecipient)
	r.GET("/recipients", h.ListRecipients)
	r.DELETE("/recipients/:recipient_id", h.DeleteRecipient)

	r.POST("/upload", h.UploadMedia)
	r.POST("/upload/cover", h.UploadCover)
	r.GET("/media", h.ListMedia)
	r.DELETE("/media/:media_id", h.DeleteMedia)
	r.POST("/media/:media_id/cover", h.SetMediaCover)

	r.POST("/albums", h.CreateAlbum)
	r.GET("/albums", h.ListAlbums)
	r.DELETE("/albums/:album_id", h.DeleteAlbum)
	r.POST("/albums/:album_id/cover", h.SetAlbumCover)
	r.POST("/albums/:album_id/add_media/:media_id", h.AddMediaToAlbum)
	r.DELETE("/albums/:album_id/media/:media_id", h.RemoveMediaFromAlbum)

	r.POST("/assign", h.CreateAssignment)
	r.GET("/assignments", h.ListAssignments)
	r.DELETE("/assignments/:assignment_id", h.DeleteAssignment)
	r.GET("/assignments/:assignment_id/stats", h.AssignmentStats)

	r.GET("/qrcode/:token", h.QRCode)
}

// ----------------------------
// Recipients
// ----------------------------

func (h *Handler) CreateRecipient(c *gin.Context) {
	var req catalog.Recipient
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	recipient, err := h.catalog.CreateRecipient(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recipient)
}

func (h *Handler) ListRecipients(c *gin.Context) {
	recipients, err := h.catalog.ListRecipients(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recipients)
}

func (h *Handler) DeleteRecipient(c *gin.Context) {
	id, ok := pathID(c, "recipient_id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteRecipient(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recipient deleted"})
}

// ----------------------------
// Media
// ----------------------------

func (h *Handler) UploadMedia(c *gin.Context) {
	title := c.PostForm("title")
	mediaType := c.PostForm("media_type")
	if title == "" || (mediaType != "audio" && mediaType != "video") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer src.Close()

	filename, err := h.media.SaveMedia(src, file.Filename)
	if err != nil {
		h.fail(c, err)
		return
	}

	item, err := h.catalog.CreateMediaItem(c.Request.Context(), catalog.MediaItem{
		Title:     title,
		MediaType: mediaType,
		Filename:  filename,
	})
	if err != nil {
		_ = h.media.Remove(filename)
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) UploadCover(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if len(contentType) < 6 || contentType[:6] != "image/" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be an image"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer src.Close()

	filename, err := h.media.SaveCover(src, file.Filename)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"filename": filename})
}

func (h *Handler) ListMedia(c *gin.Context) {
	items, err := h.catalog.ListMedia(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteMedia(c *gin.Context) {
	id, ok := pathID(c, "media_id")
	if !ok {
		return
	}

	files, err := h.catalog.DeleteMediaItem(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	for _, f := range files {
		if err := h.media.Remove(f); err != nil {
			logger.Warn("failed to delete media blob", map[string]any{
				"file":  f,
				"error": err.Error(),
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "media deleted"})
}

type coverUpdate struct {
	Filename string `json:"filename" binding:"required"`
}

func (h *Handler) SetMediaCover(c *gin.Context) {
	id, ok := pathID(c, "media_id")
	if !ok {
		return
	}
	var req coverUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.catalog.SetMediaCover(c.Request.Context(), id, req.Filename); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cover set"})
}

// ----------------------------
// Albums
// ----------------------------

func (h *Handler) CreateAlbum(c *gin.Context) {
	var req catalog.Album
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	album, err := h.catalog.CreateAlbum(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, album)
}

func (h *Handler) ListAlbums(c *gin.Context) {
	albums, err := h.catalog.ListAlbums(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, albums)
}

func (h *Handler) DeleteAlbum(c *gin.Context) {
	id, ok := pathID(c, "album_id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteAlbum(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "album deleted"})
}

func (h *Handler) SetAlbumCover(c *gin.Context) {
	id, ok := pathID(c, "album_id")
	if !ok {
		return
	}
	var req coverUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.catalog.SetAlbumCover(c.Request.Context(), id, req.Filename); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cover set"})
}

func (h *Handler) AddMediaToAlbum(c *gin.Context) {
	albumID, ok := pathID(c, "album_id")
	if !ok {
		return
	}
	mediaID, ok := pathID(c, "media_id")
	if !ok {
		return
	}
	if err := h.catalog.AddMediaToAlbum(c.Request.Context(), albumID, mediaID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "media added to album"})
}

func (h *Handler) RemoveMediaFromAlbum(c *gin.Context) {
	albumID, ok := pathID(c, "album_id")
	if !ok {
		return
	}
	mediaID, ok := pathID(c, "media_id")
	if !ok {
		return
	}
	if err := h.catalog.RemoveMediaFromAlbum(c.Request.Context(), albumID, mediaID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "media removed from album"})
}

// ----------------------------
// Assignments
// ----------------------------

type assignRequest struct {
	RecipientID int64 `json:"recipient_id" binding:"required"`
	AlbumID     int64 `json:"album_id" binding:"required"`
}

func (h *Handler) CreateAssignment(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	assignment, err := h.catalog.CreateAssignment(c.Request.Context(), req.RecipientID, req.AlbumID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assignment)
}

func (h *Handler) ListAssignments(c *gin.Context) {
	assignments, err := h.catalog.ListAssignments(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assignments)
}

func (h *Handler) DeleteAssignment(c *gin.Context) {
	id, ok := pathID(c, "assignment_id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteAssignment(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	// The row is gone, so nobody can re-claim; now drop the live viewer too.
	if err := h.evictor.Evict(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "assignment deleted"})
}

func (h *Handler) AssignmentStats(c *gin.Context) {
	id, ok := pathID(c, "assignment_id")
	if !ok {
		return
	}

	aggregate, err := h.recorder.Aggregate(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, stats.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, aggregate)
}

// ----------------------------
// QR
// ----------------------------

func (h *Handler) QRCode(c *gin.Context) {
	token := c.Param("token")

	encoded, err := qr.EncodePNG(token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"qr_base64": encoded,
		"url":       qr.ViewURL(token),
	})
}

// ----------------------------
// Helpers
// ----------------------------

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	logger.Error("admin request failed", map[string]any{
		"path":  c.FullPath(),
		"error": err.Error(),
	})
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
}
