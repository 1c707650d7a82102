package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tradejournal/internal/middleware"
	"github.com/tradejournal/internal/models"
	"github.com/tradejournal/internal/repository"
	"github.com/tradejournal/internal/service"
	"github.com/tradejournal/internal/storage"
	"github.com/tradejournal/pkg/response"
)

const uploadFileField = "file"

// MediaHandler handles screenshot and attachment requests
type MediaHandler struct {
	mediaService   *service.MediaService
	maxUploadBytes int64
	logger         logrus.FieldLogger
}

// NewMediaHandler creates a new MediaHandler
func NewMediaHandler(mediaService *service.MediaService, maxUploadBytes int64, logger logrus.FieldLogger) *MediaHandler {
	return &MediaHandler{
		mediaService:   mediaService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// UploadTradeScreenshot handles attaching a screenshot to a trade
// POST /api/v1/trades/:id/screenshots
func (h *MediaHandler) UploadTradeScreenshot(c *gin.Context) {
	tradeID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid trade id")
		return
	}
	h.upload(c, service.MediaTarget{TradeID: &tradeID}, models.MediaKindScreenshot)
}

// UploadJournalMedia handles attaching a file to a journal entry
// POST /api/v1/journal/:id/media?kind=screenshot|attachment
func (h *MediaHandler) UploadJournalMedia(c *gin.Context) {
	entryID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid journal entry id")
		return
	}

	kind := models.MediaKind(c.DefaultQuery("kind", string(models.MediaKindAttachment)))
	if kind != models.MediaKindScreenshot && kind != models.MediaKindAttachment {
		response.BadRequest(c, "kind must be screenshot or attachment")
		return
	}
	h.upload(c, service.MediaTarget{JournalEntryID: &entryID}, kind)
}

func (h *MediaHandler) upload(c *gin.Context, target service.MediaTarget, kind models.MediaKind) {
	userID := middleware.GetUserID(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	fileHeader, err := c.FormFile(uploadFileField)
	if err != nil {
		if isBodyTooLarge(err) {
			response.PayloadTooLarge(c, "file too large")
			return
		}
		response.BadRequest(c, "missing file")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	defer file.Close()

	media, err := h.mediaService.Upload(c.Request.Context(), userID, target, kind, file, fileHeader.Size, fileHeader.Filename)
	if err != nil {
		h.writeError(c, err, "failed to upload file")
		return
	}

	response.Created(c, media)
}

// GetTradeMedia handles listing a trade's media
// GET /api/v1/trades/:id/media
func (h *MediaHandler) GetTradeMedia(c *gin.Context) {
	userID := middleware.GetUserID(c)

	tradeID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid trade id")
		return
	}

	media, err := h.mediaService.ListForTrade(c.Request.Context(), userID, tradeID)
	if err != nil {
		h.writeError(c, err, "failed to list media")
		return
	}

	response.Success(c, media)
}

// GetJournalMedia handles listing a journal entry's media
// GET /api/v1/journal/:id/media
func (h *MediaHandler) GetJournalMedia(c *gin.Context) {
	userID := middleware.GetUserID(c)

	entryID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid journal entry id")
		return
	}

	media, err := h.mediaService.ListForJournalEntry(c.Request.Context(), userID, entryID)
	if err != nil {
		h.writeError(c, err, "failed to list media")
		return
	}

	response.Success(c, media)
}

// GetContent streams a stored file
// GET /api/v1/media/:id/content
func (h *MediaHandler) GetContent(c *gin.Context) {
	userID := middleware.GetUserID(c)

	mediaID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid media id")
		return
	}

	media, rc, err := h.mediaService.Open(c.Request.Context(), userID, mediaID)
	if err != nil {
		h.writeError(c, err, "failed to open media")
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, media.Size, media.ContentType, rc, map[string]string{
		"Content-Disposition":    fmt.Sprintf("inline; filename=%q", media.OriginalName),
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "private, max-age=3600",
	})
}

// DeleteMedia handles deleting a file
// DELETE /api/v1/media/:id
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	userID := middleware.GetUserID(c)

	mediaID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid media id")
		return
	}

	if err := h.mediaService.Delete(c.Request.Context(), userID, mediaID); err != nil {
		h.writeError(c, err, "failed to delete media")
		return
	}

	response.Success(c, nil)
}

func (h *MediaHandler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, repository.ErrMediaNotFound), errors.Is(err, storage.ErrObjectNotFound):
		response.NotFound(c, "media not found")
	case errors.Is(err, repository.ErrTradeNotFound):
		response.NotFound(c, "trade not found")
	case errors.Is(err, repository.ErrJournalEntryNotFound):
		response.NotFound(c, "journal entry not found")
	case errors.Is(err, service.ErrFileTooLarge):
		response.PayloadTooLarge(c, "file too large")
	case errors.Is(err, service.ErrUnsupportedMedia):
		response.UnsupportedMediaType(c, "unsupported file type, expected png, jpeg, webp, gif or pdf")
	case errors.Is(err, service.ErrEmptyUpload):
		response.BadRequest(c, "file is empty")
	default:
		h.logger.WithError(err).Error(msg)
		response.InternalError(c, msg)
	}
}

// RegisterRoutes registers media routes under trades, journal and media
func (h *MediaHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc, limits RateLimits) {
	trades := rg.Group("/trades")
	trades.Use(authMiddleware)
	{
		trades.GET("/:id/media", h.GetTradeMedia)
		trades.POST("/:id/screenshots", orPass(limits.Upload), h.UploadTradeScreenshot)
	}

	journal := rg.Group("/journal")
	journal.Use(authMiddleware)
	{
		journal.GET("/:id/media", h.GetJournalMedia)
		journal.POST("/:id/media", orPass(limits.Upload), h.UploadJournalMedia)
	}

	media := rg.Group("/media")
	media.Use(authMiddleware)
	{
		media.GET("/:id/content", h.GetContent)
		media.DELETE("/:id", orPass(limits.Write), h.DeleteMedia)
	}
}
