package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tradejournal/internal/middleware"
	"github.com/tradejournal/internal/repository"
	"github.com/tradejournal/internal/service"
	"github.com/tradejournal/pkg/response"
)

// JournalHandler handles journal API requests
type JournalHandler struct {
	journalService *service.JournalService
	logger         logrus.FieldLogger
}

// NewJournalHandler creates a new JournalHandler
func NewJournalHandler(journalService *service.JournalService, logger logrus.FieldLogger) *JournalHandler {
	return &JournalHandler{
		journalService: journalService,
		logger:         logger,
	}
}

// CreateEntry handles creating a journal entry
// POST /api/v1/journal
func (h *JournalHandler) CreateEntry(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req service.CreateJournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entry, err := h.journalService.CreateEntry(c.Request.Context(), userID, &req)
	if err != nil {
		h.writeError(c, err, "failed to create journal entry")
		return
	}

	response.Created(c, entry)
}

// GetEntries handles listing journal entries, optionally for one trade
// GET /api/v1/journal?trade_id=&page=&page_size=
func (h *JournalHandler) GetEntries(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, pageSize := parsePagination(c)

	var tradeID *uint
	if v := c.Query("trade_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid trade id")
			return
		}
		tid := uint(id)
		tradeID = &tid
	}

	entries, total, err := h.journalService.ListEntries(c.Request.Context(), userID, tradeID, page, pageSize)
	if err != nil {
		h.writeError(c, err, "failed to list journal entries")
		return
	}

	response.SuccessPaginated(c, entries, total, page, pageSize)
}

// GetEntry handles getting a single journal entry
// GET /api/v1/journal/:id
func (h *JournalHandler) GetEntry(c *gin.Context) {
	userID := middleware.GetUserID(c)

	entryID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid journal entry id")
		return
	}

	entry, err := h.journalService.GetEntry(c.Request.Context(), userID, entryID)
	if err != nil {
		h.writeError(c, err, "failed to get journal entry")
		return
	}

	response.Success(c, entry)
}

// UpdateEntry handles a partial journal entry update
// PUT /api/v1/journal/:id
func (h *JournalHandler) UpdateEntry(c *gin.Context) {
	userID := middleware.GetUserID(c)

	entryID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid journal entry id")
		return
	}

	var req service.UpdateJournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entry, err := h.journalService.UpdateEntry(c.Request.Context(), userID, entryID, &req)
	if err != nil {
		h.writeError(c, err, "failed to update journal entry")
		return
	}

	response.Success(c, entry)
}

// DeleteEntry handles deleting a journal entry
// DELETE /api/v1/journal/:id
func (h *JournalHandler) DeleteEntry(c *gin.Context) {
	userID := middleware.GetUserID(c)

	entryID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid journal entry id")
		return
	}

	if err := h.journalService.DeleteEntry(c.Request.Context(), userID, entryID); err != nil {
		h.writeError(c, err, "failed to delete journal entry")
		return
	}

	response.Success(c, nil)
}

func (h *JournalHandler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, repository.ErrJournalEntryNotFound):
		response.NotFound(c, "journal entry not found")
	case errors.Is(err, repository.ErrTradeNotFound):
		response.NotFound(c, "trade not found")
	case errors.Is(err, repository.ErrInvalidData):
		response.UnprocessableEntity(c, err.Error(), nil)
	default:
		h.logger.WithError(err).Error(msg)
		response.InternalError(c, msg)
	}
}

// RegisterRoutes registers journal routes
func (h *JournalHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc, limits RateLimits) {
	journal := rg.Group("/journal")
	journal.Use(authMiddleware)
	{
		journal.GET("", h.GetEntries)
		journal.POST("", orPass(limits.Write), h.CreateEntry)
		journal.GET("/:id", h.GetEntry)
		journal.PUT("/:id", orPass(limits.Write), h.UpdateEntry)
		journal.DELETE("/:id", orPass(limits.Write), h.DeleteEntry)
	}
}
