package handler

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tradejournal/internal/importer"
	"github.com/tradejournal/internal/middleware"
	"github.com/tradejournal/internal/models"
	"github.com/tradejournal/internal/repository"
	"github.com/tradejournal/internal/service"
	"github.com/tradejournal/pkg/response"
)

// importFileField is the multipart field carrying the import file
const importFileField = "file"

// TradeHandler handles trade API requests
type TradeHandler struct {
	tradeService   *service.TradeService
	maxImportBytes int64
	logger         logrus.FieldLogger
}

// NewTradeHandler creates a new TradeHandler
func NewTradeHandler(tradeService *service.TradeService, maxImportBytes int64, logger logrus.FieldLogger) *TradeHandler {
	return &TradeHandler{
		tradeService:   tradeService,
		maxImportBytes: maxImportBytes,
		logger:         logger,
	}
}

// CreateTrade handles manual trade entry
// POST /api/v1/trades
func (h *TradeHandler) CreateTrade(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req service.CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trade, err := h.tradeService.CreateTrade(c.Request.Context(), userID, &req)
	if err != nil {
		h.writeError(c, err, "failed to create trade")
		return
	}

	response.Created(c, trade)
}

// GetTrades handles listing trades
// GET /api/v1/trades?symbol=&status=&from=&to=&page=&page_size=
func (h *TradeHandler) GetTrades(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, pageSize := parsePagination(c)

	filter := repository.TradeFilter{
		Symbol: strings.ToUpper(strings.TrimSpace(c.Query("symbol"))),
	}
	switch status := models.TradeStatus(c.Query("status")); status {
	case "", models.TradeStatusOpen, models.TradeStatusClosed:
		filter.Status = status
	default:
		response.BadRequest(c, "status must be open or closed")
		return
	}

	var err error
	if filter.From, err = parseDateQuery(c, "from", false); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if filter.To, err = parseDateQuery(c, "to", true); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trades, total, err := h.tradeService.ListTrades(c.Request.Context(), userID, filter, page, pageSize)
	if err != nil {
		h.writeError(c, err, "failed to list trades")
		return
	}

	response.SuccessPaginated(c, trades, total, page, pageSize)
}

// GetTrade handles getting a single trade
// GET /api/v1/trades/:id
func (h *TradeHandler) GetTrade(c *gin.Context) {
	userID := middleware.GetUserID(c)

	tradeID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid trade id")
		return
	}

	trade, err := h.tradeService.GetTrade(c.Request.Context(), userID, tradeID)
	if err != nil {
		h.writeError(c, err, "failed to get trade")
		return
	}

	response.Success(c, trade)
}

// UpdateTrade handles a partial trade update
// PUT /api/v1/trades/:id
func (h *TradeHandler) UpdateTrade(c *gin.Context) {
	userID := middleware.GetUserID(c)

	tradeID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid trade id")
		return
	}

	var req service.UpdateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trade, err := h.tradeService.UpdateTrade(c.Request.Context(), userID, tradeID, &req)
	if err != nil {
		h.writeError(c, err, "failed to update trade")
		return
	}

	response.Success(c, trade)
}

// DeleteTrade handles deleting a trade
// DELETE /api/v1/trades/:id
func (h *TradeHandler) DeleteTrade(c *gin.Context) {
	userID := middleware.GetUserID(c)

	tradeID, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid trade id")
		return
	}

	if err := h.tradeService.DeleteTrade(c.Request.Context(), userID, tradeID); err != nil {
		h.writeError(c, err, "failed to delete trade")
		return
	}

	response.Success(c, nil)
}

// ImportTrades handles bulk import of a delimited trade file
// POST /api/v1/trades/import?delimiter=
func (h *TradeHandler) ImportTrades(c *gin.Context) {
	userID := middleware.GetUserID(c)

	delimiter, err := parseDelimiter(c.Query("delimiter"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImportBytes+1<<20)
	fileHeader, err := c.FormFile(importFileField)
	if err != nil {
		if isBodyTooLarge(err) {
			response.PayloadTooLarge(c, "import file too large")
			return
		}
		response.BadRequest(c, "missing import file")
		return
	}
	if fileHeader.Size > h.maxImportBytes {
		response.PayloadTooLarge(c, "import file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "unreadable import file")
		return
	}
	defer file.Close()

	result, err := h.tradeService.ImportTrades(c.Request.Context(), userID, file, delimiter)
	if err != nil {
		var missing *importer.MissingColumnsError
		var duplicate *importer.DuplicateColumnsError
		switch {
		case errors.As(err, &missing):
			response.BadRequest(c, missing.Error())
		case errors.As(err, &duplicate):
			response.BadRequest(c, duplicate.Error())
		case errors.Is(err, importer.ErrEmptyFile), errors.Is(err, service.ErrImportNoRows):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrImportRejected), errors.Is(err, service.ErrImportNoneValid):
			response.UnprocessableEntity(c, err.Error(), result)
		case errors.Is(err, repository.ErrInvalidData):
			h.logger.WithError(err).WithField("user_id", userID).Warn("import refused by record store")
			response.UnprocessableEntity(c, err.Error(), result)
		default:
			h.logger.WithError(err).WithField("user_id", userID).Error("import failed")
			response.InternalError(c, "failed to import trades")
		}
		return
	}

	response.Created(c, result)
}

func (h *TradeHandler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, repository.ErrTradeNotFound):
		response.NotFound(c, "trade not found")
	case errors.Is(err, service.ErrInvalidTrade):
		response.BadRequest(c, err.Error())
	case errors.Is(err, repository.ErrInvalidData):
		response.UnprocessableEntity(c, err.Error(), nil)
	default:
		h.logger.WithError(err).Error(msg)
		response.InternalError(c, msg)
	}
}

// parseDelimiter accepts an empty value (use the configured one), "tab", or one character
func parseDelimiter(v string) (rune, error) {
	switch {
	case v == "":
		return 0, nil
	case strings.EqualFold(v, "tab"):
		return '\t', nil
	case utf8.RuneCountInString(v) != 1:
		return 0, errors.New("delimiter must be a single character")
	}
	r, _ := utf8.DecodeRuneInString(v)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, errors.New("invalid delimiter")
	}
	return r, nil
}

// RegisterRoutes registers trade routes
func (h *TradeHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc, limits RateLimits) {
	trades := rg.Group("/trades")
	trades.Use(authMiddleware)
	{
		trades.GET("", h.GetTrades)
		trades.POST("", orPass(limits.Write), h.CreateTrade)
		trades.POST("/import", orPass(limits.Import), h.ImportTrades)
		trades.GET("/:id", h.GetTrade)
		trades.PUT("/:id", orPass(limits.Write), h.UpdateTrade)
		trades.DELETE("/:id", orPass(limits.Write), h.DeleteTrade)
	}
}
