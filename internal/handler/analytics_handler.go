package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tradejournal/internal/middleware"
	"github.com/tradejournal/internal/service"
	"github.com/tradejournal/pkg/response"
)

// AnalyticsHandler handles performance statistics requests
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	logger           logrus.FieldLogger
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(analyticsService *service.AnalyticsService, logger logrus.FieldLogger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// GetSummary handles the performance summary
// GET /api/v1/analytics/summary?from=&to=
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	userID := middleware.GetUserID(c)

	from, err := parseDateQuery(c, "from", false)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	to, err := parseDateQuery(c, "to", true)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		response.BadRequest(c, "to must not be before from")
		return
	}

	summary, err := h.analyticsService.Summary(c.Request.Context(), userID, from, to)
	if err != nil {
		h.logger.WithError(err).Error("failed to compute summary")
		response.InternalError(c, "failed to compute summary")
		return
	}

	response.Success(c, summary)
}

// RegisterRoutes registers analytics routes
func (h *AnalyticsHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	analytics := rg.Group("/analytics")
	analytics.Use(authMiddleware)
	{
		analytics.GET("/summary", h.GetSummary)
	}
}
