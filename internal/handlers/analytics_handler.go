package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/services"
)

// AnalyticsHandler serves dashboard aggregates.
type AnalyticsHandler struct {
	analyticsService services.AnalyticsServicer
	now              func() time.Time
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService services.AnalyticsServicer) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService, now: time.Now}
}

// GetSummary returns income, expense and net for a date range.
// @Summary     Spending summary
// @Description Income, expense, net, savings rate and top category. Defaults to the current month.
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       from_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} services.Summary "Summary"
// @Failure     400 {object} ErrorResponse "Invalid date range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /analytics/summary [get]
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	userID, from, to, ok := h.scope(c)
	if !ok {
		return
	}

	summary, err := h.analyticsService.Summary(c.Request.Context(), userID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetCategoryBreakdown returns per-category totals.
// @Summary     Category breakdown
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       type      query string false "income or expense (default expense)"
// @Param       from_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {array}  services.CategoryTotal "Category totals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /analytics/categories [get]
func (h *AnalyticsHandler) GetCategoryBreakdown(c *gin.Context) {
	userID, from, to, ok := h.scope(c)
	if !ok {
		return
	}

	txType := models.TransactionTypeExpense
	if v := c.Query("type"); v != "" {
		txType = models.TransactionType(v)
		if txType != models.TransactionTypeIncome && txType != models.TransactionTypeExpense {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "type must be 'income' or 'expense'"))
			return
		}
	}

	totals, err := h.analyticsService.CategoryBreakdown(c.Request.Context(), userID, txType, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"type": txType, "categories": totals})
}

// GetTrends returns bucketed income and expense over a date range.
// @Summary     Trends
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       interval  query string false "month or week (default month)"
// @Param       from_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {array}  services.TrendPoint "Trend series"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /analytics/trends [get]
func (h *AnalyticsHandler) GetTrends(c *gin.Context) {
	userID, from, to, ok := h.scope(c)
	if !ok {
		return
	}

	interval := services.TrendMonthly
	if v := c.Query("interval"); v != "" {
		interval = services.TrendInterval(v)
		if interval != services.TrendMonthly && interval != services.TrendWeekly {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "interval must be 'month' or 'week'"))
			return
		}
	}

	points, err := h.analyticsService.Trends(c.Request.Context(), userID, interval, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"interval": interval, "trends": points})
}

func (h *AnalyticsHandler) scope(c *gin.Context) (string, time.Time, time.Time, bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return "", time.Time{}, time.Time{}, false
	}
	from, to, err := parseDateRange(c, h.now())
	if err != nil {
		respondWithError(c, err)
		return "", time.Time{}, time.Time{}, false
	}
	return userID, from, to, true
}
