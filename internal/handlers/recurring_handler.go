package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

const (
	defaultUpcomingCount = 5
	maxUpcomingCount     = 24
)

// RecurringHandler handles recurring transaction templates.
type RecurringHandler struct {
	recurringService services.RecurringServicer
	processor        services.RecurringProcessor
	auditService     services.AuditServicer
	now              func() time.Time
}

// NewRecurringHandler creates a new RecurringHandler.
func NewRecurringHandler(recurringService services.RecurringServicer, processor services.RecurringProcessor, auditService services.AuditServicer) *RecurringHandler {
	return &RecurringHandler{
		recurringService: recurringService,
		processor:        processor,
		auditService:     auditService,
		now:              time.Now,
	}
}

// CreateRecurringRequest represents the request payload for a recurring template.
type CreateRecurringRequest struct {
	CategoryID     *string                `json:"category_id" binding:"omitempty,uuid"`
	Type           models.TransactionType `json:"type" binding:"required,transaction_type"`
	Amount         int64                  `json:"amount" binding:"required,gt=0"`
	Description    string                 `json:"description" binding:"max=500"`
	Frequency      models.Frequency       `json:"frequency" binding:"required,frequency"`
	DayOfWeek      *int                   `json:"day_of_week" binding:"omitempty,min=0,max=6"`
	DayOfMonth     *int                   `json:"day_of_month" binding:"omitempty,min=1,max=31"`
	MonthOfYear    *int                   `json:"month_of_year" binding:"omitempty,min=1,max=12"`
	StartDate      time.Time              `json:"start_date" binding:"required"`
	EndDate        *time.Time             `json:"end_date"`
	MaxOccurrences *int                   `json:"max_occurrences" binding:"omitempty,min=1"`
}

// UpdateRecurringRequest represents the request payload for updating a template.
// An empty category_id removes the category.
type UpdateRecurringRequest struct {
	CategoryID     *string           `json:"category_id"`
	Amount         *int64            `json:"amount" binding:"omitempty,gt=0"`
	Description    *string           `json:"description" binding:"omitempty,max=500"`
	Frequency      *models.Frequency `json:"frequency" binding:"omitempty,frequency"`
	DayOfWeek      *int              `json:"day_of_week" binding:"omitempty,min=0,max=6"`
	DayOfMonth     *int              `json:"day_of_month" binding:"omitempty,min=1,max=31"`
	MonthOfYear    *int              `json:"month_of_year" binding:"omitempty,min=1,max=12"`
	EndDate        *time.Time        `json:"end_date"`
	MaxOccurrences *int              `json:"max_occurrences" binding:"omitempty,min=1"`
}

// CreateRecurring handles the creation of a recurring template.
// @Summary     Create a recurring transaction
// @Description Create a template that materializes transactions on a schedule
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateRecurringRequest true "Recurring template"
// @Success     201 {object} models.RecurringTransaction "Template created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring-transactions [post]
func (h *RecurringHandler) CreateRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rec, err := h.recurringService.CreateRecurring(userID, services.RecurringInput{
		CategoryID:     req.CategoryID,
		Type:           req.Type,
		Amount:         req.Amount,
		Description:    req.Description,
		Frequency:      req.Frequency,
		DayOfWeek:      req.DayOfWeek,
		DayOfMonth:     req.DayOfMonth,
		MonthOfYear:    req.MonthOfYear,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		MaxOccurrences: req.MaxOccurrences,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_RECURRING", "recurring_transaction", rec.ID, c.ClientIP(),
		map[string]interface{}{"frequency": rec.Frequency, "amount": rec.Amount})

	c.JSON(http.StatusCreated, gin.H{"recurring_transaction": rec})
}

// GetRecurring lists the user's recurring templates.
// @Summary     List recurring transactions
// @Description Get a paginated list of recurring templates
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       is_active query bool   false "Filter by active status"
// @Param       frequency query string false "Filter by frequency"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.RecurringTransaction] "Paginated templates"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring-transactions [get]
func (h *RecurringHandler) GetRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	isActive, err := parseOptionalBool(c, "is_active")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var frequency *models.Frequency
	if v := c.Query("frequency"); v != "" {
		f := models.Frequency(v)
		switch f {
		case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly,
			models.FrequencyQuarterly, models.FrequencyYearly:
			frequency = &f
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid frequency"))
			return
		}
	}

	result, err := h.recurringService.GetUserRecurring(userID, page, isActive, frequency)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRecurringByID returns a single template.
// @Summary     Get recurring transaction
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring transaction ID"
// @Success     200 {object} models.RecurringTransaction "Template"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring-transactions/{id} [get]
func (h *RecurringHandler) GetRecurringByID(c *gin.Context) {
	userID, recurringID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	rec, err := h.recurringService.GetRecurringByID(userID, recurringID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recurring_transaction": rec})
}

// UpdateRecurring changes a template. Schedule changes realign the next due date.
// @Summary     Update recurring transaction
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                 true "Recurring transaction ID"
// @Param       request body UpdateRecurringRequest true "Fields to change"
// @Success     200 {object} models.RecurringTransaction "Updated template"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring-transactions/{id} [put]
func (h *RecurringHandler) UpdateRecurring(c *gin.Context) {
	userID, recurringID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	var req UpdateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if req.CategoryID != nil && *req.CategoryID != "" {
		if _, err := parseOptionalID(*req.CategoryID, "category_id"); err != nil {
			respondWithError(c, err)
			return
		}
	}

	rec, err := h.recurringService.UpdateRecurring(userID, recurringID, services.RecurringUpdate{
		CategoryID:     req.CategoryID,
		Amount:         req.Amount,
		Description:    req.Description,
		Frequency:      req.Frequency,
		DayOfWeek:      req.DayOfWeek,
		DayOfMonth:     req.DayOfMonth,
		MonthOfYear:    req.MonthOfYear,
		EndDate:        req.EndDate,
		MaxOccurrences: req.MaxOccurrences,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_RECURRING", "recurring_transaction", recurringID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"recurring_transaction": rec})
}

// DeleteRecurring removes a template. Transactions it produced are kept.
// @Summary     Delete recurring transaction
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring transaction ID"
// @Success     200 {object} MessageResponse "Deleted"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring-transactions/{id} [delete]
func (h *RecurringHandler) DeleteRecurring(c *gin.Context) {
	userID, recurringID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	if err := h.recurringService.DeleteRecurring(userID, recurringID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_RECURRING", "recurring_transaction", recurringID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Recurring transaction deleted successfully"})
}

// PauseRecurring stops a template from materializing.
// @Summary     Pause recurring transaction
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring transaction ID"
// @Success     200 {object} models.RecurringTransaction "Paused template"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring-transactions/{id}/pause [post]
func (h *RecurringHandler) PauseRecurring(c *gin.Context) {
	h.transition(c, "PAUSE_RECURRING", func(userID, id string) (*models.RecurringTransaction, error) {
		return h.recurringService.PauseRecurring(userID, id)
	})
}

// ResumeRecurring reactivates a paused template.
// @Summary     Resume recurring transaction
// @Description Reactivate a template. A next due date in the past is moved forward from today.
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring transaction ID"
// @Success     200 {object} models.RecurringTransaction "Resumed template"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring-transactions/{id}/resume [post]
func (h *RecurringHandler) ResumeRecurring(c *gin.Context) {
	h.transition(c, "RESUME_RECURRING", func(userID, id string) (*models.RecurringTransaction, error) {
		return h.recurringService.ResumeRecurring(userID, id, h.now())
	})
}

// SkipOccurrence advances a template past its next occurrence.
// @Summary     Skip next occurrence
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring transaction ID"
// @Success     200 {object} models.RecurringTransaction "Template with advanced due date"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring-transactions/{id}/skip [post]
func (h *RecurringHandler) SkipOccurrence(c *gin.Context) {
	h.transition(c, "SKIP_RECURRING", func(userID, id string) (*models.RecurringTransaction, error) {
		return h.recurringService.SkipOccurrence(userID, id)
	})
}

func (h *RecurringHandler) transition(c *gin.Context, action string, fn func(userID, id string) (*models.RecurringTransaction, error)) {
	userID, recurringID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	rec, err := fn(userID, recurringID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, action, "recurring_transaction", recurringID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"recurring_transaction": rec})
}

// GetUpcoming previews the next occurrence dates of a template.
// @Summary     Upcoming occurrences
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Recurring transaction ID"
// @Param       count query int    false "Number of dates (default 5, max 24)"
// @Success     200 {object} map[string][]string "Upcoming dates"
// @Failure     400 {object} ErrorResponse "Invalid count"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring-transactions/{id}/upcoming [get]
func (h *RecurringHandler) GetUpcoming(c *gin.Context) {
	userID, recurringID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	count := defaultUpcomingCount
	if v := c.Query("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxUpcomingCount {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "count must be between 1 and 24"))
			return
		}
		count = n
	}

	dates, err := h.recurringService.GetUpcoming(userID, recurringID, count)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"upcoming": dates})
}

// ProcessDue materializes the current user's due templates.
// @Summary     Process due recurring transactions
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]int "Number of transactions created"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring-transactions/process [post]
func (h *RecurringHandler) ProcessDue(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	created, err := h.processor.ProcessDueForUser(c.Request.Context(), userID, h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"created": created})
}

// ProcessAllRequest optionally pins the processing clock.
type ProcessAllRequest struct {
	Now *time.Time `json:"now"`
}

// ProcessAll materializes due templates for every user.
// @Summary     Process all due recurring transactions
// @Description Materialize due templates for all users (pipeline endpoint)
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string            true  "Pipeline API key"
// @Param       request   body     ProcessAllRequest false "Processing time"
// @Success     200       {object} map[string]int    "Number of transactions created"
// @Failure     400       {object} ErrorResponse     "Invalid input"
// @Failure     401       {object} ErrorResponse     "Invalid API key"
// @Failure     503       {object} ErrorResponse     "Pipeline not configured"
// @Router      /pipeline/recurring/process [post]
func (h *RecurringHandler) ProcessAll(c *gin.Context) {
	var req ProcessAllRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	now := h.now()
	if req.Now != nil {
		now = *req.Now
	}

	created, err := h.processor.ProcessDue(c.Request.Context(), now)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"created": created})
}
