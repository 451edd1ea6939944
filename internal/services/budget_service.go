package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB) BudgetServicer {
	return &budgetService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateBudget creates a new budget for an expense category.
func (s *budgetService) CreateBudget(userID string, in BudgetInput) (*models.Budget, error) {
	if in.Amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if !validBudgetPeriod(in.Period) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be weekly, monthly or yearly")
	}
	if in.StartDate.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "start_date is required")
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end_date must not be before start_date")
	}
	threshold := in.AlertThreshold
	if threshold == 0 {
		threshold = models.DefaultAlertThreshold
	}
	if threshold < 1 || threshold > 100 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "alert_threshold must be between 1 and 100")
	}

	// Verify category exists and belongs to user
	var category models.Category
	if err := s.db.Where("id = ? AND user_id = ?", in.CategoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if category.Type != models.CategoryTypeExpense {
		return nil, apperrors.WithMessage(apperrors.ErrCategoryTypeMismatch, "budgets can only track expense categories")
	}

	budget := &models.Budget{
		UserID:         userID,
		CategoryID:     in.CategoryID,
		Name:           in.Name,
		Amount:         in.Amount,
		Period:         in.Period,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		AlertThreshold: threshold,
		IsActive:       true,
	}

	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	budget.Category = category

	return budget, nil
}

// GetUserBudgets returns a paginated list of budgets for the user with optional filters.
func (s *budgetService) GetUserBudgets(
	userID string,
	page pagination.PageRequest,
	isActive *bool,
	period *models.BudgetPeriod,
) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.Model(&models.Budget{}).Where("user_id = ?", userID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}
	if period != nil {
		base = base.Where("period = ?", *period)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	if err := base.Preload("Category").Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetByID returns a budget by ID if it belongs to the user.
func (s *budgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Preload("Category").Where("id = ? AND user_id = ?", budgetID, userID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpdateBudget updates an existing budget's fields.
func (s *budgetService) UpdateBudget(userID, budgetID string, update BudgetUpdate) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if update.Name != nil && *update.Name != "" {
		updates["name"] = *update.Name
	}
	if update.Amount != nil {
		if *update.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *update.Amount
	}
	if update.Period != nil {
		if !validBudgetPeriod(*update.Period) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be weekly, monthly or yearly")
		}
		updates["period"] = *update.Period
	}
	if update.EndDate != nil {
		if update.EndDate.Before(budget.StartDate) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end_date must not be before start_date")
		}
		updates["end_date"] = update.EndDate
	}
	if update.AlertThreshold != nil {
		if *update.AlertThreshold < 1 || *update.AlertThreshold > 100 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "alert_threshold must be between 1 and 100")
		}
		updates["alert_threshold"] = *update.AlertThreshold
	}
	if update.IsActive != nil {
		updates["is_active"] = *update.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(budget).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return budget, nil
}

// DeleteBudget soft-deletes a budget.
func (s *budgetService) DeleteBudget(userID, budgetID string) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(budget).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetBudgetProgress calculates spending vs budget for the current period.
func (s *budgetService) GetBudgetProgress(userID, budgetID string) (*BudgetProgress, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}
	return s.progressAt(budget, s.now())
}

// GetBudgetOverview returns the current progress of every active budget.
func (s *budgetService) GetBudgetOverview(userID string) ([]BudgetProgress, error) {
	var budgets []models.Budget
	if err := s.db.Where("user_id = ? AND is_active = ?", userID, true).Order("name").Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := s.now()
	overview := make([]BudgetProgress, 0, len(budgets))
	for i := range budgets {
		progress, err := s.progressAt(&budgets[i], now)
		if err != nil {
			return nil, err
		}
		overview = append(overview, *progress)
	}
	return overview, nil
}

// EvaluateAlerts checks the active budgets of a category at the given time
// and returns those whose spending reached the alert threshold.
func (s *budgetService) EvaluateAlerts(userID, categoryID string, at time.Time) ([]BudgetAlert, error) {
	var budgets []models.Budget
	err := s.db.Where("user_id = ? AND category_id = ? AND is_active = ? AND start_date <= ?", userID, categoryID, true, at).
		Where("end_date IS NULL OR end_date >= ?", at).
		Find(&budgets).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var alerts []BudgetAlert
	for i := range budgets {
		progress, err := s.progressAt(&budgets[i], at)
		if err != nil {
			return nil, err
		}
		if progress.Percentage >= float64(progress.AlertThreshold) {
			alerts = append(alerts, BudgetAlert{
				BudgetProgress: *progress,
				Exceeded:       progress.Spent > progress.Budgeted,
			})
		}
	}
	return alerts, nil
}

func (s *budgetService) progressAt(budget *models.Budget, at time.Time) (*BudgetProgress, error) {
	periodStart, periodEnd := periodWindow(budget.Period, at)

	// Spending in direct subcategories counts against the parent's budget.
	categoryIDs := []string{budget.CategoryID}
	var children []string
	if err := s.db.Model(&models.Category{}).Where("parent_id = ?", budget.CategoryID).Pluck("id", &children).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	categoryIDs = append(categoryIDs, children...)

	var spent int64
	err := s.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND category_id IN ? AND type = ? AND date >= ? AND date <= ?",
			budget.UserID, categoryIDs, models.TransactionTypeExpense, periodStart, periodEnd).
		Scan(&spent).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var percentage float64
	if budget.Amount > 0 {
		percentage = percentOf(spent, budget.Amount)
	}

	return &BudgetProgress{
		BudgetID:       budget.ID,
		Name:           budget.Name,
		CategoryID:     budget.CategoryID,
		Budgeted:       budget.Amount,
		Spent:          spent,
		Remaining:      budget.Amount - spent,
		Percentage:     percentage,
		AlertThreshold: budget.AlertThreshold,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
	}, nil
}

// periodWindow returns the inclusive bounds of the budget period containing at.
// Weeks start on Monday.
func periodWindow(period models.BudgetPeriod, at time.Time) (time.Time, time.Time) {
	loc := at.Location()
	var start, next time.Time

	switch period {
	case models.BudgetPeriodWeekly:
		offset := (int(at.Weekday()) + 6) % 7
		start = time.Date(at.Year(), at.Month(), at.Day()-offset, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 7)
	case models.BudgetPeriodYearly:
		start = time.Date(at.Year(), 1, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(1, 0, 0)
	default:
		start = time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 1, 0)
	}

	return start, next.Add(-time.Nanosecond)
}

func validBudgetPeriod(p models.BudgetPeriod) bool {
	switch p {
	case models.BudgetPeriodWeekly, models.BudgetPeriodMonthly, models.BudgetPeriodYearly:
		return true
	}
	return false
}
