package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/recurrence"
)

// MaxUpcoming bounds the preview returned by GetUpcoming.
const MaxUpcoming = 24

// recurringService handles recurring template management.
type recurringService struct {
	db *gorm.DB
}

// NewRecurringService creates a new RecurringServicer.
func NewRecurringService(db *gorm.DB) RecurringServicer {
	return &recurringService{db: db}
}

// CreateRecurring stores a new template whose first due date honours its anchors.
func (s *recurringService) CreateRecurring(userID string, in RecurringInput) (*models.RecurringTransaction, error) {
	if in.Amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if !validTransactionType(in.Type) {
		return nil, apperrors.ErrInvalidTransactionType
	}
	if in.CategoryID != nil && *in.CategoryID == "" {
		in.CategoryID = nil
	}
	if err := checkCategoryType(s.db, userID, in.CategoryID, in.Type); err != nil {
		return nil, err
	}

	rt := &models.RecurringTransaction{
		UserID:         userID,
		CategoryID:     in.CategoryID,
		Type:           in.Type,
		Amount:         in.Amount,
		Description:    strings.TrimSpace(in.Description),
		Frequency:      in.Frequency,
		DayOfWeek:      in.DayOfWeek,
		DayOfMonth:     in.DayOfMonth,
		MonthOfYear:    in.MonthOfYear,
		StartDate:      in.StartDate.UTC(),
		EndDate:        utcPtr(in.EndDate),
		MaxOccurrences: in.MaxOccurrences,
		IsActive:       true,
	}

	schedule := recurrence.FromModel(rt)
	if err := recurrence.Validate(schedule); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
	}
	first, err := recurrence.FirstDue(schedule)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
	}
	rt.NextDueDate = first

	if err := s.db.Create(rt).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rt, nil
}

// GetUserRecurring retrieves a paginated list of templates with optional filters.
func (s *recurringService) GetUserRecurring(userID string, page pagination.PageRequest, isActive *bool, frequency *models.Frequency) (*pagination.PageResponse[models.RecurringTransaction], error) {
	page.Defaults()

	base := s.db.Model(&models.RecurringTransaction{}).Where("user_id = ?", userID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}
	if frequency != nil {
		base = base.Where("frequency = ?", *frequency)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var items []models.RecurringTransaction
	if err := base.Preload("Category").
		Order("next_due_date ASC").Order("id ASC").
		Scopes(pagination.Paginate(page)).
		Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(items, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetRecurringByID retrieves a template by ID for a specific user.
func (s *recurringService) GetRecurringByID(userID, recurringID string) (*models.RecurringTransaction, error) {
	var rt models.RecurringTransaction
	if err := s.db.Preload("Category").Where("id = ? AND user_id = ?", recurringID, userID).First(&rt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecurringNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &rt, nil
}

// UpdateRecurring applies the provided fields. Schedule changes realign the
// next due date to the new anchors without skipping unmaterialized dates.
func (s *recurringService) UpdateRecurring(userID, recurringID string, update RecurringUpdate) (*models.RecurringTransaction, error) {
	rt, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if update.CategoryID != nil {
		categoryID := update.CategoryID
		if *categoryID == "" {
			categoryID = nil
		}
		if err := checkCategoryType(s.db, userID, categoryID, rt.Type); err != nil {
			return nil, err
		}
		updates["category_id"] = categoryID
	}
	if update.Amount != nil {
		if *update.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *update.Amount
	}
	if update.Description != nil {
		updates["description"] = strings.TrimSpace(*update.Description)
	}

	scheduleChanged := false
	next := *rt
	if update.Frequency != nil {
		next.Frequency = *update.Frequency
		scheduleChanged = true
	}
	if update.DayOfWeek != nil {
		next.DayOfWeek = update.DayOfWeek
		scheduleChanged = true
	}
	if update.DayOfMonth != nil {
		next.DayOfMonth = update.DayOfMonth
		scheduleChanged = true
	}
	if update.MonthOfYear != nil {
		next.MonthOfYear = update.MonthOfYear
		scheduleChanged = true
	}
	if update.EndDate != nil {
		next.EndDate = utcPtr(update.EndDate)
		scheduleChanged = true
	}
	if update.MaxOccurrences != nil {
		next.MaxOccurrences = update.MaxOccurrences
		scheduleChanged = true
	}

	if scheduleChanged {
		schedule := recurrence.FromModel(&next)
		if err := recurrence.Validate(schedule); err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
		}
		if next.MaxOccurrences != nil && *next.MaxOccurrences < rt.OccurrenceCount {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, "max_occurrences is below the occurrences already recorded")
		}
		first, err := recurrence.FirstDue(schedule)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
		}
		due, err := recurrence.RealignFrom(schedule, first, rt.NextDueDate)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
		}
		updates["frequency"] = next.Frequency
		updates["day_of_week"] = next.DayOfWeek
		updates["day_of_month"] = next.DayOfMonth
		updates["month_of_year"] = next.MonthOfYear
		updates["end_date"] = next.EndDate
		updates["max_occurrences"] = next.MaxOccurrences
		updates["next_due_date"] = due

		// A tighter end date or cap can leave nothing left to materialize.
		if recurrence.Ended(schedule, due, rt.OccurrenceCount) {
			last, err := lastOccurrence(s.db, rt.ID)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if last != nil {
				updates["next_due_date"] = *last
			} else {
				updates["next_due_date"] = rt.NextDueDate
			}
			updates["is_active"] = false
			if rt.EndedAt == nil {
				updates["ended_at"] = time.Now().UTC()
			}
		}
	}

	if len(updates) == 0 {
		return rt, nil
	}
	if err := s.db.Model(rt).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetRecurringByID(userID, recurringID)
}

// DeleteRecurring soft-deletes a template. Materialized transactions are kept.
func (s *recurringService) DeleteRecurring(userID, recurringID string) error {
	rt, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(rt).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// PauseRecurring stops materialization until the template is resumed.
func (s *recurringService) PauseRecurring(userID, recurringID string) (*models.RecurringTransaction, error) {
	rt, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return nil, err
	}
	if !rt.IsActive {
		return rt, nil
	}
	if err := s.db.Model(rt).Update("is_active", false).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetRecurringByID(userID, recurringID)
}

// ResumeRecurring re-activates a paused template. A due date that passed
// while paused moves to the first occurrence on or after now, so paused
// periods are not back-filled.
func (s *recurringService) ResumeRecurring(userID, recurringID string, now time.Time) (*models.RecurringTransaction, error) {
	rt, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return nil, err
	}
	if rt.IsActive {
		return rt, nil
	}
	ended, err := s.seriesEnded(rt)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if ended {
		return nil, apperrors.WithMessage(apperrors.ErrRecurringInactive, "recurring series has ended")
	}

	schedule := recurrence.FromModel(rt)
	due, err := recurrence.RealignFrom(schedule, rt.NextDueDate, now.UTC())
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
	}
	if schedule.EndDate != nil && dateOf(due).After(dateOf(*schedule.EndDate)) {
		return nil, apperrors.WithMessage(apperrors.ErrRecurringInactive, "recurring series has ended")
	}

	updates := map[string]interface{}{"is_active": true, "next_due_date": due}
	if err := s.db.Model(rt).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetRecurringByID(userID, recurringID)
}

// SkipOccurrence advances past the next due date without materializing it.
// Skipped occurrences do not count toward max_occurrences.
func (s *recurringService) SkipOccurrence(userID, recurringID string) (*models.RecurringTransaction, error) {
	rt, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return nil, err
	}
	if !rt.IsActive {
		return nil, apperrors.ErrRecurringInactive
	}

	res, err := recurrence.Skip(recurrence.FromModel(rt), rt.NextDueDate, rt.OccurrenceCount)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
	}

	updates := map[string]interface{}{"next_due_date": res.NextDue, "is_active": res.Active}
	if !res.Active {
		updates["ended_at"] = time.Now().UTC()
	}
	if err := s.db.Model(rt).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetRecurringByID(userID, recurringID)
}

// GetUpcoming previews up to count future occurrences of an active template.
func (s *recurringService) GetUpcoming(userID, recurringID string, count int) ([]time.Time, error) {
	if count < 1 || count > MaxUpcoming {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "count must be between 1 and 24")
	}
	rt, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return nil, err
	}
	if !rt.IsActive {
		return []time.Time{}, nil
	}

	dates, err := recurrence.Upcoming(recurrence.FromModel(rt), rt.NextDueDate, rt.OccurrenceCount, count)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
	}
	return dates, nil
}

// seriesEnded reports whether a template ran out of occurrences rather than
// being paused. Templates deactivated before ended_at existed are recognised
// by a materialized next due date.
func (s *recurringService) seriesEnded(rt *models.RecurringTransaction) (bool, error) {
	if rt.EndedAt != nil || recurrence.Ended(recurrence.FromModel(rt), rt.NextDueDate, rt.OccurrenceCount) {
		return true, nil
	}
	return occurrenceExists(s.db, rt.ID, rt.NextDueDate)
}

// lastOccurrence returns the date of the latest transaction the template
// produced, or nil when it never materialized one.
func lastOccurrence(db *gorm.DB, recurringID string) (*time.Time, error) {
	var txs []models.Transaction
	if err := db.Unscoped().Where("recurring_id = ?", recurringID).
		Order("date DESC").Limit(1).Find(&txs).Error; err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0].Date, nil
}

// occurrenceExists reports whether the template already produced a
// transaction dated at, including ones the user has since deleted.
func occurrenceExists(db *gorm.DB, recurringID string, at time.Time) (bool, error) {
	var count int64
	if err := db.Unscoped().Model(&models.Transaction{}).
		Where("recurring_id = ? AND date = ?", recurringID, at).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
