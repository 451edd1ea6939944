package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/events"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// goalService handles savings goals and their deposits and withdrawals.
type goalService struct {
	db        *gorm.DB
	publisher events.Publisher
}

// NewGoalService creates a new GoalServicer.
func NewGoalService(db *gorm.DB, publisher events.Publisher) GoalServicer {
	if publisher == nil {
		publisher = events.Nop()
	}
	return &goalService{db: db, publisher: publisher}
}

// CreateGoal creates an active goal with nothing saved yet.
func (s *goalService) CreateGoal(userID string, in GoalInput) (*models.Goal, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}
	if in.TargetAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target_amount must be greater than zero")
	}

	goal := &models.Goal{
		UserID:       userID,
		Name:         name,
		Description:  in.Description,
		TargetAmount: in.TargetAmount,
		TargetDate:   utcPtr(in.TargetDate),
		Status:       models.GoalStatusActive,
		Color:        in.Color,
		Icon:         in.Icon,
	}
	if err := s.db.Create(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goal, nil
}

// GetUserGoals retrieves a paginated list of goals, optionally by status.
func (s *goalService) GetUserGoals(userID string, page pagination.PageRequest, status *models.GoalStatus) (*pagination.PageResponse[models.Goal], error) {
	page.Defaults()

	base := s.db.Model(&models.Goal{}).Where("user_id = ?", userID)
	if status != nil {
		base = base.Where("status = ?", *status)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var goals []models.Goal
	if err := base.Order("created_at DESC").Order("id DESC").
		Scopes(pagination.Paginate(page)).
		Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(goals, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetGoalByID retrieves a goal by ID for a specific user.
func (s *goalService) GetGoalByID(userID, goalID string) (*models.Goal, error) {
	return findGoal(s.db, userID, goalID)
}

func findGoal(db *gorm.DB, userID, goalID string) (*models.Goal, error) {
	var goal models.Goal
	if err := db.Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// UpdateGoal applies the provided fields. Raising the target of a completed
// goal above its savings re-activates it; lowering it to the savings
// completes it.
func (s *goalService) UpdateGoal(userID, goalID string, update GoalUpdate) (*models.Goal, error) {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name cannot be empty")
		}
		updates["name"] = name
	}
	if update.Description != nil {
		updates["description"] = *update.Description
	}
	if update.Color != nil {
		updates["color"] = *update.Color
	}
	if update.Icon != nil {
		updates["icon"] = *update.Icon
	}
	if update.TargetDate != nil {
		updates["target_date"] = utcPtr(update.TargetDate)
	}

	target := goal.TargetAmount
	if update.TargetAmount != nil {
		if *update.TargetAmount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target_amount must be greater than zero")
		}
		target = *update.TargetAmount
		updates["target_amount"] = target
	}

	status := goal.Status
	if update.Status != nil {
		if !validGoalStatus(*update.Status) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid goal status")
		}
		status = *update.Status
	}
	completedNow := false
	switch {
	case update.Status != nil && status == models.GoalStatusCompleted && goal.CurrentAmount < target:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal cannot be completed before reaching its target")
	case status == models.GoalStatusCompleted && goal.CurrentAmount < target:
		status = models.GoalStatusActive
	case status == models.GoalStatusActive && goal.CurrentAmount >= target:
		status = models.GoalStatusCompleted
	}
	if status != goal.Status {
		updates["status"] = status
		if status == models.GoalStatusCompleted {
			updates["completed_at"] = time.Now().UTC()
			completedNow = true
		} else if goal.Status == models.GoalStatusCompleted {
			updates["completed_at"] = nil
		}
	}

	if len(updates) == 0 {
		return goal, nil
	}
	if err := s.db.Model(goal).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	goal, err = s.GetGoalByID(userID, goalID)
	if err != nil {
		return nil, err
	}
	if completedNow {
		s.publishCompleted(goal)
	}
	return goal, nil
}

// DeleteGoal soft-deletes a goal together with its savings transactions.
func (s *goalService) DeleteGoal(userID, goalID string) error {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("goal_id = ?", goal.ID).Delete(&models.SavingsTransaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(goal).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// Deposit adds money to an active goal, completing it when the target is reached.
func (s *goalService) Deposit(userID, goalID string, amount int64, date time.Time, note string) (*models.Goal, *models.SavingsTransaction, error) {
	return s.move(userID, goalID, models.SavingsDeposit, amount, date, note)
}

// Withdraw takes money out of a goal. It cannot exceed the saved amount.
func (s *goalService) Withdraw(userID, goalID string, amount int64, date time.Time, note string) (*models.Goal, *models.SavingsTransaction, error) {
	return s.move(userID, goalID, models.SavingsWithdrawal, amount, date, note)
}

func (s *goalService) move(userID, goalID string, kind models.SavingsTransactionType, amount int64, date time.Time, note string) (*models.Goal, *models.SavingsTransaction, error) {
	if amount <= 0 {
		return nil, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	var goal *models.Goal
	var entry *models.SavingsTransaction
	completedNow := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		current, err := findGoal(tx, userID, goalID)
		if err != nil {
			return err
		}
		if current.Status == models.GoalStatusCancelled {
			return apperrors.WithMessage(apperrors.ErrGoalNotActive, "goal is cancelled")
		}
		if kind == models.SavingsDeposit && current.Status == models.GoalStatusPaused {
			return apperrors.WithMessage(apperrors.ErrGoalNotActive, "goal is paused")
		}

		q := tx.Model(&models.Goal{}).Where("id = ? AND user_id = ?", current.ID, userID)
		var result *gorm.DB
		if kind == models.SavingsDeposit {
			result = q.Update("current_amount", gorm.Expr("current_amount + ?", amount))
		} else {
			result = q.Where("current_amount >= ?", amount).
				Update("current_amount", gorm.Expr("current_amount - ?", amount))
		}
		if result.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrInsufficientSavings
		}

		entry = &models.SavingsTransaction{
			UserID: userID,
			GoalID: current.ID,
			Type:   kind,
			Amount: amount,
			Date:   date.UTC(),
			Note:   note,
		}
		if err := tx.Create(entry).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		goal, err = findGoal(tx, userID, goalID)
		if err != nil {
			return err
		}

		// Status follows the new balance.
		switch {
		case goal.Status == models.GoalStatusActive && goal.CurrentAmount >= goal.TargetAmount:
			now := time.Now().UTC()
			if err := tx.Model(goal).Updates(map[string]interface{}{
				"status": models.GoalStatusCompleted, "completed_at": now,
			}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			goal.Status = models.GoalStatusCompleted
			goal.CompletedAt = &now
			completedNow = true
		case goal.Status == models.GoalStatusCompleted && goal.CurrentAmount < goal.TargetAmount:
			if err := tx.Model(goal).Updates(map[string]interface{}{
				"status": models.GoalStatusActive, "completed_at": nil,
			}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			goal.Status = models.GoalStatusActive
			goal.CompletedAt = nil
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if completedNow {
		s.publishCompleted(goal)
	}
	return goal, entry, nil
}

// GetGoalTransactions lists a goal's deposits and withdrawals, newest first.
func (s *goalService) GetGoalTransactions(userID, goalID string, page pagination.PageRequest) (*pagination.PageResponse[models.SavingsTransaction], error) {
	if _, err := s.GetGoalByID(userID, goalID); err != nil {
		return nil, err
	}
	page.Defaults()

	base := s.db.Model(&models.SavingsTransaction{}).Where("goal_id = ? AND user_id = ?", goalID, userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var items []models.SavingsTransaction
	if err := base.Order("date DESC").Order("id DESC").
		Scopes(pagination.Paginate(page)).
		Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(items, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetGoalProgress reports how much is left and, with a target date, the
// days remaining and the monthly amount needed to get there.
func (s *goalService) GetGoalProgress(userID, goalID string, now time.Time) (*GoalProgress, error) {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return nil, err
	}

	remaining := goal.TargetAmount - goal.CurrentAmount
	if remaining < 0 {
		remaining = 0
	}
	progress := &GoalProgress{
		GoalID:        goal.ID,
		Status:        goal.Status,
		TargetAmount:  goal.TargetAmount,
		CurrentAmount: goal.CurrentAmount,
		Remaining:     remaining,
		Percentage:    percentOf(goal.CurrentAmount, goal.TargetAmount),
	}

	if goal.TargetDate != nil {
		days := int(dateOf(*goal.TargetDate).Sub(dateOf(now)).Hours() / 24)
		if days < 0 {
			days = 0
		}
		progress.DaysLeft = &days

		if remaining > 0 {
			months := int64(math.Ceil(float64(days) / 30.0))
			if months < 1 {
				months = 1
			}
			monthly := (remaining + months - 1) / months
			progress.MonthlyAmountNeeded = &monthly
		}
	}

	return progress, nil
}

func (s *goalService) publishCompleted(goal *models.Goal) {
	s.publisher.Publish(context.Background(), events.New(events.GoalCompleted, goal.UserID, map[string]interface{}{
		"goal_id":        goal.ID,
		"name":           goal.Name,
		"target_amount":  goal.TargetAmount,
		"current_amount": goal.CurrentAmount,
	}))
}

func validGoalStatus(st models.GoalStatus) bool {
	switch st {
	case models.GoalStatusActive, models.GoalStatusCompleted, models.GoalStatusPaused, models.GoalStatusCancelled:
		return true
	}
	return false
}
