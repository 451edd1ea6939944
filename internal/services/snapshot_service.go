package services

import (
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// snapshotService records point-in-time balance roll-ups.
type snapshotService struct {
	db *gorm.DB
}

// NewSnapshotService creates a new SnapshotServicer.
func NewSnapshotService(db *gorm.DB) SnapshotServicer {
	return &snapshotService{db: db}
}

// RecordSnapshots computes and stores a snapshot for every active user.
// Re-running for the same recordedAt overwrites instead of duplicating.
func (s *snapshotService) RecordSnapshots(recordedAt time.Time) (int, error) {
	userIDs, err := activeUserIDs(s.db)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, userID := range userIDs {
		if _, err := s.RecordUserSnapshot(userID, recordedAt); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// RecordUserSnapshot computes and upserts one user's snapshot.
func (s *snapshotService) RecordUserSnapshot(userID string, recordedAt time.Time) (*models.BalanceSnapshot, error) {
	recordedAt = recordedAt.UTC()
	snapshot, err := s.computeSnapshot(userID, recordedAt)
	if err != nil {
		return nil, err
	}

	// Upsert: check for existing snapshot at same user+time
	var existing models.BalanceSnapshot
	result := s.db.Where("user_id = ? AND recorded_at = ?", userID, recordedAt).Limit(1).Find(&existing)
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected > 0 {
		if err := s.db.Model(&existing).Updates(map[string]interface{}{
			"total_income":    snapshot.TotalIncome,
			"total_expense":   snapshot.TotalExpense,
			"net_balance":     snapshot.NetBalance,
			"savings_balance": snapshot.SavingsBalance,
		}).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		snapshot.ID = existing.ID
		return snapshot, nil
	}

	if err := s.db.Create(snapshot).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return snapshot, nil
}

// computeSnapshot totals everything recorded up to recordedAt.
func (s *snapshotService) computeSnapshot(userID string, recordedAt time.Time) (*models.BalanceSnapshot, error) {
	var rows []struct {
		Type  models.TransactionType
		Total int64
	}
	if err := s.db.Model(&models.Transaction{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ? AND date <= ?", userID, recordedAt).
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	snapshot := &models.BalanceSnapshot{UserID: userID, RecordedAt: recordedAt}
	for _, r := range rows {
		if r.Type == models.TransactionTypeIncome {
			snapshot.TotalIncome = r.Total
		} else {
			snapshot.TotalExpense = r.Total
		}
	}
	snapshot.NetBalance = snapshot.TotalIncome - snapshot.TotalExpense

	// Savings: money currently set aside in goals that are still open.
	if err := s.db.Model(&models.Goal{}).
		Where("user_id = ? AND status <> ?", userID, models.GoalStatusCancelled).
		Select("COALESCE(SUM(current_amount), 0)").
		Scan(&snapshot.SavingsBalance).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return snapshot, nil
}

// GetUserSnapshots returns paginated snapshots, newest first, optionally
// bounded by from and to.
func (s *snapshotService) GetUserSnapshots(userID string, page pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.BalanceSnapshot], error) {
	page.Defaults()

	base := s.db.Model(&models.BalanceSnapshot{}).Where("user_id = ?", userID)
	if from != nil {
		base = base.Where("recorded_at >= ?", from.UTC())
	}
	if to != nil {
		base = base.Where("recorded_at <= ?", to.UTC())
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var snapshots []models.BalanceSnapshot
	if err := base.Order("recorded_at DESC").Scopes(pagination.Paginate(page)).Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, totalItems)
	return &result, nil
}
