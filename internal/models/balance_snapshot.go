package models

import (
	"time"

	"fintrack/internal/uuid"

	"gorm.io/gorm"
)

// BalanceSnapshot is a point-in-time roll-up of a user's lifetime totals.
// Immutable time-series data: no Base embed, no soft deletes.
type BalanceSnapshot struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string    `gorm:"type:uuid;not null;index" json:"user_id"`
	RecordedAt     time.Time `gorm:"not null" json:"recorded_at"`
	TotalIncome    int64     `gorm:"type:bigint;not null" json:"total_income"`
	TotalExpense   int64     `gorm:"type:bigint;not null" json:"total_expense"`
	NetBalance     int64     `gorm:"type:bigint;not null" json:"net_balance"`
	SavingsBalance int64     `gorm:"type:bigint;not null" json:"savings_balance"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *BalanceSnapshot) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}
