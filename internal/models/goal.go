package models

import "time"

// GoalStatus is the lifecycle state of a savings goal.
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusPaused    GoalStatus = "paused"
	GoalStatusCancelled GoalStatus = "cancelled"
)

// Goal is a savings target funded by deposits and withdrawals.
type Goal struct {
	Base
	UserID        string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Name          string     `gorm:"not null" json:"name"`
	Description   string     `json:"description"`
	TargetAmount  int64      `gorm:"type:bigint;not null" json:"target_amount"`
	CurrentAmount int64      `gorm:"type:bigint;not null;default:0" json:"current_amount"`
	TargetDate    *time.Time `json:"target_date,omitempty"`
	Status        GoalStatus `gorm:"not null;default:'active'" json:"status"`
	Color         string     `json:"color"`
	Icon          string     `json:"icon"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// SavingsTransactionType distinguishes deposits from withdrawals.
type SavingsTransactionType string

const (
	SavingsDeposit    SavingsTransactionType = "deposit"
	SavingsWithdrawal SavingsTransactionType = "withdrawal"
)

// SavingsTransaction moves money into or out of a goal.
type SavingsTransaction struct {
	Base
	UserID string                 `gorm:"type:uuid;not null;index" json:"user_id"`
	GoalID string                 `gorm:"type:uuid;not null;index" json:"goal_id"`
	Type   SavingsTransactionType `gorm:"not null" json:"type"`
	Amount int64                  `gorm:"type:bigint;not null" json:"amount"`
	Date   time.Time              `gorm:"not null" json:"date"`
	Note   string                 `json:"note"`
}
