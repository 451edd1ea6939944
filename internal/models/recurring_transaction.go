package models

import "time"

// Frequency is how often a recurring transaction repeats.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// RecurringTransaction is a template that materializes transactions on a schedule.
type RecurringTransaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID  *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Amount      int64           `gorm:"type:bigint;not null" json:"amount"`
	Description string          `json:"description"`

	Frequency   Frequency `gorm:"not null" json:"frequency"`
	DayOfWeek   *int      `json:"day_of_week,omitempty"`
	DayOfMonth  *int      `json:"day_of_month,omitempty"`
	MonthOfYear *int      `json:"month_of_year,omitempty"`

	StartDate       time.Time  `gorm:"not null" json:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	MaxOccurrences  *int       `json:"max_occurrences,omitempty"`
	OccurrenceCount int        `gorm:"not null;default:0" json:"occurrence_count"`
	NextDueDate     time.Time  `gorm:"not null;index" json:"next_due_date"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	IsActive        bool       `gorm:"default:true;index" json:"is_active"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
