package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitGroup is a reusable set of people expenses are shared with.
type SplitGroup struct {
	Base
	UserID      string             `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string             `gorm:"not null" json:"name"`
	Description string             `json:"description"`
	Members     []SplitGroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

// SplitGroupMember is a contact inside a split group.
type SplitGroupMember struct {
	Base
	GroupID string `gorm:"type:uuid;not null;index" json:"group_id"`
	Name    string `gorm:"not null" json:"name"`
	Email   string `json:"email,omitempty"`
}

// SplitMethod is how a transaction amount is divided.
type SplitMethod string

const (
	SplitMethodEqual      SplitMethod = "equal"
	SplitMethodPercentage SplitMethod = "percentage"
	SplitMethodExact      SplitMethod = "exact"
)

// SplitStatus tracks whether a participant has paid their share back.
type SplitStatus string

const (
	SplitStatusPending SplitStatus = "pending"
	SplitStatusSettled SplitStatus = "settled"
)

// ExpenseSplit is one participant's share of an expense paid by the user.
type ExpenseSplit struct {
	Base
	UserID           string           `gorm:"type:uuid;not null;index" json:"user_id"`
	TransactionID    string           `gorm:"type:uuid;not null;index" json:"transaction_id"`
	MemberID         *string          `gorm:"type:uuid" json:"member_id,omitempty"`
	ParticipantName  string           `gorm:"not null" json:"participant_name"`
	ParticipantEmail string           `json:"participant_email,omitempty"`
	Method           SplitMethod      `gorm:"not null" json:"method"`
	Amount           int64            `gorm:"type:bigint;not null" json:"amount"`
	Percentage       *decimal.Decimal `gorm:"type:decimal(7,4)" json:"percentage,omitempty"`
	Status           SplitStatus      `gorm:"not null;default:'pending'" json:"status"`
	SettledAt        *time.Time       `json:"settled_at,omitempty"`
}
