// Package events carries domain notifications from services to interested
// subscribers (the WebSocket hub and the analytics cache).
package events

import (
	"context"
	"time"

	"fintrack/internal/logger"
)

// Type names a domain event.
type Type string

const (
	BudgetThreshold       Type = "budget.threshold"
	BudgetExceeded        Type = "budget.exceeded"
	GoalCompleted         Type = "goal.completed"
	RecurringMaterialized Type = "recurring.materialized"
	TransactionsChanged   Type = "transactions.changed"
)

// ChangesTransactions reports whether events of this type follow a write to
// the user's transactions.
func (t Type) ChangesTransactions() bool {
	return t == TransactionsChanged || t == RecurringMaterialized
}

// Event is a single notification scoped to one user.
type Event struct {
	Type       Type        `json:"type"`
	UserID     string      `json:"-"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// New builds an event stamped with the current time.
func New(t Type, userID string, payload interface{}) Event {
	return Event{Type: t, UserID: userID, Payload: payload, OccurredAt: time.Now().UTC()}
}

// Publisher delivers events. Implementations must not block the caller for
// long and must not fail the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event)

func (f PublisherFunc) Publish(ctx context.Context, e Event) {
	f(ctx, e)
}

type nop struct{}

func (nop) Publish(context.Context, Event) {}

// Nop returns a publisher that drops every event.
func Nop() Publisher {
	return nop{}
}

// Multi fans an event out to every publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, e)
		}
	}
}

// Logging wraps a publisher and logs every event at debug level.
func Logging(next Publisher) Publisher {
	return PublisherFunc(func(ctx context.Context, e Event) {
		logger.Get().Debugw("event", "type", e.Type, "user_id", e.UserID)
		next.Publish(ctx, e)
	})
}
