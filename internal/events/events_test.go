package events

import (
	"context"
	"testing"
)

type recorder struct {
	got []Event
}

func (r *recorder) Publish(_ context.Context, e Event) {
	r.got = append(r.got, e)
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, nil, b}

	m.Publish(context.Background(), New(GoalCompleted, "user-1", map[string]string{"goal_id": "g"}))

	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("expected both subscribers to receive the event, got %d and %d", len(a.got), len(b.got))
	}
	if a.got[0].UserID != "user-1" || a.got[0].Type != GoalCompleted {
		t.Errorf("unexpected event %+v", a.got[0])
	}
	if a.got[0].OccurredAt.IsZero() {
		t.Error("expected OccurredAt to be set")
	}
}

func TestChangesTransactions(t *testing.T) {
	tests := []struct {
		typ  Type
		want bool
	}{
		{TransactionsChanged, true},
		{RecurringMaterialized, true},
		{BudgetExceeded, false},
		{GoalCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := tt.typ.ChangesTransactions(); got != tt.want {
				t.Errorf("ChangesTransactions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNop(t *testing.T) {
	Nop().Publish(context.Background(), New(BudgetThreshold, "u", nil))
}
