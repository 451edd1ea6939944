package recurrence

import (
	"errors"
	"testing"
	"time"

	"fintrack/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestFirstDue(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		want     time.Time
	}{
		{
			name:     "daily_starts_on_start_date",
			schedule: Schedule{Frequency: models.FrequencyDaily, StartDate: date(2025, 3, 10)},
			want:     date(2025, 3, 10),
		},
		{
			name: "weekly_moves_to_anchor_weekday",
			// 2025-03-10 is a Monday; anchor Friday.
			schedule: Schedule{Frequency: models.FrequencyWeekly, StartDate: date(2025, 3, 10), DayOfWeek: intPtr(5)},
			want:     date(2025, 3, 14),
		},
		{
			name:     "monthly_anchor_later_in_month",
			schedule: Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2025, 3, 10), DayOfMonth: intPtr(25)},
			want:     date(2025, 3, 25),
		},
		{
			name:     "monthly_anchor_already_passed",
			schedule: Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2025, 3, 10), DayOfMonth: intPtr(5)},
			want:     date(2025, 4, 5),
		},
		{
			name:     "yearly_anchor_month_passed",
			schedule: Schedule{Frequency: models.FrequencyYearly, StartDate: date(2025, 6, 1), MonthOfYear: intPtr(2), DayOfMonth: intPtr(29)},
			want:     date(2026, 2, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstDue(tt.schedule)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("FirstDue = %s, want %s", got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
			}
		})
	}
}

func TestNextKeepsMonthEndAnchor(t *testing.T) {
	s := Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2024, 1, 31)}
	st, err := StepperFor(s.Frequency)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Time{date(2024, 2, 29), date(2024, 3, 31), date(2024, 4, 30), date(2024, 5, 31)}
	current := st.First(s)
	for _, w := range want {
		current = st.Next(s, current)
		if !current.Equal(w) {
			t.Fatalf("Next = %s, want %s", current.Format(time.DateOnly), w.Format(time.DateOnly))
		}
	}
}

func TestNextByFrequency(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		current  time.Time
		want     time.Time
	}{
		{"daily", Schedule{Frequency: models.FrequencyDaily, StartDate: date(2025, 1, 1)}, date(2025, 12, 31), date(2026, 1, 1)},
		{"weekly_plain", Schedule{Frequency: models.FrequencyWeekly, StartDate: date(2025, 1, 1)}, date(2025, 1, 1), date(2025, 1, 8)},
		{"weekly_unaligned_current", Schedule{Frequency: models.FrequencyWeekly, StartDate: date(2025, 1, 1), DayOfWeek: intPtr(1)}, date(2025, 1, 1), date(2025, 1, 6)},
		{"quarterly", Schedule{Frequency: models.FrequencyQuarterly, StartDate: date(2025, 11, 30)}, date(2025, 11, 30), date(2026, 2, 28)},
		{"yearly_leap_day", Schedule{Frequency: models.FrequencyYearly, StartDate: date(2024, 2, 29)}, date(2024, 2, 29), date(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := StepperFor(tt.schedule.Frequency)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := st.Next(tt.schedule, tt.current)
			if !got.Equal(tt.want) {
				t.Errorf("Next = %s, want %s", got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
			}
		})
	}
}

func TestAdvance(t *testing.T) {
	t.Run("stays_active_within_limits", func(t *testing.T) {
		s := Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2025, 1, 15)}
		res, err := Advance(s, date(2025, 1, 15), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Active || res.Occurrences != 1 || !res.NextDue.Equal(date(2025, 2, 15)) {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("deactivates_at_occurrence_cap", func(t *testing.T) {
		s := Schedule{Frequency: models.FrequencyDaily, StartDate: date(2025, 1, 1), MaxOccurrences: intPtr(3)}
		res, err := Advance(s, date(2025, 1, 3), 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Active {
			t.Error("expected series to be deactivated")
		}
		if res.Occurrences != 3 {
			t.Errorf("expected 3 occurrences, got %d", res.Occurrences)
		}
		if !res.NextDue.Equal(date(2025, 1, 3)) {
			t.Errorf("next due should not move past the cap, got %s", res.NextDue.Format(time.DateOnly))
		}
	})

	t.Run("deactivates_past_end_date", func(t *testing.T) {
		end := date(2025, 3, 20)
		s := Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2025, 1, 25), EndDate: &end}
		res, err := Advance(s, date(2025, 2, 25), 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Active {
			t.Error("expected series to be deactivated")
		}
		if res.NextDue.After(end) {
			t.Errorf("next due %s regressed past end date", res.NextDue.Format(time.DateOnly))
		}
	})

	t.Run("end_date_is_inclusive", func(t *testing.T) {
		end := date(2025, 1, 8)
		s := Schedule{Frequency: models.FrequencyWeekly, StartDate: date(2025, 1, 1), EndDate: &end}
		res, err := Advance(s, date(2025, 1, 1), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Active || !res.NextDue.Equal(end) {
			t.Errorf("expected active with next due on end date, got %+v", res)
		}
	})

	t.Run("never_passes_limits_over_many_steps", func(t *testing.T) {
		end := date(2026, 1, 1)
		s := Schedule{Frequency: models.FrequencyWeekly, StartDate: date(2025, 1, 1), EndDate: &end, MaxOccurrences: intPtr(100)}
		current, count := date(2025, 1, 1), 0
		for i := 0; i < 200; i++ {
			res, err := Advance(s, current, count)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.NextDue.After(end) || res.Occurrences > 100 {
				t.Fatalf("limits violated: %+v", res)
			}
			current, count = res.NextDue, res.Occurrences
			if !res.Active {
				return
			}
		}
		t.Fatal("series never deactivated")
	})

	t.Run("refuses_occurrence_after_end_date", func(t *testing.T) {
		end := date(2025, 2, 10)
		s := Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2025, 1, 1), EndDate: &end}
		if _, err := Advance(s, date(2025, 4, 1), 3); !errors.Is(err, ErrSeriesEnded) {
			t.Errorf("expected ErrSeriesEnded, got %v", err)
		}
	})

	t.Run("refuses_occurrence_beyond_cap", func(t *testing.T) {
		s := Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2025, 1, 1), MaxOccurrences: intPtr(2)}
		if _, err := Advance(s, date(2025, 3, 1), 2); !errors.Is(err, ErrSeriesEnded) {
			t.Errorf("expected ErrSeriesEnded, got %v", err)
		}
	})
}

func TestEnded(t *testing.T) {
	end := date(2025, 3, 31)
	s := Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2025, 1, 1), EndDate: &end, MaxOccurrences: intPtr(5)}

	tests := []struct {
		name     string
		current  time.Time
		occurred int
		want     bool
	}{
		{"within_limits", date(2025, 3, 1), 2, false},
		{"on_end_date", date(2025, 3, 31), 2, false},
		{"after_end_date", date(2025, 4, 1), 3, true},
		{"cap_used_up", date(2025, 2, 1), 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ended(s, tt.current, tt.occurred); got != tt.want {
				t.Errorf("Ended = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSkip(t *testing.T) {
	s := Schedule{Frequency: models.FrequencyWeekly, StartDate: date(2025, 1, 1), MaxOccurrences: intPtr(2)}
	res, err := Skip(s, date(2025, 1, 1), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Active || res.Occurrences != 1 || !res.NextDue.Equal(date(2025, 1, 8)) {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestUpcoming(t *testing.T) {
	t.Run("respects_remaining_occurrences", func(t *testing.T) {
		s := Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2025, 1, 31), MaxOccurrences: intPtr(4)}
		dates, err := Upcoming(s, date(2025, 2, 28), 1, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []time.Time{date(2025, 2, 28), date(2025, 3, 31), date(2025, 4, 30)}
		if len(dates) != len(want) {
			t.Fatalf("expected %d dates, got %d", len(want), len(dates))
		}
		for i := range want {
			if !dates[i].Equal(want[i]) {
				t.Errorf("dates[%d] = %s, want %s", i, dates[i].Format(time.DateOnly), want[i].Format(time.DateOnly))
			}
		}
	})

	t.Run("respects_end_date", func(t *testing.T) {
		s := Schedule{Frequency: models.FrequencyDaily, StartDate: date(2025, 1, 1), EndDate: timePtr(date(2025, 1, 3))}
		dates, err := Upcoming(s, date(2025, 1, 1), 0, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(dates) != 3 {
			t.Errorf("expected 3 dates, got %d", len(dates))
		}
	})
}

func TestRealignFrom(t *testing.T) {
	s := Schedule{Frequency: models.FrequencyWeekly, StartDate: date(2025, 1, 1)}
	got, err := RealignFrom(s, date(2025, 1, 1), date(2025, 1, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(date(2025, 1, 22)) {
		t.Errorf("RealignFrom = %s, want 2025-01-22", got.Format(time.DateOnly))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		wantErr  bool
	}{
		{"valid", Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2025, 1, 1), DayOfMonth: intPtr(15)}, false},
		{"unknown_frequency", Schedule{Frequency: "hourly", StartDate: date(2025, 1, 1)}, true},
		{"missing_start", Schedule{Frequency: models.FrequencyDaily}, true},
		{"bad_weekday", Schedule{Frequency: models.FrequencyWeekly, StartDate: date(2025, 1, 1), DayOfWeek: intPtr(7)}, true},
		{"bad_day_of_month", Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2025, 1, 1), DayOfMonth: intPtr(0)}, true},
		{"bad_month", Schedule{Frequency: models.FrequencyYearly, StartDate: date(2025, 1, 1), MonthOfYear: intPtr(13)}, true},
		{"zero_cap", Schedule{Frequency: models.FrequencyDaily, StartDate: date(2025, 1, 1), MaxOccurrences: intPtr(0)}, true},
		{"end_before_start", Schedule{Frequency: models.FrequencyDaily, StartDate: date(2025, 2, 1), EndDate: timePtr(date(2025, 1, 1))}, true},
		{"no_occurrence_before_end", Schedule{Frequency: models.FrequencyMonthly, StartDate: date(2025, 1, 10), DayOfMonth: intPtr(5), EndDate: timePtr(date(2025, 1, 31))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.schedule)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("unknown_frequency_is_typed", func(t *testing.T) {
		err := Validate(Schedule{Frequency: "hourly", StartDate: date(2025, 1, 1)})
		if !errors.Is(err, ErrUnknownFrequency) {
			t.Errorf("expected ErrUnknownFrequency, got %v", err)
		}
	})
}
