// Package recurrence computes due dates for recurring transactions.
//
// Each frequency has its own Stepper. Monthly, quarterly and yearly steppers
// keep the anchor day across short months, so a series anchored on the 31st
// runs Jan 31, Feb 28, Mar 31.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"fintrack/internal/models"
)

// Schedule is the calendar part of a recurring transaction.
type Schedule struct {
	Frequency      models.Frequency
	DayOfWeek      *int
	DayOfMonth     *int
	MonthOfYear    *int
	StartDate      time.Time
	EndDate        *time.Time
	MaxOccurrences *int
}

// FromModel extracts the schedule of a recurring transaction.
func FromModel(rt *models.RecurringTransaction) Schedule {
	return Schedule{
		Frequency:      rt.Frequency,
		DayOfWeek:      rt.DayOfWeek,
		DayOfMonth:     rt.DayOfMonth,
		MonthOfYear:    rt.MonthOfYear,
		StartDate:      rt.StartDate,
		EndDate:        rt.EndDate,
		MaxOccurrences: rt.MaxOccurrences,
	}
}

// Stepper is the per-frequency date arithmetic.
type Stepper interface {
	// First returns the earliest occurrence on or after the start date.
	First(s Schedule) time.Time
	// Next returns the occurrence that follows current.
	Next(s Schedule, current time.Time) time.Time
}

var steppers = map[models.Frequency]Stepper{
	models.FrequencyDaily:     dailyStepper{},
	models.FrequencyWeekly:    weeklyStepper{},
	models.FrequencyMonthly:   monthStepper{months: 1},
	models.FrequencyQuarterly: monthStepper{months: 3},
	models.FrequencyYearly:    yearlyStepper{},
}

// ErrUnknownFrequency is returned for a frequency with no registered stepper.
var ErrUnknownFrequency = errors.New("unknown frequency")

// StepperFor returns the stepper registered for a frequency.
func StepperFor(f models.Frequency) (Stepper, error) {
	st, ok := steppers[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, f)
	}
	return st, nil
}

// Validate checks anchor ranges and limits, and that the series has at least
// one occurrence.
func Validate(s Schedule) error {
	st, err := StepperFor(s.Frequency)
	if err != nil {
		return err
	}
	if s.StartDate.IsZero() {
		return errors.New("start_date is required")
	}
	if s.DayOfWeek != nil && (*s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
		return errors.New("day_of_week must be between 0 (Sunday) and 6 (Saturday)")
	}
	if s.DayOfMonth != nil && (*s.DayOfMonth < 1 || *s.DayOfMonth > 31) {
		return errors.New("day_of_month must be between 1 and 31")
	}
	if s.MonthOfYear != nil && (*s.MonthOfYear < 1 || *s.MonthOfYear > 12) {
		return errors.New("month_of_year must be between 1 and 12")
	}
	if s.MaxOccurrences != nil && *s.MaxOccurrences < 1 {
		return errors.New("max_occurrences must be at least 1")
	}
	if s.EndDate != nil {
		if dateOnly(*s.EndDate).Before(dateOnly(s.StartDate)) {
			return errors.New("end_date must not be before start_date")
		}
		if afterEnd(s, st.First(s)) {
			return errors.New("schedule has no occurrence before end_date")
		}
	}
	return nil
}

// FirstDue returns the first occurrence of a schedule.
func FirstDue(s Schedule) (time.Time, error) {
	st, err := StepperFor(s.Frequency)
	if err != nil {
		return time.Time{}, err
	}
	return st.First(s), nil
}

// Result is the state of a series after one step.
type Result struct {
	NextDue     time.Time
	Occurrences int
	Active      bool
}

// ErrSeriesEnded is returned by Advance when current can no longer be
// materialized.
var ErrSeriesEnded = errors.New("recurring series has ended")

// Ended reports whether the occurrence at current is out of the series: the
// cap is used up or current falls after the end date.
func Ended(s Schedule, current time.Time, occurred int) bool {
	if s.MaxOccurrences != nil && occurred >= *s.MaxOccurrences {
		return true
	}
	return afterEnd(s, current)
}

// Advance records the occurrence at current and moves to the next one.
// When the cap is reached or the next date falls after the end date the
// series is deactivated and NextDue stays at current.
func Advance(s Schedule, current time.Time, occurred int) (Result, error) {
	st, err := StepperFor(s.Frequency)
	if err != nil {
		return Result{}, err
	}
	if Ended(s, current, occurred) {
		return Result{}, ErrSeriesEnded
	}

	count := occurred + 1
	if s.MaxOccurrences != nil && count >= *s.MaxOccurrences {
		return Result{NextDue: current, Occurrences: count, Active: false}, nil
	}

	next := st.Next(s, current)
	if afterEnd(s, next) {
		return Result{NextDue: current, Occurrences: count, Active: false}, nil
	}
	return Result{NextDue: next, Occurrences: count, Active: true}, nil
}

// Skip moves past the occurrence at current without counting it.
func Skip(s Schedule, current time.Time, occurred int) (Result, error) {
	st, err := StepperFor(s.Frequency)
	if err != nil {
		return Result{}, err
	}

	next := st.Next(s, current)
	if afterEnd(s, next) {
		return Result{NextDue: current, Occurrences: occurred, Active: false}, nil
	}
	return Result{NextDue: next, Occurrences: occurred, Active: true}, nil
}

// Upcoming lists at most n future occurrences starting at nextDue, honouring
// the end date and the remaining occurrence budget.
func Upcoming(s Schedule, nextDue time.Time, occurred, n int) ([]time.Time, error) {
	st, err := StepperFor(s.Frequency)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, n)
	current := nextDue
	count := occurred
	for len(dates) < n {
		if s.MaxOccurrences != nil && count >= *s.MaxOccurrences {
			break
		}
		if afterEnd(s, current) {
			break
		}
		dates = append(dates, current)
		count++
		current = st.Next(s, current)
	}
	return dates, nil
}

// RealignFrom returns the first occurrence on or after from, used when a
// paused series is resumed after its due date has passed.
func RealignFrom(s Schedule, nextDue, from time.Time) (time.Time, error) {
	st, err := StepperFor(s.Frequency)
	if err != nil {
		return time.Time{}, err
	}
	current := nextDue
	for current.Before(dateOnly(from)) {
		current = st.Next(s, current)
	}
	return current, nil
}

func afterEnd(s Schedule, t time.Time) bool {
	return s.EndDate != nil && dateOnly(t).After(dateOnly(*s.EndDate))
}
