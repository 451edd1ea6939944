package recurrence

import "time"

type dailyStepper struct{}

func (dailyStepper) First(s Schedule) time.Time {
	return dateOnly(s.StartDate)
}

func (dailyStepper) Next(_ Schedule, current time.Time) time.Time {
	return dateOnly(current).AddDate(0, 0, 1)
}

// weeklyStepper repeats every seven days, or on DayOfWeek when set.
type weeklyStepper struct{}

func (weeklyStepper) First(s Schedule) time.Time {
	start := dateOnly(s.StartDate)
	if s.DayOfWeek == nil {
		return start
	}
	return start.AddDate(0, 0, daysUntil(start.Weekday(), time.Weekday(*s.DayOfWeek)))
}

func (weeklyStepper) Next(s Schedule, current time.Time) time.Time {
	current = dateOnly(current)
	if s.DayOfWeek == nil {
		return current.AddDate(0, 0, 7)
	}
	days := daysUntil(current.Weekday(), time.Weekday(*s.DayOfWeek))
	if days == 0 {
		days = 7
	}
	return current.AddDate(0, 0, days)
}

// monthStepper covers monthly and quarterly series.
type monthStepper struct {
	months int
}

func (m monthStepper) First(s Schedule) time.Time {
	start := dateOnly(s.StartDate)
	day := anchorDay(s)
	candidate := clampedDate(start.Year(), start.Month(), day, start.Location())
	if candidate.Before(start) {
		candidate = clampedDate(start.Year(), start.Month()+1, day, start.Location())
	}
	return candidate
}

func (m monthStepper) Next(s Schedule, current time.Time) time.Time {
	return clampedDate(current.Year(), current.Month()+time.Month(m.months), anchorDay(s), current.Location())
}

type yearlyStepper struct{}

func (yearlyStepper) First(s Schedule) time.Time {
	start := dateOnly(s.StartDate)
	month, day := anchorMonth(s), anchorDay(s)
	candidate := clampedDate(start.Year(), month, day, start.Location())
	if candidate.Before(start) {
		candidate = clampedDate(start.Year()+1, month, day, start.Location())
	}
	return candidate
}

func (yearlyStepper) Next(s Schedule, current time.Time) time.Time {
	return clampedDate(current.Year()+1, anchorMonth(s), anchorDay(s), current.Location())
}

func anchorDay(s Schedule) int {
	if s.DayOfMonth != nil {
		return *s.DayOfMonth
	}
	return s.StartDate.Day()
}

func anchorMonth(s Schedule) time.Month {
	if s.MonthOfYear != nil {
		return time.Month(*s.MonthOfYear)
	}
	return s.StartDate.Month()
}

// clampedDate builds year/month/day, normalizing month overflow and clamping
// day to the last day of that month.
func clampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
}

func daysUntil(from, to time.Weekday) int {
	return (int(to) - int(from) + 7) % 7
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
