package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/export"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

type fakeProcessor struct {
	calls []time.Time
	err   error
}

func (f *fakeProcessor) ProcessDue(_ context.Context, now time.Time) (int, error) {
	f.calls = append(f.calls, now)
	return len(f.calls), f.err
}

func (f *fakeProcessor) ProcessDueForUser(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

type fakeSnapshots struct {
	calls int
}

func (f *fakeSnapshots) RecordSnapshots(time.Time) (int, error) {
	f.calls++
	return 2, nil
}

func (f *fakeSnapshots) RecordUserSnapshot(string, time.Time) (*models.BalanceSnapshot, error) {
	return nil, nil
}

func (f *fakeSnapshots) GetUserSnapshots(string, pagination.PageRequest, *time.Time, *time.Time) (*pagination.PageResponse[models.BalanceSnapshot], error) {
	return nil, nil
}

type fakeReports struct {
	months []time.Time
	err    error
}

func (f *fakeReports) BuildMonthlyReport(context.Context, string, time.Time) (*export.Report, error) {
	return nil, nil
}

func (f *fakeReports) RequestEmailReport(context.Context, string, time.Time, export.Format) (*services.ReportRequest, error) {
	return nil, nil
}

func (f *fakeReports) DispatchMonthlyReports(_ context.Context, month time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.months = append(f.months, month)
	return 1, nil
}

func newTestScheduler(reports services.ReportServicer) (*Scheduler, *fakeProcessor, *fakeSnapshots) {
	proc := &fakeProcessor{}
	snaps := &fakeSnapshots{}
	return New(Config{RecurringInterval: 10 * time.Millisecond, SnapshotInterval: 10 * time.Millisecond}, proc, snaps, reports), proc, snaps
}

func TestRunReports(t *testing.T) {
	t.Run("dispatches last month on day one", func(t *testing.T) {
		reports := &fakeReports{}
		s, _, _ := newTestScheduler(reports)

		s.RunReports(context.Background(), time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))

		if len(reports.months) != 1 {
			t.Fatalf("expected one dispatch, got %d", len(reports.months))
		}
		if !reports.months[0].Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("expected February, got %v", reports.months[0])
		}
	})

	t.Run("january reports december", func(t *testing.T) {
		reports := &fakeReports{}
		s, _, _ := newTestScheduler(reports)

		s.RunReports(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

		if len(reports.months) != 1 || !reports.months[0].Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("expected December 2025, got %v", reports.months)
		}
	})

	t.Run("dispatches once per month", func(t *testing.T) {
		reports := &fakeReports{}
		s, _, _ := newTestScheduler(reports)

		s.RunReports(context.Background(), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
		s.RunReports(context.Background(), time.Date(2025, 3, 1, 1, 0, 0, 0, time.UTC))

		if len(reports.months) != 1 {
			t.Errorf("expected one dispatch, got %d", len(reports.months))
		}
	})

	t.Run("skips other days", func(t *testing.T) {
		reports := &fakeReports{}
		s, _, _ := newTestScheduler(reports)

		s.RunReports(context.Background(), time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))

		if len(reports.months) != 0 {
			t.Errorf("expected no dispatch, got %d", len(reports.months))
		}
	})

	t.Run("retries after a failure", func(t *testing.T) {
		reports := &fakeReports{err: errors.New("broker down")}
		s, _, _ := newTestScheduler(reports)
		day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

		s.RunReports(context.Background(), day)
		reports.err = nil
		s.RunReports(context.Background(), day.Add(time.Hour))

		if len(reports.months) != 1 {
			t.Errorf("expected the second attempt to dispatch, got %d", len(reports.months))
		}
	})

	t.Run("no reports service is a no-op", func(t *testing.T) {
		s, _, _ := newTestScheduler(nil)

		s.RunReports(context.Background(), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	})
}

func TestRun(t *testing.T) {
	s, proc, snaps := newTestScheduler(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	s.Run(ctx)

	if len(proc.calls) < 2 {
		t.Errorf("expected the initial run plus ticks, got %d calls", len(proc.calls))
	}
	if snaps.calls == 0 {
		t.Error("expected at least one snapshot tick")
	}
}

func TestRunRecurringSurvivesErrors(t *testing.T) {
	s, proc, _ := newTestScheduler(nil)
	proc.err = errors.New("database is locked")

	s.RunRecurring(context.Background(), time.Now())
	s.RunRecurring(context.Background(), time.Now())

	if len(proc.calls) != 2 {
		t.Errorf("expected both runs to reach the processor, got %d", len(proc.calls))
	}
}
