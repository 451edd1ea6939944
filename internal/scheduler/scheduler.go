// Package scheduler runs the periodic jobs: recurring materialization,
// balance snapshots and the monthly report dispatch.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
)

// Job names used in logs and metrics.
const (
	JobRecurring = "recurring"
	JobSnapshots = "snapshots"
	JobReports   = "reports"
)

// Config sets the tick intervals. Reports are checked on every recurring tick.
type Config struct {
	RecurringInterval time.Duration
	SnapshotInterval  time.Duration
}

// Scheduler drives the periodic jobs until its context is cancelled.
type Scheduler struct {
	recurring services.RecurringProcessor
	snapshots services.SnapshotServicer
	reports   services.ReportServicer
	cfg       Config
	now       func() time.Time
	log       *zap.SugaredLogger

	mu             sync.Mutex
	lastReportedAt string
}

// New creates a scheduler. reports may be nil when no broker is configured.
func New(cfg Config, recurring services.RecurringProcessor, snapshots services.SnapshotServicer, reports services.ReportServicer) *Scheduler {
	if cfg.RecurringInterval <= 0 {
		cfg.RecurringInterval = time.Hour
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 24 * time.Hour
	}
	return &Scheduler{
		recurring: recurring,
		snapshots: snapshots,
		reports:   reports,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.Named("scheduler"),
	}
}

// Run processes once on start, then on every tick. It returns when ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Infow("Scheduler started",
		"recurring_interval", s.cfg.RecurringInterval,
		"snapshot_interval", s.cfg.SnapshotInterval,
		"reports", s.reports != nil,
	)

	s.RunRecurring(ctx, s.now())
	s.RunReports(ctx, s.now())

	recurringTicker := time.NewTicker(s.cfg.RecurringInterval)
	defer recurringTicker.Stop()
	snapshotTicker := time.NewTicker(s.cfg.SnapshotInterval)
	defer snapshotTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return
		case <-recurringTicker.C:
			now := s.now()
			s.RunRecurring(ctx, now)
			s.RunReports(ctx, now)
		case <-snapshotTicker.C:
			s.RunSnapshots(s.now())
		}
	}
}

// RunRecurring materializes every due recurring template.
func (s *Scheduler) RunRecurring(ctx context.Context, now time.Time) {
	created, err := s.recurring.ProcessDue(ctx, now)
	if err != nil {
		s.fail(JobRecurring, err)
		return
	}
	metrics.JobRuns.WithLabelValues(JobRecurring, "success").Inc()
	s.log.Infow("Recurring processing complete", "created", created, "next_check", now.Add(s.cfg.RecurringInterval).Format(time.RFC3339))
}

// RunSnapshots records a balance snapshot for every active user.
func (s *Scheduler) RunSnapshots(now time.Time) {
	recorded, err := s.snapshots.RecordSnapshots(now)
	if err != nil {
		s.fail(JobSnapshots, err)
		return
	}
	metrics.JobRuns.WithLabelValues(JobSnapshots, "success").Inc()
	s.log.Infow("Snapshots recorded", "count", recorded)
}

// RunReports dispatches last month's reports on the first day of a month, at
// most once per month per process. Workers drop duplicate message ids, so a
// restart on day one only costs redundant publishes.
func (s *Scheduler) RunReports(ctx context.Context, now time.Time) {
	if s.reports == nil || now.Day() != 1 {
		return
	}

	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	key := month.Format(services.ReportMonthLayout)

	s.mu.Lock()
	if s.lastReportedAt == key {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	sent, err := s.reports.DispatchMonthlyReports(ctx, month)
	if err != nil {
		if errors.Is(err, apperrors.ErrBrokerUnavailable) {
			return
		}
		s.fail(JobReports, err)
		return
	}

	s.mu.Lock()
	s.lastReportedAt = key
	s.mu.Unlock()

	metrics.JobRuns.WithLabelValues(JobReports, "success").Inc()
	s.log.Infow("Monthly reports dispatched", "month", key, "sent", sent)
}

func (s *Scheduler) fail(job string, err error) {
	metrics.JobRuns.WithLabelValues(job, "failure").Inc()
	s.log.Errorw("Job failed", "job", job, "error", err)
}
