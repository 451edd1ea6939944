// Package worker consumes report requests from the broker, renders the report
// and mails it to the user.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fintrack/internal/broker"
	apperrors "fintrack/internal/errors"
	"fintrack/internal/export"
	"fintrack/internal/logger"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
)

// Deduper remembers handled message ids.
type Deduper interface {
	Seen(id string) (bool, error)
	MarkDone(id string) (bool, error)
}

// ReportWorker handles services.ReportRequest messages.
type ReportWorker struct {
	reports services.ReportServicer
	store   Deduper
	mailer  Mailer
	log     *zap.SugaredLogger
}

// NewReportWorker creates a worker.
func NewReportWorker(reports services.ReportServicer, store Deduper, mailer Mailer) *ReportWorker {
	return &ReportWorker{
		reports: reports,
		store:   store,
		mailer:  mailer,
		log:     logger.Named("report-worker"),
	}
}

// Handle processes one delivery. Requests that can never succeed are wrapped
// in broker.ErrMalformed so the broker drops them; other errors requeue.
func (w *ReportWorker) Handle(ctx context.Context, msg broker.Message) error {
	var req services.ReportRequest
	if err := msg.Decode(&req); err != nil {
		return w.done("malformed", err)
	}
	if req.MessageID == "" {
		req.MessageID = msg.ID
	}
	if err := validateRequest(req); err != nil {
		return w.done("malformed", err)
	}

	seen, err := w.store.Seen(req.MessageID)
	if err != nil {
		return w.done("failure", fmt.Errorf("check idempotence: %w", err))
	}
	if seen {
		w.log.Infow("Skipping duplicate report request", "message_id", req.MessageID, "redelivered", msg.Redelivered)
		return w.done("duplicate", nil)
	}

	month, err := req.MonthTime()
	if err != nil {
		return w.done("malformed", fmt.Errorf("%w: %v", broker.ErrMalformed, err))
	}

	report, err := w.reports.BuildMonthlyReport(ctx, req.UserID, month)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return w.done("malformed", fmt.Errorf("%w: user %s no longer exists", broker.ErrMalformed, req.UserID))
		}
		return w.done("failure", fmt.Errorf("build report: %w", err))
	}

	var buf bytes.Buffer
	if err := export.WriteReport(&buf, req.Format, report); err != nil {
		return w.done("failure", fmt.Errorf("render report: %w", err))
	}

	mail := Mail{
		To:      req.Email,
		Subject: report.Title,
		Body:    fmt.Sprintf("Hello %s,\n\nyour FinTrack report for %s is attached.\n", report.Owner, report.From.Format("January 2006")),
		Attachments: []Attachment{{
			Filename:    req.Format.Filename("fintrack_" + req.Month),
			ContentType: req.Format.ContentType(),
			Data:        buf.Bytes(),
		}},
	}
	if err := w.mailer.Send(ctx, mail); err != nil {
		return w.done("failure", fmt.Errorf("send report: %w", err))
	}

	if _, err := w.store.MarkDone(req.MessageID); err != nil {
		// The mail is out; a redelivery would only send it twice.
		w.log.Errorw("Failed to record handled message", "message_id", req.MessageID, "error", err)
	}
	w.log.Infow("Report sent", "message_id", req.MessageID, "user_id", req.UserID, "month", req.Month, "format", req.Format)
	return w.done("success", nil)
}

func (w *ReportWorker) done(outcome string, err error) error {
	metrics.ReportsHandled.WithLabelValues(outcome).Inc()
	return err
}

func validateRequest(req services.ReportRequest) error {
	switch {
	case req.MessageID == "":
		return fmt.Errorf("%w: missing message id", broker.ErrMalformed)
	case req.UserID == "":
		return fmt.Errorf("%w: missing user id", broker.ErrMalformed)
	case req.Email == "":
		return fmt.Errorf("%w: missing email", broker.ErrMalformed)
	case req.Format != export.FormatXLSX && req.Format != export.FormatPDF:
		return fmt.Errorf("%w: unsupported format %q", broker.ErrMalformed, req.Format)
	}
	return nil
}
