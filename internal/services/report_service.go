package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/export"
	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/uuid"
)

// ReportMonthLayout is the YYYY-MM form used in report requests and URLs.
const ReportMonthLayout = "2006-01"

// DefaultReportFormat is used for scheduled monthly reports.
const DefaultReportFormat = export.FormatPDF

// ReportRequest is the message a report worker consumes.
type ReportRequest struct {
	MessageID   string        `json:"message_id"`
	UserID      string        `json:"user_id"`
	Email       string        `json:"email"`
	Month       string        `json:"month"`
	Format      export.Format `json:"format"`
	RequestedAt time.Time     `json:"requested_at"`
}

// MonthTime parses the request month.
func (r ReportRequest) MonthTime() (time.Time, error) {
	return ParseReportMonth(r.Month)
}

// MessagePublisher hands a message to the broker.
type MessagePublisher interface {
	Publish(ctx context.Context, messageID string, body interface{}) error
}

// ParseReportMonth parses YYYY-MM into the first instant of that month in UTC.
func ParseReportMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(ReportMonthLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be formatted as YYYY-MM")
	}
	return t, nil
}

// reportMessageID is the stable id of the scheduled report for one user, month
// and format. Workers use it to drop redeliveries.
func reportMessageID(userID string, month time.Time, format export.Format) string {
	return fmt.Sprintf("%s:%s:%s", userID, month.Format(ReportMonthLayout), format)
}

type reportService struct {
	users        UserServicer
	transactions TransactionServicer
	analytics    AnalyticsServicer
	publisher    MessagePublisher
	now          func() time.Time
}

// NewReportService creates a ReportServicer. A nil publisher disables email
// delivery.
func NewReportService(users UserServicer, transactions TransactionServicer, analytics AnalyticsServicer, publisher MessagePublisher) ReportServicer {
	return &reportService{
		users:        users,
		transactions: transactions,
		analytics:    analytics,
		publisher:    publisher,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// BuildMonthlyReport assembles the summary, category breakdown and transaction
// list of the month containing month.
func (s *reportService) BuildMonthlyReport(ctx context.Context, userID string, month time.Time) (*export.Report, error) {
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	from, to := MonthRange(month)
	summary, err := s.analytics.Summary(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	var categories []export.CategoryLine
	for _, txType := range []models.TransactionType{models.TransactionTypeExpense, models.TransactionTypeIncome} {
		breakdown, err := s.analytics.CategoryBreakdown(ctx, userID, txType, from, to)
		if err != nil {
			return nil, err
		}
		for _, c := range breakdown {
			categories = append(categories, export.CategoryLine{
				Name:       c.CategoryName,
				Type:       string(txType),
				Total:      c.Total,
				Count:      c.Count,
				Percentage: c.Percentage,
			})
		}
	}

	txs, err := s.transactions.ListTransactions(userID, TransactionFilter{FromDate: &from, ToDate: &to, SortAsc: true})
	if err != nil {
		return nil, err
	}

	return &export.Report{
		Title:    "Monthly report " + from.Format("January 2006"),
		Owner:    strings.TrimSpace(user.FirstName + " " + user.LastName),
		Currency: user.Currency,
		From:     from,
		To:       to,
		Totals: export.Totals{
			Income:           summary.TotalIncome,
			Expense:          summary.TotalExpense,
			Net:              summary.Net,
			SavingsRate:      summary.SavingsRate,
			TransactionCount: summary.TransactionCount,
		},
		Categories:   categories,
		Transactions: TransactionLines(txs),
	}, nil
}

// RequestEmailReport queues an on-demand report. Each call gets a unique
// message id so a user can ask for the same month again.
func (s *reportService) RequestEmailReport(ctx context.Context, userID string, month time.Time, format export.Format) (*ReportRequest, error) {
	if s.publisher == nil {
		return nil, apperrors.ErrBrokerUnavailable
	}
	if format != export.FormatXLSX && format != export.FormatPDF {
		return nil, apperrors.WithMessage(apperrors.ErrUnsupportedFormat, "reports are available as xlsx or pdf")
	}

	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	req := s.newRequest(user, month, format)
	req.MessageID += ":" + uuid.New()
	if err := s.publisher.Publish(ctx, req.MessageID, req); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrBrokerUnavailable, err)
	}
	return &req, nil
}

// DispatchMonthlyReports publishes one request per subscribed user. It stops
// at the first publish failure since the broker is then unlikely to accept
// the rest; redelivered ids are dropped by the worker.
func (s *reportService) DispatchMonthlyReports(ctx context.Context, month time.Time) (int, error) {
	if s.publisher == nil {
		return 0, apperrors.ErrBrokerUnavailable
	}

	users, err := s.users.GetReportSubscribers()
	if err != nil {
		return 0, err
	}

	log := logger.Named("reports")
	sent := 0
	for i := range users {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		req := s.newRequest(&users[i], month, DefaultReportFormat)
		if err := s.publisher.Publish(ctx, req.MessageID, req); err != nil {
			return sent, fmt.Errorf("publish report for user %s: %w", users[i].ID, err)
		}
		log.Infow("Report request published", "user_id", users[i].ID, "message_id", req.MessageID)
		sent++
	}
	return sent, nil
}

func (s *reportService) newRequest(user *models.User, month time.Time, format export.Format) ReportRequest {
	start, _ := MonthRange(month)
	return ReportRequest{
		MessageID:   reportMessageID(user.ID, start, format),
		UserID:      user.ID,
		Email:       user.Email,
		Month:       start.Format(ReportMonthLayout),
		Format:      format,
		RequestedAt: s.now(),
	}
}

// TransactionLines converts transactions into export rows.
func TransactionLines(txs []models.Transaction) []export.Line {
	lines := make([]export.Line, 0, len(txs))
	for _, t := range txs {
		category := UncategorizedName
		if t.Category != nil {
			category = t.Category.Name
		}
		lines = append(lines, export.Line{
			Date:        t.Date,
			Type:        string(t.Type),
			Category:    category,
			Description: t.Description,
			Notes:       t.Notes,
			Amount:      t.Amount,
		})
	}
	return lines
}
