package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
)

// UncategorizedName labels transactions without a category in breakdowns.
const UncategorizedName = "Uncategorized"

// analyticsService computes dashboard figures straight from the database.
type analyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates an uncached AnalyticsServicer.
func NewAnalyticsService(db *gorm.DB) AnalyticsServicer {
	return &analyticsService{db: db}
}

// MonthRange returns the first and last instant of the month containing t.
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

func (s *analyticsService) rangeQuery(ctx context.Context, userID string, from, to time.Time) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("transactions.user_id = ? AND transactions.date >= ? AND transactions.date <= ?", userID, from.UTC(), to.UTC())
}

// Summary totals income and expense over [from, to].
func (s *analyticsService) Summary(ctx context.Context, userID string, from, to time.Time) (*Summary, error) {
	if to.Before(from) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "to_date must not be before from_date")
	}

	var rows []struct {
		Type  models.TransactionType
		Total int64
		Count int64
	}
	if err := s.rangeQuery(ctx, userID, from, to).
		Select("type, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	summary := &Summary{From: from.UTC(), To: to.UTC()}
	var expenseCount int64
	for _, r := range rows {
		switch r.Type {
		case models.TransactionTypeIncome:
			summary.TotalIncome = r.Total
		case models.TransactionTypeExpense:
			summary.TotalExpense = r.Total
			expenseCount = r.Count
		}
		summary.TransactionCount += r.Count
	}
	summary.Net = summary.TotalIncome - summary.TotalExpense
	if summary.TotalIncome > 0 {
		summary.SavingsRate = percentOf(summary.Net, summary.TotalIncome)
	}
	if expenseCount > 0 {
		summary.AverageExpense = decimal.NewFromInt(summary.TotalExpense).
			DivRound(decimal.NewFromInt(expenseCount), 0).IntPart()
	}

	breakdown, err := s.CategoryBreakdown(ctx, userID, models.TransactionTypeExpense, from, to)
	if err != nil {
		return nil, err
	}
	if len(breakdown) > 0 {
		top := breakdown[0]
		summary.TopCategory = &top
	}

	return summary, nil
}

// CategoryBreakdown totals one transaction type per category, largest first.
func (s *analyticsService) CategoryBreakdown(ctx context.Context, userID string, txType models.TransactionType, from, to time.Time) ([]CategoryTotal, error) {
	if !validTransactionType(txType) {
		return nil, apperrors.ErrInvalidTransactionType
	}
	if to.Before(from) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "to_date must not be before from_date")
	}

	var rows []struct {
		CategoryID   *string
		CategoryName *string
		Total        int64
		Count        int64
	}
	if err := s.rangeQuery(ctx, userID, from, to).
		Select("transactions.category_id AS category_id, categories.name AS category_name, SUM(transactions.amount) AS total, COUNT(*) AS count").
		Joins("LEFT JOIN categories ON categories.id = transactions.category_id").
		Where("transactions.type = ?", txType).
		Group("transactions.category_id, categories.name").
		Order("total DESC").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var grand int64
	for _, r := range rows {
		grand += r.Total
	}

	totals := make([]CategoryTotal, 0, len(rows))
	for _, r := range rows {
		name := UncategorizedName
		if r.CategoryID != nil && r.CategoryName != nil {
			name = *r.CategoryName
		}
		totals = append(totals, CategoryTotal{
			CategoryID:   r.CategoryID,
			CategoryName: name,
			Total:        r.Total,
			Count:        r.Count,
			Percentage:   percentOf(r.Total, grand),
		})
	}
	return totals, nil
}

// MaxTrendYears bounds the range of a trend series.
const MaxTrendYears = 10

// Trends buckets income and expense by month or ISO week. Every bucket in
// the range is present, including empty ones.
func (s *analyticsService) Trends(ctx context.Context, userID string, interval TrendInterval, from, to time.Time) ([]TrendPoint, error) {
	if interval != TrendMonthly && interval != TrendWeekly {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "interval must be month or week")
	}
	if to.Before(from) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "to_date must not be before from_date")
	}
	if to.After(from.AddDate(MaxTrendYears, 0, 0)) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("trend range must not exceed %d years", MaxTrendYears))
	}

	var rows []struct {
		Type   models.TransactionType
		Amount int64
		Date   time.Time
	}
	if err := s.rangeQuery(ctx, userID, from, to).
		Select("type, amount, date").
		Order("date ASC").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var points []TrendPoint
	index := make(map[time.Time]int)
	for start := bucketStart(interval, from.UTC()); !start.After(to.UTC()); start = nextBucket(interval, start) {
		index[start] = len(points)
		points = append(points, TrendPoint{Period: bucketLabel(interval, start), Start: start})
	}

	for _, r := range rows {
		i, ok := index[bucketStart(interval, r.Date.UTC())]
		if !ok {
			continue
		}
		if r.Type == models.TransactionTypeIncome {
			points[i].Income += r.Amount
		} else {
			points[i].Expense += r.Amount
		}
	}
	for i := range points {
		points[i].Net = points[i].Income - points[i].Expense
	}
	return points, nil
}

func bucketStart(interval TrendInterval, t time.Time) time.Time {
	if interval == TrendWeekly {
		return weekStart(t)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func nextBucket(interval TrendInterval, start time.Time) time.Time {
	if interval == TrendWeekly {
		return start.AddDate(0, 0, 7)
	}
	return start.AddDate(0, 1, 0)
}

func bucketLabel(interval TrendInterval, start time.Time) string {
	if interval == TrendWeekly {
		year, week := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return start.Format("2006-01")
}

// weekStart returns midnight UTC of the Monday on or before t.
func weekStart(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
