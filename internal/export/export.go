// Package export renders transactions and monthly reports as CSV, XLSX or PDF.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "fintrack/internal/errors"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	}
	return "", apperrors.WithMessage(apperrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported format %q", s))
}

// ContentType returns the MIME type served with the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Filename appends the format's extension to base.
func (f Format) Filename(base string) string {
	return base + "." + string(f)
}

// Line is one transaction row of an export.
type Line struct {
	Date        time.Time
	Type        string
	Category    string
	Description string
	Notes       string
	Amount      int64
}

// CategoryLine is one row of a report's category breakdown.
type CategoryLine struct {
	Name       string
	Type       string
	Total      int64
	Count      int64
	Percentage float64
}

// Totals is the headline block of a report.
type Totals struct {
	Income           int64
	Expense          int64
	Net              int64
	SavingsRate      float64
	TransactionCount int64
}

// Report is a monthly statement ready to render.
type Report struct {
	Title        string
	Owner        string
	Currency     string
	From         time.Time
	To           time.Time
	Totals       Totals
	Categories   []CategoryLine
	Transactions []Line
}

var transactionHeader = []string{"Date", "Type", "Category", "Description", "Amount", "Notes"}

// WriteTransactions renders a flat transaction list.
func WriteTransactions(w io.Writer, f Format, lines []Line) error {
	switch f {
	case FormatCSV:
		return writeTransactionsCSV(w, lines)
	case FormatXLSX:
		return writeTransactionsXLSX(w, lines)
	case FormatPDF:
		return writeTransactionsPDF(w, lines)
	}
	return apperrors.ErrUnsupportedFormat
}

// WriteReport renders a monthly report. CSV cannot hold the multi-section
// layout and is refused.
func WriteReport(w io.Writer, f Format, r *Report) error {
	switch f {
	case FormatXLSX:
		return writeReportXLSX(w, r)
	case FormatPDF:
		return writeReportPDF(w, r)
	}
	return apperrors.WithMessage(apperrors.ErrUnsupportedFormat, "reports are available as xlsx or pdf")
}

// FormatAmount renders minor units as a fixed two-decimal string.
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func amountValue(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

func formatPercent(p float64) string {
	return decimal.NewFromFloat(p).StringFixed(1) + "%"
}

const dateLayout = "2006-01-02"

func lineRecord(l Line) []string {
	return []string{
		l.Date.Format(dateLayout),
		l.Type,
		l.Category,
		l.Description,
		FormatAmount(l.Amount),
		l.Notes,
	}
}
