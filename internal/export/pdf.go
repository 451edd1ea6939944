package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"
)

// Column widths in mm for an A4 portrait page with 10mm margins.
var pdfColumns = []float64{24, 20, 36, 66, 24, 20}

func newPDF() (*fpdf.Fpdf, func(string) string) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	return pdf, pdf.UnicodeTranslatorFromDescriptor("")
}

func writeTransactionsPDF(w io.Writer, lines []Line) error {
	pdf, tr := newPDF()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Transactions", "", 1, "L", false, 0, "")
	pdf.Ln(2)
	transactionTable(pdf, tr, lines)
	return outputPDF(pdf, w)
}

func writeReportPDF(w io.Writer, r *Report) error {
	pdf, tr := newPDF()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr(r.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(r.Owner), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("%s - %s (%s)", r.From.Format(dateLayout), r.To.Format(dateLayout), r.Currency), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, kv := range [][2]string{
		{"Income", FormatAmount(r.Totals.Income)},
		{"Expense", FormatAmount(r.Totals.Expense)},
		{"Net", FormatAmount(r.Totals.Net)},
		{"Savings rate", formatPercent(r.Totals.SavingsRate)},
		{"Transactions", strconv.FormatInt(r.Totals.TransactionCount, 10)},
	} {
		pdf.CellFormat(40, 6, kv[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, kv[1], "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	if len(r.Categories) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, "Categories", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
		for i, h := range []string{"Category", "Type", "Total", "Count", "Share"} {
			pdf.CellFormat([]float64{70, 25, 30, 20, 25}[i], 6, h, "B", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
		for _, c := range r.Categories {
			pdf.CellFormat(70, 6, tr(c.Name), "", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, c.Type, "", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, FormatAmount(c.Total), "", 0, "R", false, 0, "")
			pdf.CellFormat(20, 6, strconv.FormatInt(c.Count, 10), "", 0, "R", false, 0, "")
			pdf.CellFormat(25, 6, formatPercent(c.Percentage), "", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, "Transactions", "", 1, "L", false, 0, "")
	transactionTable(pdf, tr, r.Transactions)

	return outputPDF(pdf, w)
}

func transactionTable(pdf *fpdf.Fpdf, tr func(string) string, lines []Line) {
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range transactionHeader {
		pdf.CellFormat(pdfColumns[i], 6, h, "B", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, l := range lines {
		record := lineRecord(l)
		for i, v := range record {
			align := "L"
			if i == 4 {
				align = "R"
			}
			pdf.CellFormat(pdfColumns[i], 5, truncate(tr(v), pdfColumns[i]), "", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// truncate keeps text roughly inside a column; fpdf cells do not clip.
func truncate(s string, width float64) string {
	limit := int(width / 1.6)
	if len(s) <= limit {
		return s
	}
	if limit <= 3 {
		return s[:limit]
	}
	return s[:limit-3] + "..."
}

func outputPDF(pdf *fpdf.Fpdf, w io.Writer) error {
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
