package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	sheetTransactions = "Transactions"
	sheetSummary      = "Summary"
	sheetCategories   = "Categories"
)

func writeTransactionsXLSX(w io.Writer, lines []Line) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetTransactions); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := fillTransactionSheet(f, lines); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeReportXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	summary := [][]interface{}{
		{r.Title},
		{"Owner", r.Owner},
		{"Period", r.From.Format(dateLayout) + " - " + r.To.Format(dateLayout)},
		{"Currency", r.Currency},
		{},
		{"Income", amountValue(r.Totals.Income)},
		{"Expense", amountValue(r.Totals.Expense)},
		{"Net", amountValue(r.Totals.Net)},
		{"Savings rate", formatPercent(r.Totals.SavingsRate)},
		{"Transactions", r.Totals.TransactionCount},
	}
	for i, row := range summary {
		if len(row) == 0 {
			continue
		}
		if err := setRow(f, sheetSummary, i+1, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(sheetCategories); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	if err := setRow(f, sheetCategories, 1, []interface{}{"Category", "Type", "Total", "Count", "Share"}); err != nil {
		return err
	}
	for i, c := range r.Categories {
		row := []interface{}{c.Name, c.Type, amountValue(c.Total), c.Count, formatPercent(c.Percentage)}
		if err := setRow(f, sheetCategories, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(sheetTransactions); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	if err := fillTransactionSheet(f, r.Transactions); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func fillTransactionSheet(f *excelize.File, lines []Line) error {
	header := make([]interface{}, len(transactionHeader))
	for i, h := range transactionHeader {
		header[i] = h
	}
	if err := setRow(f, sheetTransactions, 1, header); err != nil {
		return err
	}
	for i, l := range lines {
		row := []interface{}{l.Date.Format(dateLayout), l.Type, l.Category, l.Description, amountValue(l.Amount), l.Notes}
		if err := setRow(f, sheetTransactions, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetTransactions, "D", "D", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("set %s row %d: %w", sheet, row, err)
	}
	return nil
}
