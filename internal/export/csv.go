package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

func writeTransactionsCSV(w io.Writer, lines []Line) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transactionHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, l := range lines {
		if err := cw.Write(lineRecord(l)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
