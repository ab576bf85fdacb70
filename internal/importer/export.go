package importer

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"

	"fintrack/internal/core"
)

// ExportHeader is the first row of every export.
var ExportHeader = []string{"Date", "Type", "Category", "Subcategory", "Amount", "Description"}

// Records renders transactions as export rows, header first.
func Records(txs []core.Transaction) [][]string {
	out := make([][]string, 0, len(txs)+1)
	out = append(out, append([]string(nil), ExportHeader...))
	for _, tx := range txs {
		out = append(out, []string{
			tx.Date.String(),
			string(tx.Type),
			tx.Category,
			tx.Subcategory,
			tx.Amount.String(),
			tx.Description,
		})
	}
	return out
}

// Export writes txs as CSV.
func Export(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Records(txs)); err != nil {
		return errors.Wrap(err, "write csv")
	}
	return nil
}
