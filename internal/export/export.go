// Package export writes a list of ledger entries to a spreadsheet or CSV.
// Every exporter emits the same columns: date, type, category, remark,
// amount.
package export

import (
	"context"

	"ledgerbook/internal/core"
)

// Header is the first row of every export.
var Header = []string{"date", "type", "category", "remark", "amount"}

// Exporter writes entries in order and reports how many rows it wrote.
type Exporter interface {
	Export(ctx context.Context, entries []core.Ledger) (int, error)
}

// Row renders one entry as export cells.
func Row(l core.Ledger) []string {
	return []string{
		l.When().Format(core.DateLayout),
		string(l.Type),
		l.CategoryName(),
		l.Remark,
		l.Amount.StringFixed(2),
	}
}

func rows(entries []core.Ledger) [][]string {
	out := make([][]string, 0, len(entries))
	for _, l := range entries {
		out = append(out, Row(l))
	}
	return out
}
