package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"ledgerbook/internal/core"
)

// CSVExporter writes a header row followed by one row per entry.
type CSVExporter struct {
	w io.Writer
}

func NewCSVExporter(w io.Writer) *CSVExporter {
	return &CSVExporter{w: w}
}

func (e *CSVExporter) Export(ctx context.Context, entries []core.Ledger) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cw := csv.NewWriter(e.w)
	if err := cw.Write(Header); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(rows(entries)); err != nil {
		return 0, fmt.Errorf("write csv rows: %w", err)
	}
	return len(entries), nil
}
