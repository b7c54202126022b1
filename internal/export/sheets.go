package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledgerbook/internal/core"
	"ledgerbook/internal/log"
)

// SheetsConfig selects the target sheet and the service account used to
// reach it. CredentialsJSON wins over CredentialsFile.
type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// SheetsExporter appends entries to a Google Sheet, writing the header row
// first when the sheet is empty.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ Exporter = (*SheetsExporter)(nil)

// NewSheetsExporter authenticates with the service account in cfg. Extra
// client options are passed to the Sheets service.
func NewSheetsExporter(ctx context.Context, cfg SheetsConfig, logger *log.Logger, opts ...goption.ClientOption) (*SheetsExporter, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Ledger"
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	if len(opts) == 0 {
		credentialsJSON, err := serviceAccountJSON(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

func serviceAccountJSON(ctx context.Context, cfg SheetsConfig, logger *log.Logger) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		logger.DebugContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Export appends one row per entry below the existing data.
func (s *SheetsExporter) Export(ctx context.Context, entries []core.Ledger) (int, error) {
	if s.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}

	values := make([][]any, 0, len(entries)+1)
	empty, err := s.sheetEmpty(ctx)
	if err != nil {
		return 0, err
	}
	if empty {
		values = append(values, toCells(Header))
	}
	for _, r := range rows(entries) {
		values = append(values, toCells(r))
	}
	if len(values) == 0 {
		return 0, nil
	}

	rng := fmt.Sprintf("%s!A:E", s.sheetName)
	vr := &gsheet.ValueRange{Values: values}
	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("append to sheet %s: %w", s.sheetName, err)
	}

	s.logger.InfoContext(ctx, "exported ledger entries",
		log.FieldOperation, log.OpExport,
		"rows", len(entries),
		"updated_range", updatedRange(resp))
	return len(entries), nil
}

func (s *SheetsExporter) sheetEmpty(ctx context.Context) (bool, error) {
	rng := fmt.Sprintf("%s!A1:E1", s.sheetName)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", rng, err)
	}
	for _, row := range resp.Values {
		for _, cell := range row {
			if strings.TrimSpace(fmt.Sprint(cell)) != "" {
				return false, nil
			}
		}
	}
	return true, nil
}

func toCells(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func updatedRange(resp *gsheet.AppendValuesResponse) string {
	if resp == nil || resp.Updates == nil {
		return ""
	}
	return resp.Updates.UpdatedRange
}
