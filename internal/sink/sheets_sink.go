package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSink maps shards onto worksheets of one Google Spreadsheet, the
// production output of the scraper. One shard == one worksheet.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewSheetsSink authorizes with a service-account credentials file.
func NewSheetsSink(ctx context.Context, credentialsFile, spreadsheetID string, logger *zap.Logger) (*SheetsSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("sheets: init service: %w", err)
	}
	return &SheetsSink{svc: svc, spreadsheetID: spreadsheetID, logger: logger}, nil
}

// EnsureShard adds the worksheet with its header row when missing.
func (s *SheetsSink) EnsureShard(ctx context.Context, shard string, header []string) error {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: get spreadsheet: %w", err)
	}
	for _, sheet := range meta.Sheets {
		if sheet.Properties.Title == shard {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: shard},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets: add worksheet %q: %w", shard, err)
	}

	if err := s.Append(ctx, shard, [][]string{header}); err != nil {
		return fmt.Errorf("sheets: write header for %q: %w", shard, err)
	}
	s.logger.Info("worksheet created", zap.String("shard", shard))
	return nil
}

// Append adds rows after the last non-empty row of the worksheet.
func (s *SheetsSink) Append(ctx context.Context, shard string, rows [][]string) error {
	vr := &sheets.ValueRange{Values: toInterfaceRows(rows)}
	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, shard+"!A1", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: append %d rows to %q: %w", len(rows), shard, err)
	}
	return nil
}

// Update overwrites one data row in place. Offset 0 is the first row below
// the header, i.e. sheet row offset+2 in A1 notation.
func (s *SheetsSink) Update(ctx context.Context, shard string, offset int, row []string) error {
	sheetRow := offset + 2
	rng := fmt.Sprintf("%s!A%d:%s%d", shard, sheetRow, ColumnLabel(len(row)), sheetRow)
	vr := &sheets.ValueRange{Values: toInterfaceRows([][]string{row})}
	_, err := s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: update %s: %w", rng, err)
	}
	return nil
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (s *SheetsSink) Close() error { return nil }

// ColumnLabel converts a 1-based column number to its A1 letter label:
// 1→A, 26→Z, 27→AA.
func ColumnLabel(n int) string {
	label := ""
	for n > 0 {
		n--
		label = string(rune('A'+n%26)) + label
		n /= 26
	}
	return label
}

func toInterfaceRows(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		vals := make([]interface{}, len(row))
		for j, v := range row {
			vals[j] = v
		}
		out[i] = vals
	}
	return out
}
