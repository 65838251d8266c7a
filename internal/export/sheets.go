package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// SheetsExporter writes export rows into one tab of a spreadsheet,
// replacing what was there.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

// NewSheetsExporter builds an exporter on top of an existing client option
// set. Production code goes through NewSheetsExporterFromCredentials.
func NewSheetsExporter(ctx context.Context, spreadsheetID, sheet string, opts ...option.ClientOption) (*SheetsExporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheet) == "" {
		return nil, errors.New("missing sheet name")
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &SheetsExporter{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

// NewSheetsExporterFromCredentials authenticates with a service account,
// given inline as JSON or as a file path.
func NewSheetsExporterFromCredentials(ctx context.Context, spreadsheetID, sheet, credentialsJSON, credentialsFile string) (*SheetsExporter, error) {
	var creds []byte
	switch {
	case strings.TrimSpace(credentialsJSON) != "":
		creds = []byte(credentialsJSON)
	case strings.TrimSpace(credentialsFile) != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	return NewSheetsExporter(ctx, spreadsheetID, sheet,
		option.WithCredentialsJSON(creds),
		option.WithScopes(gsheet.SpreadsheetsScope))
}

func (e *SheetsExporter) rangeFor(cells string) string {
	return fmt.Sprintf("'%s'!%s", e.sheet, cells)
}

// Export clears the tab and writes rows starting at A1.
func (e *SheetsExporter) Export(ctx context.Context, rows [][]string) error {
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, e.rangeFor("A:Z"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %q: %w", e.sheet, err)
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}

	resp, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, e.rangeFor("A1"), &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet %q: %w", e.sheet, err)
	}

	slog.InfoContext(ctx, "Exported handover to Google Sheets",
		"sheet", e.sheet,
		"rows", len(rows),
		"updated_cells", resp.UpdatedCells)
	return nil
}
