// Package google exports transactions to a Google Sheets spreadsheet.
package google

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	"fintrack/internal/importer"
	"fintrack/internal/log"
)

var ErrNotConfigured = errors.New("sheets export is not configured")

// Exporter writes one tab per owner, replacing its contents on every export.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger
}

// New wraps an existing service, which lets tests point it at a fake server.
func New(svc *gsheet.Service, spreadsheetID, sheetBase string) *Exporter {
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Transactions"
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		logger:        log.Default(log.ComponentSheets),
	}
}

// NewFromEnv creates an exporter with service account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, spreadsheetID, sheetBase string) (*Exporter, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.Wrap(ErrNotConfigured, "missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "sheets service")
	}
	return New(svc, spreadsheetID, sheetBase), nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := serviceAccountCredentials()
	if err != nil {
		return nil, err
	}
	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, errors.Wrap(err, "create sheets service")
	}
	return service, nil
}

func serviceAccountCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read service account file")
	}
	return data, nil
}

// SheetName is the tab that holds ownerID's export.
func (e *Exporter) SheetName(ownerID string) string {
	return fmt.Sprintf("%s - %s", e.sheetBase, ownerID)
}

// Export replaces the owner's tab with txs and returns the written range.
func (e *Exporter) Export(ctx context.Context, ownerID string, txs []core.Transaction) (string, error) {
	if e == nil || e.svc == nil {
		return "", ErrNotConfigured
	}
	sheet := e.SheetName(ownerID)
	if err := e.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	all := fmt.Sprintf("'%s'!A:F", sheet)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", errors.Wrapf(err, "clear %s", all)
	}

	records := importer.Records(txs)
	values := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		values[i] = row
	}

	rng := fmt.Sprintf("'%s'!A1:F%d", sheet, len(values))
	_, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", errors.Wrapf(err, "update %s", rng)
	}

	e.logger.InfoContext(ctx, "Exported transactions to Google Sheets",
		log.FieldOwner, ownerID,
		log.FieldCount, len(txs),
		"range", rng)
	return rng, nil
}

func (e *Exporter) ensureSheet(ctx context.Context, title string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return errors.Wrap(err, "read spreadsheet")
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return errors.Wrapf(err, "add sheet %q", title)
	}
	e.logger.InfoContext(ctx, "Created export sheet", "sheet", title)
	return nil
}
