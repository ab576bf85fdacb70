package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
)

type fakeSheets struct {
	mu      sync.Mutex
	titles  []string
	added   []string
	cleared []string
	updated map[string][][]any
	fail    bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		http.Error(w, `{"error":{"code":403,"message":"permission denied"}}`, http.StatusForbidden)
		return
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-id"):
		var sheets []map[string]any
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, q := range req.Requests {
			if q.AddSheet != nil {
				f.added = append(f.added, q.AddSheet.Properties.Title)
				f.titles = append(f.titles, q.AddSheet.Properties.Title)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-id"})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.cleared = append(f.cleared, rangeOf(path, ":clear"))
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-id"})

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		body, _ := io.ReadAll(r.Body)
		var vr gsheet.ValueRange
		json.Unmarshal(body, &vr)
		if f.updated == nil {
			f.updated = map[string][][]any{}
		}
		f.updated[rangeOf(path, "")] = vr.Values
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-id"})

	default:
		http.NotFound(w, r)
	}
}

func rangeOf(path, suffix string) string {
	_, rng, _ := strings.Cut(path, "/values/")
	return strings.TrimSuffix(rng, suffix)
}

func newTestExporter(t *testing.T, fake *fakeSheets) *Exporter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return New(svc, "sheet-id", "Transactions")
}

func sampleTxs() []core.Transaction {
	return []core.Transaction{
		{Date: core.NewDate(2024, 1, 1), Type: core.Income, Category: "Salary", Subcategory: "Monthly Salary", Amount: core.MustMoney("1000"), Description: "Salary"},
		{Date: core.NewDate(2024, 1, 2), Type: core.Expense, Category: "Savings", Subcategory: "SIPs", Amount: core.MustMoney("100"), Description: "SIP"},
	}
}

func TestExporter_CreatesSheetAndWritesRows(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Sheet1"}}
	e := newTestExporter(t, fake)

	rng, err := e.Export(context.Background(), "alice", sampleTxs())
	require.NoError(t, err)
	assert.Equal(t, "'Transactions - alice'!A1:F3", rng)

	assert.Equal(t, []string{"Transactions - alice"}, fake.added)
	assert.Equal(t, []string{"'Transactions - alice'!A:F"}, fake.cleared)

	values := fake.updated[rng]
	require.Len(t, values, 3)
	assert.Equal(t, []any{"Date", "Type", "Category", "Subcategory", "Amount", "Description"}, values[0])
	assert.Equal(t, []any{"2024-01-02", "expense", "Savings", "SIPs", "100.00", "SIP"}, values[2])
}

func TestExporter_ReusesExistingSheet(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Transactions - bob"}}
	e := newTestExporter(t, fake)

	_, err := e.Export(context.Background(), "bob", nil)
	require.NoError(t, err)
	assert.Empty(t, fake.added)
	assert.Len(t, fake.updated["'Transactions - bob'!A1:F1"], 1, "header only")
}

func TestExporter_APIErrorIsWrapped(t *testing.T) {
	fake := &fakeSheets{fail: true}
	e := newTestExporter(t, fake)

	_, err := e.Export(context.Background(), "alice", sampleTxs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read spreadsheet")
}

func TestExporter_NotConfigured(t *testing.T) {
	var e *Exporter
	_, err := e.Export(context.Background(), "alice", nil)
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = NewFromEnv(context.Background(), " ", "")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background(), "sheet-id", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}
