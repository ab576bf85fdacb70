package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	dashboards := cache.NewLRUCache[core.Dashboard](16, time.Minute)
	svc := services.NewTransactionService(memory.New(), nil, nil, services.WithDashboardCache(dashboards))
	srv := NewServer(":0", svc, cfg, nil)
	srv.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { srv.limiter.Stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, target, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	return decode[errorBody](t, rr).Error
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Config{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
		assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_"))
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestMethodPatterns(t *testing.T) {
	srv := newTestServer(t, Config{})
	rr := do(t, srv, http.MethodPatch, "/api/transactions", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateAndListTransactions(t *testing.T) {
	srv := newTestServer(t, Config{})

	rr := do(t, srv, http.MethodPost, "/api/transactions", "alice",
		`{"date":"2024-01-15","amount":"15","description":"Netflix","type":"expense"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decode[core.Transaction](t, rr)
	assert.Equal(t, "/api/transactions/"+tx.ID, rr.Header().Get("Location"))
	assert.Equal(t, "alice", tx.OwnerID)
	assert.Equal(t, core.StatusRule, tx.Status)
	assert.Equal(t, "Entertainment", tx.Category)

	list := decode[[]core.Transaction](t, do(t, srv, http.MethodGet, "/api/transactions", "alice", ""))
	require.Len(t, list, 1)
	assert.Equal(t, tx.ID, list[0].ID)

	list = decode[[]core.Transaction](t, do(t, srv, http.MethodGet, "/api/transactions?month=2024-02", "alice", ""))
	assert.Empty(t, list)

	rr = do(t, srv, http.MethodGet, "/api/transactions", "bob", "")
	assert.Equal(t, "[]\n", rr.Body.String())
}

func TestCreateTransaction_DefaultOwner(t *testing.T) {
	srv := newTestServer(t, Config{DefaultOwner: "household"})
	rr := do(t, srv, http.MethodPost, "/api/transactions", "",
		`{"date":"2024-01-15","amount":"15","description":"Netflix","type":"expense"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "household", decode[core.Transaction](t, rr).OwnerID)
}

func TestCreateTransaction_Validation(t *testing.T) {
	srv := newTestServer(t, Config{})

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing date", `{"amount":"10","description":"x","type":"expense"}`, "invalid date"},
		{"bad date", `{"date":"15/01/2024","amount":"10","description":"x","type":"expense"}`, "invalid date"},
		{"bad amount", `{"date":"2024-01-15","amount":"ten","description":"x","type":"expense"}`, "invalid amount"},
		{"unknown field", `{"date":"2024-01-15","amount":"10","description":"x","owner_id":"eve"}`, "malformed JSON body"},
		{"long description", `{"date":"2024-01-15","amount":"10","type":"expense","description":"` + strings.Repeat("x", 501) + `"}`, "description too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/transactions", "alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, errorOf(t, rr), tt.wantErr)
		})
	}
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	srv := newTestServer(t, Config{})
	created := decode[core.Transaction](t, do(t, srv, http.MethodPost, "/api/transactions", "alice",
		`{"date":"2024-01-15","amount":"30","description":"Chemist","type":"expense"}`))

	body := `{"date":"2024-01-15","amount":"30","description":"Chemist","type":"expense","category":"Healthcare","subcategory":"Pharmacy"}`
	rr := do(t, srv, http.MethodPut, "/api/transactions/"+created.ID, "alice", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[core.Transaction](t, rr)
	assert.Equal(t, core.StatusUser, updated.Status)
	assert.Equal(t, "Pharmacy", updated.Subcategory)

	rr = do(t, srv, http.MethodPut, "/api/transactions/"+created.ID, "alice",
		`{"date":"2024-01-15","amount":"30","description":"Chemist","type":"expense","category":"Bogus","subcategory":"Nope"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorOf(t, rr), "unknown category")

	rr = do(t, srv, http.MethodPut, "/api/transactions/"+created.ID, "bob", body)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "transaction not found", errorOf(t, rr))

	rr = do(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "bob", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "alice", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = do(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "alice", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBulkDelete(t *testing.T) {
	srv := newTestServer(t, Config{})
	rr := do(t, srv, http.MethodPost, "/api/sample?months=3", "alice", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodDelete, "/api/transactions", "alice", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/transactions?month=2024-13", "alice", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/transactions?month=2024-03", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(11), decode[deletedResponse](t, rr).Deleted)

	rr = do(t, srv, http.MethodDelete, "/api/transactions?all=true", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(20), decode[deletedResponse](t, rr).Deleted)
}

func TestSampleAndDashboard(t *testing.T) {
	srv := newTestServer(t, Config{})

	rr := do(t, srv, http.MethodPost, "/api/sample?months=3", "alice", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, sampleResponse{Created: 31, Months: 3}, decode[sampleResponse](t, rr))

	for _, target := range []string{"/api/sample?months=0", "/api/sample?months=abc", "/api/sample?months=25"} {
		rr = do(t, srv, http.MethodPost, target, "alice", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}

	// no month parameter means the current month
	rr = do(t, srv, http.MethodGet, "/api/dashboard", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	d := decode[core.Dashboard](t, rr)
	assert.Equal(t, "2024-03", d.Month.String())
	assert.Equal(t, "5120.00", d.Totals.Income.String())
	assert.NotEmpty(t, d.ByCategory)

	rr = do(t, srv, http.MethodGet, "/api/dashboard?month=March", "alice", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBudgets(t *testing.T) {
	srv := newTestServer(t, Config{})

	rr := do(t, srv, http.MethodGet, "/api/budgets", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())

	rr = do(t, srv, http.MethodPut, "/api/budgets", "alice",
		`[{"category":"Utilities","amount":"100","month":"2024-03"},{"category":"Salary","amount":"5000","month":"2024-03"}]`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	budgets := decode[[]core.Budget](t, rr)
	require.Len(t, budgets, 2)
	for _, b := range budgets {
		assert.Equal(t, "alice", b.OwnerID)
	}

	rr = do(t, srv, http.MethodPut, "/api/budgets", "alice",
		`[{"category":"Utilities","amount":"100","month":"2024-03"},{"category":"Utilities","amount":"90","month":"2024-03"}]`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodPut, "/api/budgets", "alice", `[{"category":"Utilities","amount":"100","month":"2024-3-1"}]`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid month", errorOf(t, rr))
}

func TestImportAndExport(t *testing.T) {
	srv := newTestServer(t, Config{})

	csv := "Date,Expense Detail,Amount\n" +
		"2024-01-05,Monthly SIP contribution,500\n" +
		"01/07/2024,Grocery shopping at supermarket,$80.50\n" +
		"not-a-date,Broken row,10\n"
	rr := do(t, srv, http.MethodPost, "/api/import", "alice", csv)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode[importResponse](t, rr)
	assert.Equal(t, "imported 2 of 3 rows", got.Summary)
	require.Len(t, got.Skipped, 1)
	assert.Equal(t, 4, got.Skipped[0].Line)

	rr = do(t, srv, http.MethodPost, "/api/import", "alice", "When,What\n2024-01-01,x\n")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/export", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Type,Category,Subcategory,Amount,Description", lines[0])

	rr = do(t, srv, http.MethodPost, "/api/export/sheets", "alice", "")
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestClassifyAndPreview(t *testing.T) {
	srv := newTestServer(t, Config{})
	do(t, srv, http.MethodPost, "/api/sample?months=1", "alice", "")

	rr := do(t, srv, http.MethodPost, "/api/transactions/classify", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 11, decode[classifiedResponse](t, rr).Classified)

	rr = do(t, srv, http.MethodGet, "/api/classify/preview?description=Monthly+SIP+contribution", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"subcategory":"SIPs"`)

	rr = do(t, srv, http.MethodGet, "/api/classify/preview", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTaxonomy(t *testing.T) {
	srv := newTestServer(t, Config{})
	rr := do(t, srv, http.MethodGet, "/api/taxonomy", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	tax := decode[taxonomyResponse](t, rr)
	assert.Len(t, tax.Expense, 10)
	assert.Len(t, tax.Income, 4)
}

func TestOwnerHeaderTooLong(t *testing.T) {
	srv := newTestServer(t, Config{})
	rr := do(t, srv, http.MethodGet, "/api/transactions", strings.Repeat("o", maxOwnerLen+1), "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRateLimitOnMutatingMethods(t *testing.T) {
	rl := ratelimit.DefaultConfig()
	rl.RequestsPerMinute = 2
	srv := newTestServer(t, Config{RateLimit: rl})

	for range 2 {
		rr := do(t, srv, http.MethodPost, "/api/transactions/classify", "alice", "")
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/api/transactions/classify", "alice", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Contains(t, errorOf(t, rr), "rate limit exceeded")

	// reads are not limited
	rr = do(t, srv, http.MethodGet, "/api/transactions", "alice", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
