package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

const testSecret = "test-secret-0123456789"

type testEnv struct {
	srv      *Server
	verifier *auth.Verifier
	store    *memory.Store
}

func newTestEnv(t *testing.T, limiter *ratelimit.Limiter) *testEnv {
	t.Helper()
	store := memory.New()
	dash := services.NewDashboardService(store, nil, nil)
	txs := services.NewTransactionService(store, nil, dash, nil)
	v := auth.NewVerifier(testSecret, "", "")
	srv := NewServer(":0", Deps{
		Transactions: txs,
		Dashboard:    dash,
		Store:        store,
		Verifier:     v,
		Limiter:      limiter,
	})
	return &testEnv{srv: srv, verifier: v, store: store}
}

func (e *testEnv) do(t *testing.T, owner, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		if strings.HasPrefix(body, "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if owner != "" {
		token, err := e.verifier.Issue(owner, time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		rr := env.do(t, "", http.MethodGet, path, "")
		if rr.Code != http.StatusOK || rr.Body.String() != want {
			t.Errorf("%s = %d %q", path, rr.Code, rr.Body.String())
		}
	}

	env.srv.store = pingerFunc(func(context.Context) error { return errors.New("database is locked") })
	rr := env.do(t, "", http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz after close = %d, want 503", rr.Code)
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/transactions"},
		{http.MethodPost, "/transactions"},
		{http.MethodGet, "/transactions/1"},
		{http.MethodPut, "/transactions/1"},
		{http.MethodDelete, "/transactions/1"},
		{http.MethodGet, "/dashboard"},
	} {
		rr := env.do(t, "", tc.method, tc.path, "")
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", tc.method, tc.path, rr.Code)
		}
		if !strings.HasPrefix(rr.Header().Get("WWW-Authenticate"), "Bearer") {
			t.Errorf("%s %s missing WWW-Authenticate", tc.method, tc.path)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", rr.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "alice", http.MethodPost, "/transactions",
		`{"date":"2024-01-05","type":"income","category":" Salary ","description":"Jan","amount":1000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rr.Code, rr.Body.String())
	}
	created := decode[transactionJSON](t, rr)
	if created.Amount != "1000.00" || created.Category != "Salary" || created.Type != "income" {
		t.Errorf("created = %+v", created)
	}
	if rr.Header().Get("Location") == "" {
		t.Error("missing Location header")
	}
	path := rr.Header().Get("Location")

	rr = env.do(t, "alice", http.MethodGet, path, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get = %d", rr.Code)
	}

	rr = env.do(t, "alice", http.MethodPut, path,
		"date=2024-01-06&type=expense&category=Rent&description=&amount=500.5")
	if rr.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rr.Code, rr.Body.String())
	}
	updated := decode[transactionJSON](t, rr)
	if updated.Amount != "500.50" || updated.Type != "expense" || updated.Date != "2024-01-06" {
		t.Errorf("updated = %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}

	rr = env.do(t, "alice", http.MethodDelete, path, "")
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("delete = %d %q", rr.Code, rr.Body.String())
	}
	rr = env.do(t, "alice", http.MethodGet, path, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", rr.Code)
	}
}

func TestOtherOwnersRowsAreNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, "alice", http.MethodPost, "/transactions",
		`{"date":"2024-01-05","type":"income","category":"Salary","amount":"10"}`)
	path := rr.Header().Get("Location")

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		if rr := env.do(t, "mallory", method, path, ""); rr.Code != http.StatusNotFound {
			t.Errorf("%s by other owner = %d, want 404", method, rr.Code)
		}
	}
	rr = env.do(t, "mallory", http.MethodPut, path,
		`{"date":"2024-01-05","type":"expense","category":"Stolen","amount":"1"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("PUT by other owner = %d, want 404", rr.Code)
	}

	rr = env.do(t, "alice", http.MethodGet, path, "")
	got := decode[transactionJSON](t, rr)
	if got.Category != "Salary" {
		t.Errorf("row was modified: %+v", got)
	}
}

func TestCreateErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantFields []string
	}{
		{name: "malformed json", body: `{"date":`, wantStatus: http.StatusBadRequest},
		{name: "trailing data", body: `{"a":1} {"b":2}`, wantStatus: http.StatusBadRequest},
		{
			name:       "every field invalid",
			body:       `{"date":"2024-02-30","type":"gift","category":"  ","amount":"-1"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantFields: []string{"date", "type", "category", "amount"},
		},
		{
			name:       "too many decimals",
			body:       "date=2024-01-01&type=expense&category=Food&amount=1.234",
			wantStatus: http.StatusUnprocessableEntity,
			wantFields: []string{"amount"},
		},
		{
			name:       "description too long",
			body:       "date=2024-01-01&type=expense&category=Food&amount=1&description=" + strings.Repeat("x", 256),
			wantStatus: http.StatusUnprocessableEntity,
			wantFields: []string{"description"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "alice", http.MethodPost, "/transactions", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			body := decode[errorBody](t, rr)
			for _, f := range tt.wantFields {
				if body.Fields[f] == "" {
					t.Errorf("missing field error for %s: %+v", f, body.Fields)
				}
			}
		})
	}

	rr := env.do(t, "alice", http.MethodGet, "/transactions", "")
	if list := decode[listJSON](t, rr); len(list.Transactions) != 0 {
		t.Errorf("invalid creates must not persist, got %d rows", len(list.Transactions))
	}
}

func TestNonNumericIDIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/transactions/abc", "/transactions/0", "/transactions/-3"} {
		if rr := env.do(t, "alice", http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rr.Code)
		}
	}
}

func TestListSortAndEmpty(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "alice", http.MethodGet, "/transactions", "")
	if !strings.Contains(rr.Body.String(), `"transactions":[]`) {
		t.Errorf("empty list must encode as []: %s", rr.Body.String())
	}

	for _, body := range []string{
		`{"date":"2024-01-05","type":"income","category":"Salary","amount":"1000"}`,
		`{"date":"2024-01-01","type":"expense","category":"Rent","amount":"500"}`,
		`{"date":"2024-02-10","type":"expense","category":"Food","amount":"50"}`,
	} {
		if rr := env.do(t, "alice", http.MethodPost, "/transactions", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed = %d", rr.Code)
		}
	}

	tests := []struct {
		sort     string
		wantSort string
		first    string
	}{
		{sort: "", wantSort: "-date", first: "Food"},
		{sort: "amount", wantSort: "amount", first: "Food"},
		{sort: "-amount", wantSort: "-amount", first: "Salary"},
		{sort: "category", wantSort: "category", first: "Food"},
		{sort: "date;DROP TABLE", wantSort: "-date", first: "Food"},
	}
	for _, tt := range tests {
		rr := env.do(t, "alice", http.MethodGet, "/transactions?sort="+strings.ReplaceAll(tt.sort, " ", "%20"), "")
		list := decode[listJSON](t, rr)
		if string(list.CurrentSort) != tt.wantSort {
			t.Errorf("sort %q: current_sort = %q, want %q", tt.sort, list.CurrentSort, tt.wantSort)
		}
		if len(list.Transactions) != 3 || list.Transactions[0].Category != tt.first {
			t.Errorf("sort %q: first = %+v", tt.sort, list.Transactions)
		}
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "alice", http.MethodGet, "/dashboard", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard = %d", rr.Code)
	}
	for _, want := range []string{
		`"income_total":"0.00"`, `"expense_total":"0.00"`, `"net":"0.00"`,
		`"month_options":[]`, `"income_by_category":[]`, `"expense_by_category":[]`,
	} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("zero-state body missing %s: %s", want, rr.Body.String())
		}
	}

	for _, body := range []string{
		`{"date":"2024-01-05","type":"income","category":"Salary","amount":"1000.00"}`,
		`{"date":"2024-01-01","type":"expense","category":"Rent","amount":"500.00"}`,
		`{"date":"2024-02-10","type":"expense","category":"Food","amount":"50.00"}`,
	} {
		env.do(t, "alice", http.MethodPost, "/transactions", body)
	}

	rr = env.do(t, "alice", http.MethodGet, "/dashboard?month=2024-01", "")
	s := decode[summaryJSON](t, rr)
	if s.Month != "2024-01" || s.IncomeTotal != "1000.00" || s.ExpenseTotal != "500.00" || s.Net != "500.00" {
		t.Errorf("january summary = %+v", s)
	}
	if len(s.ExpenseByCategory) != 1 || s.ExpenseByCategory[0] != (categoryTotalJSON{Category: "Rent", Total: "500.00"}) {
		t.Errorf("expense breakdown = %+v", s.ExpenseByCategory)
	}
	if strings.Join(s.MonthOptions, ",") != "2024-02,2024-01" {
		t.Errorf("month options = %v", s.MonthOptions)
	}

	rr = env.do(t, "alice", http.MethodGet, "/dashboard?month=garbage", "")
	s = decode[summaryJSON](t, rr)
	if s.Month != "" || s.Net != "450.00" {
		t.Errorf("unfiltered summary = %+v", s)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, "alice", http.MethodPatch, "/transactions/1", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("PATCH = %d, want 405", rr.Code)
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 2}))
	body := `{"date":"2024-01-05","type":"income","category":"Salary","amount":"1"}`

	for i := 0; i < 2; i++ {
		if rr := env.do(t, "alice", http.MethodPost, "/transactions", body); rr.Code != http.StatusCreated {
			t.Fatalf("create %d = %d", i, rr.Code)
		}
	}
	rr := env.do(t, "alice", http.MethodPost, "/transactions", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third create = %d, want 429", rr.Code)
	}
	if rr := env.do(t, "alice", http.MethodGet, "/transactions", ""); rr.Code != http.StatusOK {
		t.Errorf("reads are not limited, got %d", rr.Code)
	}

	rr = env.do(t, "", http.MethodGet, "/metrics", "")
	if !strings.Contains(rr.Body.String(), "fintrack_rate_limit_hits_total 1") {
		t.Errorf("metrics = %s", rr.Body.String())
	}
}

func TestSecurityAndTraceHeaders(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, "", http.MethodGet, "/healthz", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q", rr.Header().Get("X-Request-ID"))
	}
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type failingTxs struct{ TransactionService }

func (failingTxs) List(context.Context, string, string) ([]core.Transaction, core.SortKey, error) {
	return nil, "", errors.New("connection reset by peer")
}

func TestInfrastructureErrorsAreGeneric(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.txs = failingTxs{}

	rr := env.do(t, "alice", http.MethodGet, "/transactions", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection reset") {
		t.Errorf("internal detail leaked: %s", rr.Body.String())
	}
}
