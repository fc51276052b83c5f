package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/infra/resilience"

	"go.uber.org/zap"
)

// newTestClient points a Client at an httptest server with retries kept
// short so failure tests finish quickly.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	cb := resilience.NewCircuitBreaker("supabase-test")
	client := NewClient(srv.Client(), srv.URL, "anon-key", "service-key", cb, cfg, zap.NewNop())
	return client, srv
}

func TestReadSendsAuthHeadersAndQuery(t *testing.T) {
	var gotReq *http.Request
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.Write([]byte(`[{"id":"a1","user_id":"u1","name":"Checking"}]`))
	}))
	store := NewLedgerStore(client)

	accounts, err := store.ListActiveAccounts(context.Background(), "u1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != "a1" {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}

	if gotReq.URL.Path != "/rest/v1/accounts" {
		t.Errorf("path = %s", gotReq.URL.Path)
	}
	if q := gotReq.URL.RawQuery; q != "user_id=eq.u1&is_active=eq.true&order=created_at.asc" {
		t.Errorf("query = %s", q)
	}
	if gotReq.Header.Get("apikey") != "anon-key" {
		t.Error("apikey header missing")
	}
	if gotReq.Header.Get("Authorization") != "Bearer service-key" {
		t.Errorf("authorization = %s", gotReq.Header.Get("Authorization"))
	}
	if gotReq.Header.Get("Prefer") != "return=representation" {
		t.Errorf("prefer = %s", gotReq.Header.Get("Prefer"))
	}
}

func TestListCompletedTransactionsFiltersByStatus(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	store := NewLedgerStore(client)

	if _, err := store.ListCompletedTransactions(context.Background(), "a1", nil, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Pending and failed entries must never reach the balance replay.
	if want := "or=(source_account_id.eq.a1,destination_account_id.eq.a1)&status=eq.completed&order=occurred_at.asc"; gotQuery != want {
		t.Errorf("query = %s, want %s", gotQuery, want)
	}

	asOf := time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)
	if _, err := store.ListCompletedTransactions(context.Background(), "a1", &asOf, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "occurred_at=lte.2025-08-10T00:00:00Z") {
		t.Errorf("as-of query = %s, missing occurred_at bound", gotQuery)
	}
}

func TestDemoModeSelectsPrefixedTables(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[]`))
	}))
	store := NewLedgerStore(client)

	if _, err := store.ListCompletedTransactions(context.Background(), "a1", nil, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/rest/v1/demo_transactions" {
		t.Errorf("path = %s, want demo_transactions", gotPath)
	}
}

func TestSummaryRPCAcceptsBothResponseShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"row array", `[{"current_balance":120.5,"total_income":200,"total_expenses":79.5,"transaction_count":3,"last_transaction_date":"2025-08-02T00:00:00Z"}]`},
		{"single object", `{"current_balance":120.5,"total_income":200,"total_expenses":79.5,"transaction_count":3,"last_transaction_date":"2025-08-02T00:00:00Z"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/rest/v1/rpc/get_account_summary" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.Write([]byte(tc.body))
			}))
			store := NewLedgerStore(client)

			summary, err := store.GetAccountSummaryRPC(context.Background(), "a1", false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if summary.CurrentBalance != 120.5 || summary.TransactionCount != 3 {
				t.Errorf("unexpected summary: %+v", summary)
			}
			if summary.LastTransactionDate != "2025-08-02T00:00:00Z" {
				t.Errorf("last date = %s", summary.LastTransactionDate)
			}
		})
	}
}

func TestSummaryRPCNullIsNotFound(t *testing.T) {
	for _, body := range []string{`null`, `[]`, ``} {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		store := NewLedgerStore(client)

		_, err := store.GetAccountSummaryRPC(context.Background(), "a1", false)
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			t.Errorf("body %q: want ErrNotFound, got %v", body, err)
		}
	}
}

func TestMissingRPCFunctionIsNotFoundAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"function public.get_account_summary does not exist"}`))
	}))
	store := NewLedgerStore(client)

	_, err := store.GetAccountSummaryRPC(context.Background(), "a1", false)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("requests = %d, want 1: 4xx must not be retried", n)
	}
}

func TestPermissionFailuresMapToForbidden(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"message":"permission denied"}`))
		}))
		store := NewLedgerStore(client)

		_, err := store.GetAccountSummaryRPC(context.Background(), "a1", false)
		var forbidden *domain.ErrForbidden
		if !errors.As(err, &forbidden) {
			t.Errorf("status %d: want ErrForbidden, got %v", status, err)
		}
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	store := NewLedgerStore(client)

	if _, err := store.ListActiveAccounts(context.Background(), "u1", false); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestCalculateBalanceRPCDecodesScalarAndNull(t *testing.T) {
	cases := []struct {
		body string
		want float64
	}{
		{`125.75`, 125.75},
		{`null`, 0},
	}
	for _, tc := range cases {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/rest/v1/rpc/calculate_account_balance" {
				t.Errorf("path = %s", r.URL.Path)
			}
			w.Write([]byte(tc.body))
		}))
		store := NewLedgerStore(client)

		got, err := store.CalculateBalanceRPC(context.Background(), "a1", time.Now(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.want {
			t.Errorf("body %q: balance = %v, want %v", tc.body, got, tc.want)
		}
	}
}

func TestCountParsesContentRange(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Prefer") != "count=exact" {
			t.Errorf("prefer = %s", r.Header.Get("Prefer"))
		}
		w.Header().Set("Content-Range", "0-0/42")
		w.WriteHeader(http.StatusPartialContent)
	}))
	store := NewLedgerStore(client)

	n, err := store.CountAccountTransactions(context.Background(), "a1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 42 {
		t.Errorf("count = %d, want 42", n)
	}
}

func TestGetAccountEmptyResultIsNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	store := NewLedgerStore(client)

	_, err := store.GetAccount(context.Background(), "u1", "nope", false)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestParseWhenHandlesBothDateForms(t *testing.T) {
	ts := parseWhen("2025-08-02T10:30:00Z")
	if ts.Hour() != 10 {
		t.Errorf("timestamp hour = %d", ts.Hour())
	}
	d := parseWhen("2025-08-02")
	if d.Year() != 2025 || d.Month() != 8 || d.Day() != 2 {
		t.Errorf("bare date parsed as %v", d)
	}
	if !parseWhen("").IsZero() {
		t.Error("empty string must parse to zero time")
	}
}
