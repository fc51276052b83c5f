package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
)

const (
	testUser    = "user-1"
	testAccount = "acct-1"
)

func testClock() time.Time {
	return time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
}

func acctFixture(initial float64) *domain.Account {
	return &domain.Account{
		ID:             testAccount,
		UserID:         testUser,
		Name:           "Checking",
		AccountType:    domain.AccountTypeChecking,
		InitialBalance: initial,
		IsActive:       true,
	}
}

func tx(txType, source, dest string, amount float64, occurred string) domain.Transaction {
	return domain.Transaction{
		ID:                   "tx-" + occurred,
		UserID:               testUser,
		Amount:               amount,
		Type:                 txType,
		Status:               domain.TxStatusCompleted,
		SourceAccountID:      source,
		DestinationAccountID: dest,
		OccurredAt:           day(occurred),
	}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestGetAccountSummaryUsesRPCFirst(t *testing.T) {
	replayCalled := false
	ledger := &mockLedgerStore{
		getAccountSummaryRPC: func(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error) {
			return &domain.AccountSummary{AccountID: accountID, CurrentBalance: 420.50, TransactionCount: 3}, nil
		},
		listCompleted: func(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error) {
			replayCalled = true
			return nil, nil
		},
	}
	svc := newTestService(ledger, &mockBillStore{})

	summary, err := svc.GetAccountSummary(context.Background(), testUser, testAccount, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.CurrentBalance != 420.50 {
		t.Errorf("balance = %v, want 420.50", summary.CurrentBalance)
	}
	if replayCalled {
		t.Error("replay must not run when the RPC succeeds")
	}
}

func TestGetAccountSummaryFallsBackToReplay(t *testing.T) {
	ledger := &mockLedgerStore{
		getAccountSummaryRPC: func(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error) {
			return nil, &domain.ErrNotFound{Resource: "account summary", ID: accountID}
		},
		getAccount: func(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error) {
			return acctFixture(100), nil
		},
		listCompleted: func(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error) {
			return []domain.Transaction{
				tx(domain.TxTypeIncome, "", testAccount, 50, "2025-08-01"),
				tx(domain.TxTypeExpense, testAccount, "", 30, "2025-08-02"),
			}, nil
		},
	}
	svc := newTestService(ledger, &mockBillStore{})

	summary, err := svc.GetAccountSummary(context.Background(), testUser, testAccount, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 100 + 50 - 30
	if summary.CurrentBalance != 120 {
		t.Errorf("balance = %v, want 120", summary.CurrentBalance)
	}
	if summary.TotalIncome != 50 {
		t.Errorf("income = %v, want 50", summary.TotalIncome)
	}
	if summary.TotalExpenses != 30 {
		t.Errorf("expenses = %v, want 30", summary.TotalExpenses)
	}
	if summary.TransactionCount != 2 {
		t.Errorf("count = %d, want 2", summary.TransactionCount)
	}
	if summary.LastTransactionDate != "2025-08-02T00:00:00Z" {
		t.Errorf("last date = %q", summary.LastTransactionDate)
	}
}

func TestReplayIgnoresNonQualifyingRoles(t *testing.T) {
	ledger := &mockLedgerStore{
		getAccountSummaryRPC: func(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error) {
			return nil, errors.New("rpc down")
		},
		getAccount: func(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error) {
			return acctFixture(1000), nil
		},
		listCompleted: func(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error) {
			return []domain.Transaction{
				// income listing the account as source: no-op
				tx(domain.TxTypeIncome, testAccount, "", 500, "2025-08-01"),
				// expense listing the account as destination: no-op
				tx(domain.TxTypeExpense, "", testAccount, 500, "2025-08-02"),
				// opening balance entry: no-op
				tx(domain.TxTypeOpeningBalance, "", testAccount, 1000, "2025-08-03"),
				// transfer out then in
				tx(domain.TxTypeTransfer, testAccount, "other", 200, "2025-08-04"),
				tx(domain.TxTypeTransfer, "other", testAccount, 75, "2025-08-05"),
			}, nil
		},
	}
	svc := newTestService(ledger, &mockBillStore{})

	summary, err := svc.GetAccountSummary(context.Background(), testUser, testAccount, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1000 - 200 + 75
	if summary.CurrentBalance != 875 {
		t.Errorf("balance = %v, want 875", summary.CurrentBalance)
	}
	if summary.TransactionCount != 2 {
		t.Errorf("count = %d, want 2 (only the transfers qualify)", summary.TransactionCount)
	}
}

func TestReplayUsesAbsoluteAmounts(t *testing.T) {
	ledger := &mockLedgerStore{
		getAccountSummaryRPC: func(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error) {
			return nil, errors.New("rpc down")
		},
		getAccount: func(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error) {
			return acctFixture(0), nil
		},
		listCompleted: func(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error) {
			// A legacy signed row must behave the same as its unsigned twin.
			return []domain.Transaction{
				tx(domain.TxTypeExpense, testAccount, "", -40, "2025-08-01"),
			}, nil
		},
	}
	svc := newTestService(ledger, &mockBillStore{})

	summary, err := svc.GetAccountSummary(context.Background(), testUser, testAccount, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.CurrentBalance != -40 {
		t.Errorf("balance = %v, want -40", summary.CurrentBalance)
	}
	if summary.TotalExpenses != 40 {
		t.Errorf("expenses = %v, want 40", summary.TotalExpenses)
	}
}

func TestReplayDecimalPrecision(t *testing.T) {
	txs := make([]domain.Transaction, 0, 100)
	for i := 0; i < 100; i++ {
		txs = append(txs, tx(domain.TxTypeExpense, testAccount, "", 0.1, "2025-08-01"))
	}
	ledger := &mockLedgerStore{
		getAccountSummaryRPC: func(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error) {
			return nil, errors.New("rpc down")
		},
		getAccount: func(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error) {
			return acctFixture(10), nil
		},
		listCompleted: func(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error) {
			return txs, nil
		},
	}
	svc := newTestService(ledger, &mockBillStore{})

	summary, err := svc.GetAccountSummary(context.Background(), testUser, testAccount, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10 - 100*0.1 must be exactly zero, not a float residue.
	if summary.CurrentBalance != 0 {
		t.Errorf("balance = %v, want exactly 0", summary.CurrentBalance)
	}
}

func TestGetAccountSummarySurfacesPermissionErrors(t *testing.T) {
	replayCalled := false
	ledger := &mockLedgerStore{
		getAccountSummaryRPC: func(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error) {
			return nil, &domain.ErrForbidden{Action: "account summary"}
		},
		listCompleted: func(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error) {
			replayCalled = true
			return nil, nil
		},
	}
	svc := newTestService(ledger, &mockBillStore{})

	_, err := svc.GetAccountSummary(context.Background(), testUser, testAccount, false)
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if replayCalled {
		t.Error("permission errors must not trigger the replay")
	}
}

func TestGetAccountSummaryDegradesToZeroWhenBothPathsFail(t *testing.T) {
	ledger := &mockLedgerStore{
		getAccountSummaryRPC: func(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error) {
			return nil, errors.New("rpc down")
		},
		getAccount: func(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error) {
			return nil, errors.New("store down")
		},
	}
	svc := newTestService(ledger, &mockBillStore{})

	summary, err := svc.GetAccountSummary(context.Background(), testUser, testAccount, false)
	if err != nil {
		t.Fatalf("total failure must not error, got %v", err)
	}
	if summary.CurrentBalance != 0 || summary.TransactionCount != 0 {
		t.Errorf("degraded summary must be all-zero, got %+v", summary)
	}

	// The degraded zero must not be cached as a real answer.
	if _, ok := svc.summaryCache.Get(summaryCacheKey(testAccount, false)); ok {
		t.Error("degraded summary must not be cached")
	}
}

func TestGetAccountSummaryCaching(t *testing.T) {
	calls := 0
	ledger := &mockLedgerStore{
		getAccountSummaryRPC: func(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error) {
			calls++
			return &domain.AccountSummary{AccountID: accountID, CurrentBalance: 10}, nil
		},
	}
	svc := newTestService(ledger, &mockBillStore{})

	for i := 0; i < 3; i++ {
		if _, err := svc.GetAccountSummary(context.Background(), testUser, testAccount, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("RPC called %d times, want 1 (cached)", calls)
	}
}

func TestGetAccountBalanceAsOfFiltersReplay(t *testing.T) {
	var gotAsOf *time.Time
	ledger := &mockLedgerStore{
		calculateBalanceRPC: func(ctx context.Context, accountID string, asOf time.Time, isDemo bool) (float64, error) {
			return 0, errors.New("rpc down")
		},
		getAccount: func(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error) {
			return acctFixture(100), nil
		},
		listCompleted: func(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error) {
			gotAsOf = asOf
			return []domain.Transaction{
				tx(domain.TxTypeIncome, "", testAccount, 25, "2025-07-01"),
			}, nil
		},
	}
	svc := newTestService(ledger, &mockBillStore{})

	asOf := day("2025-07-31")
	balance, err := svc.GetAccountBalance(context.Background(), testUser, testAccount, &asOf, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 125 {
		t.Errorf("balance = %v, want 125", balance)
	}
	if gotAsOf == nil || !gotAsOf.Equal(asOf) {
		t.Errorf("replay must pass the as-of bound through; got %v", gotAsOf)
	}
}

func TestCalculateAccountBalanceManualBypassesRPC(t *testing.T) {
	ledger := &mockLedgerStore{
		getAccount: func(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error) {
			return acctFixture(100), nil
		},
		listCompleted: func(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error) {
			return []domain.Transaction{
				tx(domain.TxTypeExpense, testAccount, "", 15, "2025-08-01"),
			}, nil
		},
	}
	svc := newTestService(ledger, &mockBillStore{})

	// No RPC mock is set; the manual path must never reach for one.
	balance, err := svc.CalculateAccountBalanceManual(context.Background(), testUser, testAccount, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 85 {
		t.Errorf("balance = %v, want 85", balance)
	}
}

func TestGetAccountBalanceHistoryMonthBoundaries(t *testing.T) {
	ledger := &mockLedgerStore{
		getAccount: func(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error) {
			return acctFixture(100), nil
		},
		listCompleted: func(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error) {
			return []domain.Transaction{
				tx(domain.TxTypeIncome, "", testAccount, 50, "2025-06-15"),
				tx(domain.TxTypeExpense, testAccount, "", 20, "2025-07-10"),
				tx(domain.TxTypeExpense, testAccount, "", 5, "2025-08-05"),
			}, nil
		},
	}
	svc := newTestService(ledger, &mockBillStore{})
	svc.now = testClock

	points, err := svc.GetAccountBalanceHistory(context.Background(), testUser, testAccount, 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}

	want := []struct {
		month   string
		balance float64
	}{
		{"2025-06", 150}, // 100 + 50
		{"2025-07", 130}, // - 20
		{"2025-08", 125}, // - 5
	}
	for i, w := range want {
		if points[i].Month != w.month {
			t.Errorf("point %d month = %s, want %s", i, points[i].Month, w.month)
		}
		if points[i].Balance != w.balance {
			t.Errorf("point %d balance = %v, want %v", i, points[i].Balance, w.balance)
		}
	}
	if points[0].Date != "2025-06-30" {
		t.Errorf("point 0 date = %s, want 2025-06-30", points[0].Date)
	}
}
