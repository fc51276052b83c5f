package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/infra/observability"

	"go.uber.org/zap"
)

// Function-field mocks for the store ports. Unset methods fail loudly so
// a test never silently exercises a path it did not stub.

var errUnexpectedCall = errors.New("unexpected store call")

type mockLedgerStore struct {
	listActiveAccounts       func(ctx context.Context, userID string, isDemo bool) ([]domain.Account, error)
	getAccount               func(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error)
	insertAccount            func(ctx context.Context, row map[string]any, isDemo bool) (*domain.Account, error)
	updateAccount            func(ctx context.Context, accountID string, updates map[string]any, isDemo bool) (*domain.Account, error)
	deleteAccount            func(ctx context.Context, accountID string, isDemo bool) error
	countAccountTransactions func(ctx context.Context, accountID string, isDemo bool) (int, error)
	listCompleted            func(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error)
	insertTransaction        func(ctx context.Context, row map[string]any, isDemo bool) (*domain.Transaction, error)
	getAccountSummaryRPC     func(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error)
	calculateBalanceRPC      func(ctx context.Context, accountID string, asOf time.Time, isDemo bool) (float64, error)
}

func (m *mockLedgerStore) ListActiveAccounts(ctx context.Context, userID string, isDemo bool) ([]domain.Account, error) {
	if m.listActiveAccounts == nil {
		return nil, errUnexpectedCall
	}
	return m.listActiveAccounts(ctx, userID, isDemo)
}

func (m *mockLedgerStore) GetAccount(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error) {
	if m.getAccount == nil {
		return nil, errUnexpectedCall
	}
	return m.getAccount(ctx, userID, accountID, isDemo)
}

func (m *mockLedgerStore) InsertAccount(ctx context.Context, row map[string]any, isDemo bool) (*domain.Account, error) {
	if m.insertAccount == nil {
		return nil, errUnexpectedCall
	}
	return m.insertAccount(ctx, row, isDemo)
}

func (m *mockLedgerStore) UpdateAccount(ctx context.Context, accountID string, updates map[string]any, isDemo bool) (*domain.Account, error) {
	if m.updateAccount == nil {
		return nil, errUnexpectedCall
	}
	return m.updateAccount(ctx, accountID, updates, isDemo)
}

func (m *mockLedgerStore) DeleteAccount(ctx context.Context, accountID string, isDemo bool) error {
	if m.deleteAccount == nil {
		return errUnexpectedCall
	}
	return m.deleteAccount(ctx, accountID, isDemo)
}

func (m *mockLedgerStore) CountAccountTransactions(ctx context.Context, accountID string, isDemo bool) (int, error) {
	if m.countAccountTransactions == nil {
		return 0, errUnexpectedCall
	}
	return m.countAccountTransactions(ctx, accountID, isDemo)
}

func (m *mockLedgerStore) ListCompletedTransactions(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error) {
	if m.listCompleted == nil {
		return nil, errUnexpectedCall
	}
	return m.listCompleted(ctx, accountID, asOf, isDemo)
}

func (m *mockLedgerStore) InsertTransaction(ctx context.Context, row map[string]any, isDemo bool) (*domain.Transaction, error) {
	if m.insertTransaction == nil {
		return nil, errUnexpectedCall
	}
	return m.insertTransaction(ctx, row, isDemo)
}

func (m *mockLedgerStore) GetAccountSummaryRPC(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error) {
	if m.getAccountSummaryRPC == nil {
		return nil, errUnexpectedCall
	}
	return m.getAccountSummaryRPC(ctx, accountID, isDemo)
}

func (m *mockLedgerStore) CalculateBalanceRPC(ctx context.Context, accountID string, asOf time.Time, isDemo bool) (float64, error) {
	if m.calculateBalanceRPC == nil {
		return 0, errUnexpectedCall
	}
	return m.calculateBalanceRPC(ctx, accountID, asOf, isDemo)
}

type mockBillStore struct {
	listBills         func(ctx context.Context, userID string, isDemo bool) ([]domain.Bill, error)
	getBill           func(ctx context.Context, userID, billID string, isDemo bool) (*domain.Bill, error)
	insertBill        func(ctx context.Context, row map[string]any, isDemo bool) (*domain.Bill, error)
	updateBill        func(ctx context.Context, billID string, updates map[string]any, isDemo bool) (*domain.Bill, error)
	deleteBill        func(ctx context.Context, billID string, isDemo bool) error
	insertBillPayment func(ctx context.Context, row map[string]any, isDemo bool) (*domain.BillPayment, error)
	listBillPayments  func(ctx context.Context, userID, billID string, page, pageSize int, isDemo bool) ([]domain.BillPayment, error)
}

func (m *mockBillStore) ListBills(ctx context.Context, userID string, isDemo bool) ([]domain.Bill, error) {
	if m.listBills == nil {
		return nil, errUnexpectedCall
	}
	return m.listBills(ctx, userID, isDemo)
}

func (m *mockBillStore) GetBill(ctx context.Context, userID, billID string, isDemo bool) (*domain.Bill, error) {
	if m.getBill == nil {
		return nil, errUnexpectedCall
	}
	return m.getBill(ctx, userID, billID, isDemo)
}

func (m *mockBillStore) InsertBill(ctx context.Context, row map[string]any, isDemo bool) (*domain.Bill, error) {
	if m.insertBill == nil {
		return nil, errUnexpectedCall
	}
	return m.insertBill(ctx, row, isDemo)
}

func (m *mockBillStore) UpdateBill(ctx context.Context, billID string, updates map[string]any, isDemo bool) (*domain.Bill, error) {
	if m.updateBill == nil {
		return nil, errUnexpectedCall
	}
	return m.updateBill(ctx, billID, updates, isDemo)
}

func (m *mockBillStore) DeleteBill(ctx context.Context, billID string, isDemo bool) error {
	if m.deleteBill == nil {
		return errUnexpectedCall
	}
	return m.deleteBill(ctx, billID, isDemo)
}

func (m *mockBillStore) InsertBillPayment(ctx context.Context, row map[string]any, isDemo bool) (*domain.BillPayment, error) {
	if m.insertBillPayment == nil {
		return nil, errUnexpectedCall
	}
	return m.insertBillPayment(ctx, row, isDemo)
}

func (m *mockBillStore) ListBillPayments(ctx context.Context, userID, billID string, page, pageSize int, isDemo bool) ([]domain.BillPayment, error) {
	if m.listBillPayments == nil {
		return nil, errUnexpectedCall
	}
	return m.listBillPayments(ctx, userID, billID, page, pageSize, isDemo)
}

// mapCache is a TTL-less cache for tests.
type mapCache struct {
	mu sync.Mutex
	m  map[string]*domain.AccountSummary
}

func newMapCache() *mapCache {
	return &mapCache{m: make(map[string]*domain.AccountSummary)}
}

func (c *mapCache) Get(key string) (*domain.AccountSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(key string, value *domain.AccountSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

func (c *mapCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

func newTestService(ledger *mockLedgerStore, bills *mockBillStore) *FinanceService {
	return NewFinanceService(ledger, bills, newMapCache(), observability.NewMetrics(), zap.NewNop(), 4)
}
