// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// LedgerStore defines all data operations for accounts and transactions.
// Implemented by the Supabase adapter; isDemo selects the demo table set.
type LedgerStore interface {
	// Accounts
	ListActiveAccounts(ctx context.Context, userID string, isDemo bool) ([]domain.Account, error)
	GetAccount(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error)
	InsertAccount(ctx context.Context, row map[string]any, isDemo bool) (*domain.Account, error)
	UpdateAccount(ctx context.Context, accountID string, updates map[string]any, isDemo bool) (*domain.Account, error)
	DeleteAccount(ctx context.Context, accountID string, isDemo bool) error
	CountAccountTransactions(ctx context.Context, accountID string, isDemo bool) (int, error)

	// Transactions
	ListCompletedTransactions(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error)
	InsertTransaction(ctx context.Context, row map[string]any, isDemo bool) (*domain.Transaction, error)

	// Server-side aggregates
	GetAccountSummaryRPC(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error)
	CalculateBalanceRPC(ctx context.Context, accountID string, asOf time.Time, isDemo bool) (float64, error)
}

// BillStore defines all data operations for bills and bill payments.
type BillStore interface {
	ListBills(ctx context.Context, userID string, isDemo bool) ([]domain.Bill, error)
	GetBill(ctx context.Context, userID, billID string, isDemo bool) (*domain.Bill, error)
	InsertBill(ctx context.Context, row map[string]any, isDemo bool) (*domain.Bill, error)
	UpdateBill(ctx context.Context, billID string, updates map[string]any, isDemo bool) (*domain.Bill, error)
	DeleteBill(ctx context.Context, billID string, isDemo bool) error

	InsertBillPayment(ctx context.Context, row map[string]any, isDemo bool) (*domain.BillPayment, error)
	ListBillPayments(ctx context.Context, userID, billID string, page, pageSize int, isDemo bool) ([]domain.BillPayment, error)
}

// AuthStore defines all data operations for the authentication system.
type AuthStore interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	CreateUser(ctx context.Context, req *domain.RegisterRequest, passwordHash string) (*domain.User, error)
	GetCredentials(ctx context.Context, userID string) (*domain.AuthCredential, error)

	StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.AuthRefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}
