// Package service contains the business logic: account aggregation,
// balance reconciliation, bill lifecycle and status derivation.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/infra/observability"
	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service")

// FinanceService implements the accounts, balance and bills use cases on
// top of the ledger and bill stores.
type FinanceService struct {
	ledger         port.LedgerStore
	bills          port.BillStore
	summaryCache   port.Cache[*domain.AccountSummary]
	metrics        *observability.Metrics
	logger         *zap.Logger
	maxConcurrency int

	// now is swappable in tests; bill status and balance history are
	// functions of the current day.
	now func() time.Time
}

func NewFinanceService(
	ledger port.LedgerStore,
	bills port.BillStore,
	summaryCache port.Cache[*domain.AccountSummary],
	metrics *observability.Metrics,
	logger *zap.Logger,
	maxConcurrency int,
) *FinanceService {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &FinanceService{
		ledger:         ledger,
		bills:          bills,
		summaryCache:   summaryCache,
		metrics:        metrics,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// HealthCheck probes the backing store with a cheap read.
func (s *FinanceService) HealthCheck(ctx context.Context) error {
	_, err := s.ledger.ListActiveAccounts(ctx, "health-check", false)
	return err
}

// FetchAccountsWithBalances builds the accounts overview: every active
// account enriched with its reconciled summary, plus portfolio totals.
// Summaries are fetched concurrently, bounded by maxConcurrency. A
// failed summary degrades that one account to its initial balance with
// zeroed activity instead of failing the whole overview.
func (s *FinanceService) FetchAccountsWithBalances(ctx context.Context, userID string, isDemo bool) (*domain.AccountsOverview, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.FetchAccountsWithBalances")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("accounts_overview", time.Since(start)) }()

	accounts, err := s.ledger.ListActiveAccounts(ctx, userID, isDemo)
	if err != nil {
		return nil, err
	}

	enriched := make([]domain.AccountWithBalance, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i, acct := range accounts {
		i, acct := i, acct
		g.Go(func() error {
			summary, err := s.GetAccountSummary(gctx, userID, acct.ID, isDemo)
			if err != nil {
				s.logger.Warn("accounts overview: summary degraded",
					zap.String("account_id", acct.ID),
					zap.Error(err),
				)
				enriched[i] = domain.AccountWithBalance{
					Account:        acct,
					CurrentBalance: acct.InitialBalance,
				}
				return nil
			}
			enriched[i] = domain.AccountWithBalance{
				Account:             acct,
				CurrentBalance:      summary.CurrentBalance,
				TotalIncome:         summary.TotalIncome,
				TotalExpenses:       summary.TotalExpenses,
				TransactionCount:    summary.TransactionCount,
				LastTransactionDate: summary.LastTransactionDate,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var totals domain.AccountTotals
	for _, a := range enriched {
		totals.TotalBalance += a.CurrentBalance
		totals.TotalIncome += a.TotalIncome
		totals.TotalExpenses += a.TotalExpenses
		totals.ActiveCount++
	}
	return &domain.AccountsOverview{Accounts: enriched, Totals: totals}, nil
}

// GetAccountWithBalance returns one account with its reconciled summary.
func (s *FinanceService) GetAccountWithBalance(ctx context.Context, userID, accountID string, isDemo bool) (*domain.AccountWithBalance, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.GetAccountWithBalance")
	defer span.End()

	acct, err := s.ledger.GetAccount(ctx, userID, accountID, isDemo)
	if err != nil {
		return nil, err
	}
	summary, err := s.GetAccountSummary(ctx, userID, accountID, isDemo)
	if err != nil {
		return nil, err
	}
	return &domain.AccountWithBalance{
		Account:             *acct,
		CurrentBalance:      summary.CurrentBalance,
		TotalIncome:         summary.TotalIncome,
		TotalExpenses:       summary.TotalExpenses,
		TransactionCount:    summary.TransactionCount,
		LastTransactionDate: summary.LastTransactionDate,
	}, nil
}

// CreateAccount validates and stores a new account. A nonzero initial
// balance also seeds a completed opening_balance ledger entry so the
// transaction list shows where the money came from; the entry itself is
// a no-op for balance replay, which anchors on initial_balance.
func (s *FinanceService) CreateAccount(ctx context.Context, userID string, req *domain.AccountCreateRequest, isDemo bool) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.CreateAccount")
	defer span.End()

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if !domain.ValidAccountType(req.AccountType) {
		return nil, &domain.ErrValidation{Field: "account_type", Message: fmt.Sprintf("unknown account type '%s'", req.AccountType)}
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	balanceDate := req.InitialBalanceDate
	if balanceDate == "" {
		balanceDate = s.now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", balanceDate); err != nil {
		return nil, &domain.ErrValidation{Field: "initial_balance_date", Message: "expected YYYY-MM-DD"}
	}

	row := map[string]any{
		"id":                   uuid.NewString(),
		"user_id":              userID,
		"name":                 req.Name,
		"account_type":         req.AccountType,
		"institution":          req.Institution,
		"initial_balance":      req.InitialBalance,
		"initial_balance_date": balanceDate,
		"currency":             currency,
		"is_active":            true,
	}
	acct, err := s.ledger.InsertAccount(ctx, row, isDemo)
	if err != nil {
		return nil, err
	}

	if req.InitialBalance != 0 {
		txRow := map[string]any{
			"id":                     uuid.NewString(),
			"user_id":                userID,
			"description":            "Opening balance",
			"amount":                 req.InitialBalance,
			"type":                   domain.TxTypeOpeningBalance,
			"status":                 domain.TxStatusCompleted,
			"destination_account_id": acct.ID,
			"occurred_at":            balanceDate,
		}
		if _, err := s.ledger.InsertTransaction(ctx, txRow, isDemo); err != nil {
			// The account exists and replay does not depend on this
			// entry, so log and keep going.
			s.logger.Warn("create account: opening balance entry failed",
				zap.String("account_id", acct.ID),
				zap.Error(err),
			)
		}
	}
	return acct, nil
}

// UpdateAccount applies the non-nil fields of req. Initial balance is
// immutable after creation. Last write wins on concurrent updates.
func (s *FinanceService) UpdateAccount(ctx context.Context, userID, accountID string, req *domain.AccountUpdateRequest, isDemo bool) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.UpdateAccount")
	defer span.End()

	if _, err := s.ledger.GetAccount(ctx, userID, accountID, isDemo); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, &domain.ErrValidation{Field: "name", Message: "name cannot be empty"}
		}
		updates["name"] = *req.Name
	}
	if req.AccountType != nil {
		if !domain.ValidAccountType(*req.AccountType) {
			return nil, &domain.ErrValidation{Field: "account_type", Message: fmt.Sprintf("unknown account type '%s'", *req.AccountType)}
		}
		updates["account_type"] = *req.AccountType
	}
	if req.Institution != nil {
		updates["institution"] = *req.Institution
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}
	updates["updated_at"] = s.now().UTC().Format(time.RFC3339)

	acct, err := s.ledger.UpdateAccount(ctx, accountID, updates, isDemo)
	if err != nil {
		return nil, err
	}
	s.summaryCache.Delete(summaryCacheKey(accountID, isDemo))
	return acct, nil
}

// DeleteAccount removes an account. Accounts with ledger history are
// soft-deleted (deactivated) so their transactions keep a valid
// reference; accounts with no history are removed outright. Returns
// true when the delete was a soft delete.
func (s *FinanceService) DeleteAccount(ctx context.Context, userID, accountID string, isDemo bool) (bool, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.DeleteAccount")
	defer span.End()

	if _, err := s.ledger.GetAccount(ctx, userID, accountID, isDemo); err != nil {
		return false, err
	}

	n, err := s.ledger.CountAccountTransactions(ctx, accountID, isDemo)
	if err != nil {
		return false, err
	}
	defer s.summaryCache.Delete(summaryCacheKey(accountID, isDemo))

	if n > 0 {
		updates := map[string]any{
			"is_active":  false,
			"updated_at": s.now().UTC().Format(time.RFC3339),
		}
		if _, err := s.ledger.UpdateAccount(ctx, accountID, updates, isDemo); err != nil {
			return false, err
		}
		s.logger.Info("account soft-deleted",
			zap.String("account_id", accountID),
			zap.Int("transaction_count", n),
		)
		return true, nil
	}

	if err := s.ledger.DeleteAccount(ctx, accountID, isDemo); err != nil {
		return false, err
	}
	s.logger.Info("account deleted", zap.String("account_id", accountID))
	return false, nil
}
