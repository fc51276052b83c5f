package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Balance reconciliation. The primary path is the server-side
// get_account_summary RPC; when the RPC is missing or failing, a
// client-side replay folds the completed ledger over initial_balance and
// must land on the same number. Permission errors surface instead of
// triggering a replay: the replay would fail the same row-level checks
// and a silent zero would look like an empty account.

func summaryCacheKey(accountID string, isDemo bool) string {
	if isDemo {
		return "demo:" + accountID
	}
	return "live:" + accountID
}

// GetAccountSummary returns the reconciled activity summary for one
// account. When both the RPC and the replay fail for non-permission
// reasons, it degrades to an all-zero summary rather than erroring, and
// records the failure.
func (s *FinanceService) GetAccountSummary(ctx context.Context, userID, accountID string, isDemo bool) (*domain.AccountSummary, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.GetAccountSummary")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("account_summary", time.Since(start)) }()

	key := summaryCacheKey(accountID, isDemo)
	if cached, ok := s.summaryCache.Get(key); ok {
		s.metrics.IncrCacheHit("summary")
		out := *cached
		return &out, nil
	}
	s.metrics.IncrCacheMiss("summary")

	summary, err := s.ledger.GetAccountSummaryRPC(ctx, accountID, isDemo)
	if err == nil {
		s.summaryCache.Set(key, summary)
		out := *summary
		return &out, nil
	}

	var forbidden *domain.ErrForbidden
	if errors.As(err, &forbidden) {
		return nil, err
	}
	s.noteExternalError(err)
	s.metrics.IncrBalanceFallback(fallbackReason(err))
	s.logger.Warn("balance: summary RPC failed, replaying ledger",
		zap.String("account_id", accountID),
		zap.Error(err),
	)

	summary, replayErr := s.replaySummary(ctx, userID, accountID, nil, isDemo)
	if replayErr == nil {
		s.summaryCache.Set(key, summary)
		out := *summary
		return &out, nil
	}
	if errors.As(replayErr, &forbidden) {
		return nil, replayErr
	}

	// Both paths down. Zero is a safer answer than an error for a
	// read-only screen, but it must never be silent or cached.
	s.metrics.IncrReconcileFailure()
	s.logger.Error("balance: reconciliation failed on both paths",
		zap.String("account_id", accountID),
		zap.NamedError("rpc_error", err),
		zap.NamedError("replay_error", replayErr),
	)
	return &domain.AccountSummary{AccountID: accountID}, nil
}

// GetAccountBalance returns the account balance, optionally as of a
// point in time. The as-of path uses the calculate_account_balance RPC
// first and the same bounded replay as a fallback.
func (s *FinanceService) GetAccountBalance(ctx context.Context, userID, accountID string, asOf *time.Time, isDemo bool) (float64, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.GetAccountBalance")
	defer span.End()

	if asOf == nil {
		summary, err := s.GetAccountSummary(ctx, userID, accountID, isDemo)
		if err != nil {
			return 0, err
		}
		return summary.CurrentBalance, nil
	}

	balance, err := s.ledger.CalculateBalanceRPC(ctx, accountID, *asOf, isDemo)
	if err == nil {
		return balance, nil
	}

	var forbidden *domain.ErrForbidden
	if errors.As(err, &forbidden) {
		return 0, err
	}
	s.noteExternalError(err)
	s.metrics.IncrBalanceFallback(fallbackReason(err))
	s.logger.Warn("balance: as-of RPC failed, replaying ledger",
		zap.String("account_id", accountID),
		zap.Time("as_of", *asOf),
		zap.Error(err),
	)

	summary, replayErr := s.replaySummary(ctx, userID, accountID, asOf, isDemo)
	if replayErr == nil {
		return summary.CurrentBalance, nil
	}
	if errors.As(replayErr, &forbidden) {
		return 0, replayErr
	}

	s.metrics.IncrReconcileFailure()
	s.logger.Error("balance: as-of reconciliation failed on both paths",
		zap.String("account_id", accountID),
		zap.NamedError("rpc_error", err),
		zap.NamedError("replay_error", replayErr),
	)
	return 0, nil
}

// CalculateAccountBalanceManual runs the client-side replay directly,
// bypassing the RPC and the cache. Useful for verifying a server-side
// number against the ledger.
func (s *FinanceService) CalculateAccountBalanceManual(ctx context.Context, userID, accountID string, asOf *time.Time, isDemo bool) (float64, error) {
	summary, err := s.replaySummary(ctx, userID, accountID, asOf, isDemo)
	if err != nil {
		return 0, err
	}
	return summary.CurrentBalance, nil
}

// replaySummary is the deterministic client-side fold. Starting from the
// account's initial balance, completed transactions are applied oldest
// first: source debits for expense, loan_repayment, debt and transfer;
// destination credits for income, loan, debt_collection and transfer.
// Everything else, opening_balance included, is a no-op. Amounts are
// stored unsigned; the fold takes absolute values and runs on decimals
// so repeated cents never drift.
func (s *FinanceService) replaySummary(ctx context.Context, userID, accountID string, asOf *time.Time, isDemo bool) (*domain.AccountSummary, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.replaySummary")
	defer span.End()

	acct, err := s.ledger.GetAccount(ctx, userID, accountID, isDemo)
	if err != nil {
		return nil, err
	}
	txs, err := s.ledger.ListCompletedTransactions(ctx, accountID, asOf, isDemo)
	if err != nil {
		return nil, err
	}
	s.metrics.AddTransactionsFolded(len(txs))

	balance := decimal.NewFromFloat(acct.InitialBalance)
	income := decimal.Zero
	expenses := decimal.Zero
	count := 0
	var last time.Time

	for _, tx := range txs {
		amt := decimal.NewFromFloat(tx.Amount).Abs()
		touched := false
		if tx.SourceAccountID == accountID && domain.DebitsAsSource(tx.Type) {
			balance = balance.Sub(amt)
			expenses = expenses.Add(amt)
			touched = true
		}
		if tx.DestinationAccountID == accountID && domain.CreditsAsDestination(tx.Type) {
			balance = balance.Add(amt)
			income = income.Add(amt)
			touched = true
		}
		if touched {
			count++
			if tx.OccurredAt.After(last) {
				last = tx.OccurredAt
			}
		}
	}

	summary := &domain.AccountSummary{
		AccountID:        accountID,
		CurrentBalance:   balance.InexactFloat64(),
		TotalIncome:      income.InexactFloat64(),
		TotalExpenses:    expenses.InexactFloat64(),
		TransactionCount: count,
	}
	if !last.IsZero() {
		summary.LastTransactionDate = last.UTC().Format(time.RFC3339)
	}
	return summary, nil
}

// GetAccountBalanceHistory computes month-end balances for the trailing
// months window, newest last. It fetches the ledger once and replays it
// against each month boundary in sequence.
func (s *FinanceService) GetAccountBalanceHistory(ctx context.Context, userID, accountID string, months int, isDemo bool) ([]domain.BalancePoint, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.GetAccountBalanceHistory")
	defer span.End()

	if months < 1 {
		months = 6
	}
	if months > 24 {
		months = 24
	}

	acct, err := s.ledger.GetAccount(ctx, userID, accountID, isDemo)
	if err != nil {
		return nil, err
	}
	txs, err := s.ledger.ListCompletedTransactions(ctx, accountID, nil, isDemo)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	points := make([]domain.BalancePoint, 0, months)
	idx := 0
	balance := decimal.NewFromFloat(acct.InitialBalance)

	for i := months - 1; i >= 0; i-- {
		anchor := now.AddDate(0, -i, 0)
		// Last instant of the month: the first day of the next month.
		boundary := time.Date(anchor.Year(), anchor.Month()+1, 1, 0, 0, 0, 0, time.UTC)

		// Transactions arrive oldest first, so each boundary only needs
		// to consume the entries since the previous one.
		for idx < len(txs) && txs[idx].OccurredAt.Before(boundary) {
			tx := txs[idx]
			amt := decimal.NewFromFloat(tx.Amount).Abs()
			if tx.SourceAccountID == accountID && domain.DebitsAsSource(tx.Type) {
				balance = balance.Sub(amt)
			}
			if tx.DestinationAccountID == accountID && domain.CreditsAsDestination(tx.Type) {
				balance = balance.Add(amt)
			}
			idx++
		}

		lastDay := boundary.AddDate(0, 0, -1)
		points = append(points, domain.BalancePoint{
			Month:   fmt.Sprintf("%04d-%02d", anchor.Year(), int(anchor.Month())),
			Balance: balance.InexactFloat64(),
			Date:    lastDay.Format("2006-01-02"),
		})
	}
	return points, nil
}

// noteExternalError records backend failures in the external-error
// counter, keyed by the failing service.
func (s *FinanceService) noteExternalError(err error) {
	var ext *domain.ErrExternalService
	if errors.As(err, &ext) {
		s.metrics.IncrExternalError(ext.Service)
	}
}

// fallbackReason buckets a primary-path failure for metrics: a missing
// RPC function versus any other failure.
func fallbackReason(err error) string {
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return "rpc_missing"
	}
	return "rpc_error"
}
