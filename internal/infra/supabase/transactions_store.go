package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
)

// Aggregate RPC function names. The demo table set is selected by a
// parameter, not a separate function.
const (
	rpcAccountSummary   = "get_account_summary"
	rpcCalculateBalance = "calculate_account_balance"
)

// transactionRow mirrors the transactions table. Dates come back either
// as RFC3339 timestamps or bare dates depending on the column migration
// history, so they are parsed by hand.
type transactionRow struct {
	ID                   string  `json:"id"`
	UserID               string  `json:"user_id"`
	Description          string  `json:"description"`
	Amount               float64 `json:"amount"`
	Type                 string  `json:"type"`
	Status               string  `json:"status"`
	SourceAccountID      string  `json:"source_account_id"`
	DestinationAccountID string  `json:"destination_account_id"`
	Category             string  `json:"category"`
	OccurredAt           string  `json:"occurred_at"`
	CreatedAt            string  `json:"created_at"`
}

func (r transactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:                   r.ID,
		UserID:               r.UserID,
		Description:          r.Description,
		Amount:               r.Amount,
		Type:                 r.Type,
		Status:               r.Status,
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		Category:             r.Category,
		OccurredAt:           parseWhen(r.OccurredAt),
		CreatedAt:            parseWhen(r.CreatedAt),
	}
}

// ListCompletedTransactions returns the completed ledger entries that
// touch the account on either side, oldest first. A non-nil asOf bounds
// the result to entries occurring at or before that instant, which is
// what the balance replay needs for historical queries.
func (s *LedgerStore) ListCompletedTransactions(ctx context.Context, accountID string, asOf *time.Time, isDemo bool) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerStore.ListCompletedTransactions")
	defer span.End()

	path := fmt.Sprintf("%s?or=(source_account_id.eq.%s,destination_account_id.eq.%s)&status=eq.completed&order=occurred_at.asc",
		table(tableTransactions, isDemo), accountID, accountID)
	if asOf != nil {
		path += fmt.Sprintf("&occurred_at=lte.%s", asOf.UTC().Format(time.RFC3339))
	}

	body, err := s.client.readWithRetry(ctx, path)
	if err != nil {
		return nil, mapErr("list transactions", err)
	}

	var rows []transactionRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal transactions: %w", err)
	}
	txs := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, r.toDomain())
	}
	return txs, nil
}

// InsertTransaction creates one ledger entry and returns the stored form.
func (s *LedgerStore) InsertTransaction(ctx context.Context, row map[string]any, isDemo bool) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerStore.InsertTransaction")
	defer span.End()

	body, err := s.client.doPost(ctx, table(tableTransactions, isDemo), row)
	if err != nil {
		return nil, mapErr("create transaction", err)
	}

	var rows []transactionRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal created transaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert transaction: empty representation")
	}
	tx := rows[0].toDomain()
	return &tx, nil
}

// summaryRow mirrors the get_account_summary RPC row.
type summaryRow struct {
	CurrentBalance      float64 `json:"current_balance"`
	TotalIncome         float64 `json:"total_income"`
	TotalExpenses       float64 `json:"total_expenses"`
	TransactionCount    int     `json:"transaction_count"`
	LastTransactionDate *string `json:"last_transaction_date"`
}

// GetAccountSummaryRPC calls the server-side aggregate. This is the
// primary path of the balance reconciler; failures here are classified
// by the service layer, which falls back to a client-side replay.
func (s *LedgerStore) GetAccountSummaryRPC(ctx context.Context, accountID string, isDemo bool) (*domain.AccountSummary, error) {
	ctx, span := tracer.Start(ctx, "LedgerStore.GetAccountSummaryRPC")
	defer span.End()

	body, err := s.client.rpc(ctx, rpcAccountSummary, map[string]any{
		"p_account_id": accountID,
		"p_is_demo":    isDemo,
	})
	if err != nil {
		return nil, mapErr("account summary", err)
	}

	row, err := decodeSummary(body)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, notFound("account summary", accountID)
	}

	out := &domain.AccountSummary{
		AccountID:        accountID,
		CurrentBalance:   row.CurrentBalance,
		TotalIncome:      row.TotalIncome,
		TotalExpenses:    row.TotalExpenses,
		TransactionCount: row.TransactionCount,
	}
	if row.LastTransactionDate != nil {
		out.LastTransactionDate = *row.LastTransactionDate
	}
	return out, nil
}

// decodeSummary accepts both shapes PostgREST may return for the RPC:
// a single object or a one-row array.
func decodeSummary(body []byte) (*summaryRow, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var rows []summaryRow
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("unmarshal account summary: %w", err)
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return &rows[0], nil
	}
	var row summaryRow
	if err := json.Unmarshal(trimmed, &row); err != nil {
		return nil, fmt.Errorf("unmarshal account summary: %w", err)
	}
	return &row, nil
}

// CalculateBalanceRPC returns the server-side balance as of a point in
// time. The RPC returns a bare numeric scalar.
func (s *LedgerStore) CalculateBalanceRPC(ctx context.Context, accountID string, asOf time.Time, isDemo bool) (float64, error) {
	ctx, span := tracer.Start(ctx, "LedgerStore.CalculateBalanceRPC")
	defer span.End()

	body, err := s.client.rpc(ctx, rpcCalculateBalance, map[string]any{
		"p_account_id": accountID,
		"p_as_of":      asOf.UTC().Format(time.RFC3339),
		"p_is_demo":    isDemo,
	})
	if err != nil {
		return 0, mapErr("calculate balance", err)
	}

	var balance *float64
	if err := json.Unmarshal(body, &balance); err != nil {
		return 0, fmt.Errorf("unmarshal balance: %w", err)
	}
	if balance == nil {
		return 0, nil
	}
	return *balance, nil
}
