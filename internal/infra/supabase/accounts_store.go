package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"

	"go.uber.org/zap"
)

// LedgerStore implements port.LedgerStore against the PostgREST tables
// (accounts + transactions) and the server-side aggregate RPCs.
type LedgerStore struct {
	client *Client
}

func NewLedgerStore(client *Client) *LedgerStore {
	return &LedgerStore{client: client}
}

// ListActiveAccounts returns a user's active accounts, oldest first.
func (s *LedgerStore) ListActiveAccounts(ctx context.Context, userID string, isDemo bool) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "LedgerStore.ListActiveAccounts")
	defer span.End()

	path := fmt.Sprintf("%s?user_id=eq.%s&is_active=eq.true&order=created_at.asc",
		table(tableAccounts, isDemo), userID)
	body, err := s.client.readWithRetry(ctx, path)
	if err != nil {
		return nil, mapErr("list accounts", err)
	}

	var accounts []domain.Account
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal accounts: %w", err)
	}
	return accounts, nil
}

// GetAccount fetches one account, scoped to its owner.
func (s *LedgerStore) GetAccount(ctx context.Context, userID, accountID string, isDemo bool) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "LedgerStore.GetAccount")
	defer span.End()

	path := fmt.Sprintf("%s?id=eq.%s&user_id=eq.%s&limit=1",
		table(tableAccounts, isDemo), accountID, userID)
	body, err := s.client.readWithRetry(ctx, path)
	if err != nil {
		return nil, mapErr("get account", err)
	}

	var accounts []domain.Account
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	if len(accounts) == 0 {
		return nil, notFound("account", accountID)
	}
	return &accounts[0], nil
}

// InsertAccount creates an account row and returns the stored form.
func (s *LedgerStore) InsertAccount(ctx context.Context, row map[string]any, isDemo bool) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "LedgerStore.InsertAccount")
	defer span.End()

	body, err := s.client.doPost(ctx, table(tableAccounts, isDemo), row)
	if err != nil {
		return nil, mapErr("create account", err)
	}

	var accounts []domain.Account
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal created account: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("insert account: empty representation")
	}
	return &accounts[0], nil
}

// UpdateAccount applies a partial update. Last write wins; there is no
// row-level locking on account metadata.
func (s *LedgerStore) UpdateAccount(ctx context.Context, accountID string, updates map[string]any, isDemo bool) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "LedgerStore.UpdateAccount")
	defer span.End()

	path := fmt.Sprintf("%s?id=eq.%s", table(tableAccounts, isDemo), accountID)
	body, err := s.client.doPatch(ctx, path, updates)
	if err != nil {
		return nil, mapErr("update account", err)
	}

	var accounts []domain.Account
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal updated account: %w", err)
	}
	if len(accounts) == 0 {
		return nil, notFound("account", accountID)
	}
	return &accounts[0], nil
}

// DeleteAccount removes the account row. The service layer decides
// between this and a soft-delete based on referencing transactions.
func (s *LedgerStore) DeleteAccount(ctx context.Context, accountID string, isDemo bool) error {
	ctx, span := tracer.Start(ctx, "LedgerStore.DeleteAccount")
	defer span.End()

	path := fmt.Sprintf("%s?id=eq.%s", table(tableAccounts, isDemo), accountID)
	if err := s.client.doDelete(ctx, path); err != nil {
		return mapErr("delete account", err)
	}
	return nil
}

// CountAccountTransactions counts ledger entries that reference the
// account on either side, regardless of status.
func (s *LedgerStore) CountAccountTransactions(ctx context.Context, accountID string, isDemo bool) (int, error) {
	ctx, span := tracer.Start(ctx, "LedgerStore.CountAccountTransactions")
	defer span.End()

	path := fmt.Sprintf("%s?or=(source_account_id.eq.%s,destination_account_id.eq.%s)&select=id",
		table(tableTransactions, isDemo), accountID, accountID)
	n, err := s.client.doCount(ctx, path)
	if err != nil {
		return 0, mapErr("count account transactions", err)
	}
	s.client.logger.Debug("supabase: counted account transactions",
		zap.String("account_id", accountID),
		zap.Int("count", n),
	)
	return n, nil
}
