package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
)

// BillsStore implements port.BillStore against the bills and
// bill_payments tables.
type BillsStore struct {
	client *Client
}

func NewBillsStore(client *Client) *BillsStore {
	return &BillsStore{client: client}
}

// ListBills returns all of a user's bills, soonest due first. Status
// derivation happens in the service layer; the store returns rows as
// persisted, cancelled ones included.
func (s *BillsStore) ListBills(ctx context.Context, userID string, isDemo bool) ([]domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "BillsStore.ListBills")
	defer span.End()

	path := fmt.Sprintf("%s?user_id=eq.%s&order=due_date.asc",
		table(tableBills, isDemo), userID)
	body, err := s.client.readWithRetry(ctx, path)
	if err != nil {
		return nil, mapErr("list bills", err)
	}

	var bills []domain.Bill
	if err := json.Unmarshal(body, &bills); err != nil {
		return nil, fmt.Errorf("unmarshal bills: %w", err)
	}
	return bills, nil
}

// GetBill fetches one bill, scoped to its owner.
func (s *BillsStore) GetBill(ctx context.Context, userID, billID string, isDemo bool) (*domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "BillsStore.GetBill")
	defer span.End()

	path := fmt.Sprintf("%s?id=eq.%s&user_id=eq.%s&limit=1",
		table(tableBills, isDemo), billID, userID)
	body, err := s.client.readWithRetry(ctx, path)
	if err != nil {
		return nil, mapErr("get bill", err)
	}

	var bills []domain.Bill
	if err := json.Unmarshal(body, &bills); err != nil {
		return nil, fmt.Errorf("unmarshal bill: %w", err)
	}
	if len(bills) == 0 {
		return nil, notFound("bill", billID)
	}
	return &bills[0], nil
}

// InsertBill creates a bill row and returns the stored form.
func (s *BillsStore) InsertBill(ctx context.Context, row map[string]any, isDemo bool) (*domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "BillsStore.InsertBill")
	defer span.End()

	body, err := s.client.doPost(ctx, table(tableBills, isDemo), row)
	if err != nil {
		return nil, mapErr("create bill", err)
	}

	var bills []domain.Bill
	if err := json.Unmarshal(body, &bills); err != nil {
		return nil, fmt.Errorf("unmarshal created bill: %w", err)
	}
	if len(bills) == 0 {
		return nil, fmt.Errorf("insert bill: empty representation")
	}
	return &bills[0], nil
}

// UpdateBill applies a partial update and returns the stored form.
// Lifecycle transitions (pause, end, pay) go through here too; the
// service layer owns the transition rules.
func (s *BillsStore) UpdateBill(ctx context.Context, billID string, updates map[string]any, isDemo bool) (*domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "BillsStore.UpdateBill")
	defer span.End()

	path := fmt.Sprintf("%s?id=eq.%s", table(tableBills, isDemo), billID)
	body, err := s.client.doPatch(ctx, path, updates)
	if err != nil {
		return nil, mapErr("update bill", err)
	}

	var bills []domain.Bill
	if err := json.Unmarshal(body, &bills); err != nil {
		return nil, fmt.Errorf("unmarshal updated bill: %w", err)
	}
	if len(bills) == 0 {
		return nil, notFound("bill", billID)
	}
	return &bills[0], nil
}

// DeleteBill removes the bill row. Payments keep their rows; they still
// reference the ledger transaction that carried the balance effect.
func (s *BillsStore) DeleteBill(ctx context.Context, billID string, isDemo bool) error {
	ctx, span := tracer.Start(ctx, "BillsStore.DeleteBill")
	defer span.End()

	path := fmt.Sprintf("%s?id=eq.%s", table(tableBills, isDemo), billID)
	if err := s.client.doDelete(ctx, path); err != nil {
		return mapErr("delete bill", err)
	}
	return nil
}

// InsertBillPayment records one settlement row.
func (s *BillsStore) InsertBillPayment(ctx context.Context, row map[string]any, isDemo bool) (*domain.BillPayment, error) {
	ctx, span := tracer.Start(ctx, "BillsStore.InsertBillPayment")
	defer span.End()

	body, err := s.client.doPost(ctx, table(tableBillPayments, isDemo), row)
	if err != nil {
		return nil, mapErr("create bill payment", err)
	}

	var payments []domain.BillPayment
	if err := json.Unmarshal(body, &payments); err != nil {
		return nil, fmt.Errorf("unmarshal created bill payment: %w", err)
	}
	if len(payments) == 0 {
		return nil, fmt.Errorf("insert bill payment: empty representation")
	}
	return &payments[0], nil
}

// ListBillPayments returns a page of payments, newest first. An empty
// billID lists across all of the user's bills.
func (s *BillsStore) ListBillPayments(ctx context.Context, userID, billID string, page, pageSize int, isDemo bool) ([]domain.BillPayment, error) {
	ctx, span := tracer.Start(ctx, "BillsStore.ListBillPayments")
	defer span.End()

	if page < 1 {
		page = 1
	}
	path := fmt.Sprintf("%s?user_id=eq.%s&order=paid_date.desc&limit=%d&offset=%d",
		table(tableBillPayments, isDemo), userID, pageSize, (page-1)*pageSize)
	if billID != "" {
		path += fmt.Sprintf("&bill_id=eq.%s", billID)
	}

	body, err := s.client.readWithRetry(ctx, path)
	if err != nil {
		return nil, mapErr("list bill payments", err)
	}

	var payments []domain.BillPayment
	if err := json.Unmarshal(body, &payments); err != nil {
		return nil, fmt.Errorf("unmarshal bill payments: %w", err)
	}
	return payments, nil
}
