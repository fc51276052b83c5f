package service

import (
	"context"
	"sort"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// derivedStatus runs the pure status derivation against the service
// clock. Unparseable due dates are treated as due today so a bad row is
// visible instead of buried at the bottom of the list.
func (s *FinanceService) derivedStatus(bill *domain.Bill) string {
	due, err := time.Parse("2006-01-02", bill.DueDate)
	if err != nil {
		s.logger.Warn("bill has unparseable due date",
			zap.String("bill_id", bill.ID),
			zap.String("due_date", bill.DueDate),
		)
		due = s.now()
	}
	uiStatus := ""
	if bill.Metadata != nil {
		uiStatus = bill.Metadata.UIStatus
	}
	return domain.DeriveBillStatus(bill.Status, due, s.now(), uiStatus)
}

// ListBills returns all of a user's bills with derived statuses,
// ordered urgency-first and by due date within the same urgency.
func (s *FinanceService) ListBills(ctx context.Context, userID string, isDemo bool) ([]domain.BillWithStatus, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.ListBills")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("list_bills", time.Since(start)) }()

	bills, err := s.bills.ListBills(ctx, userID, isDemo)
	if err != nil {
		return nil, err
	}

	out := make([]domain.BillWithStatus, len(bills))
	for i := range bills {
		out[i] = domain.BillWithStatus{
			Bill:          bills[i],
			DerivedStatus: s.derivedStatus(&bills[i]),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := domain.BillStatusRank(out[i].DerivedStatus), domain.BillStatusRank(out[j].DerivedStatus)
		if ri != rj {
			return ri < rj
		}
		return out[i].DueDate < out[j].DueDate
	})
	return out, nil
}

// GetBill returns one bill with its derived status.
func (s *FinanceService) GetBill(ctx context.Context, userID, billID string, isDemo bool) (*domain.BillWithStatus, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.GetBill")
	defer span.End()

	bill, err := s.bills.GetBill(ctx, userID, billID, isDemo)
	if err != nil {
		return nil, err
	}
	return &domain.BillWithStatus{Bill: *bill, DerivedStatus: s.derivedStatus(bill)}, nil
}

// CreateBill validates and stores a new bill with status upcoming.
func (s *FinanceService) CreateBill(ctx context.Context, userID string, req *domain.BillCreateRequest, isDemo bool) (*domain.BillWithStatus, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.CreateBill")
	defer span.End()

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	if _, err := time.Parse("2006-01-02", req.DueDate); err != nil {
		return nil, &domain.ErrValidation{Field: "due_date", Message: "expected YYYY-MM-DD"}
	}
	recurrence := req.Recurrence
	switch recurrence {
	case "":
		recurrence = domain.RecurrenceOnce
	case domain.RecurrenceOnce, domain.RecurrenceWeekly, domain.RecurrenceMonthly, domain.RecurrenceYearly:
	default:
		return nil, &domain.ErrValidation{Field: "recurrence", Message: "expected once, weekly, monthly or yearly"}
	}

	row := map[string]any{
		"id":         uuid.NewString(),
		"user_id":    userID,
		"name":       req.Name,
		"amount":     req.Amount,
		"due_date":   req.DueDate,
		"status":     domain.BillStatusUpcoming,
		"recurrence": recurrence,
		"account_id": req.AccountID,
		"category":   req.Category,
	}
	bill, err := s.bills.InsertBill(ctx, row, isDemo)
	if err != nil {
		return nil, err
	}
	return &domain.BillWithStatus{Bill: *bill, DerivedStatus: s.derivedStatus(bill)}, nil
}

// UpdateBill applies the non-nil fields of req. Status is not editable
// here; lifecycle actions own status changes.
func (s *FinanceService) UpdateBill(ctx context.Context, userID, billID string, req *domain.BillUpdateRequest, isDemo bool) (*domain.BillWithStatus, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.UpdateBill")
	defer span.End()

	if _, err := s.bills.GetBill(ctx, userID, billID, isDemo); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, &domain.ErrValidation{Field: "name", Message: "name cannot be empty"}
		}
		updates["name"] = *req.Name
	}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
		}
		updates["amount"] = *req.Amount
	}
	if req.DueDate != nil {
		if _, err := time.Parse("2006-01-02", *req.DueDate); err != nil {
			return nil, &domain.ErrValidation{Field: "due_date", Message: "expected YYYY-MM-DD"}
		}
		updates["due_date"] = *req.DueDate
	}
	if req.AccountID != nil {
		updates["account_id"] = *req.AccountID
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if len(updates) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}
	updates["updated_at"] = s.now().UTC().Format(time.RFC3339)

	bill, err := s.bills.UpdateBill(ctx, billID, updates, isDemo)
	if err != nil {
		return nil, err
	}
	return &domain.BillWithStatus{Bill: *bill, DerivedStatus: s.derivedStatus(bill)}, nil
}

// DeleteBill removes a bill. Payment rows survive; their ledger entries
// already carried the balance effect.
func (s *FinanceService) DeleteBill(ctx context.Context, userID, billID string, isDemo bool) error {
	ctx, span := tracer.Start(ctx, "FinanceService.DeleteBill")
	defer span.End()

	if _, err := s.bills.GetBill(ctx, userID, billID, isDemo); err != nil {
		return err
	}
	return s.bills.DeleteBill(ctx, billID, isDemo)
}

// PauseBill suspends a bill. Persisted as cancelled with metadata
// ui_status "paused"; the persisted schema has no dedicated paused
// value and the mobile client reads the same column. Pausing an
// already-paused bill is a no-op.
func (s *FinanceService) PauseBill(ctx context.Context, userID, billID string, isDemo bool) (*domain.BillWithStatus, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.PauseBill")
	defer span.End()

	bill, err := s.bills.GetBill(ctx, userID, billID, isDemo)
	if err != nil {
		return nil, err
	}
	switch s.derivedStatus(bill) {
	case domain.BillPaused:
		return &domain.BillWithStatus{Bill: *bill, DerivedStatus: domain.BillPaused}, nil
	case domain.BillPaid, domain.BillEnded:
		return nil, &domain.ErrInvalidTransition{Action: "pause", From: s.derivedStatus(bill)}
	}

	return s.applyTransition(ctx, billID, map[string]any{
		"status":   domain.BillStatusCancelled,
		"metadata": domain.BillMetadata{UIStatus: domain.BillPaused},
	}, isDemo)
}

// EndBill permanently closes a bill. Persisted as cancelled with
// metadata ui_status "ended". Ending an ended bill is a no-op; a paid
// bill stays paid.
func (s *FinanceService) EndBill(ctx context.Context, userID, billID string, isDemo bool) (*domain.BillWithStatus, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.EndBill")
	defer span.End()

	bill, err := s.bills.GetBill(ctx, userID, billID, isDemo)
	if err != nil {
		return nil, err
	}
	switch derived := s.derivedStatus(bill); derived {
	case domain.BillEnded:
		return &domain.BillWithStatus{Bill: *bill, DerivedStatus: domain.BillEnded}, nil
	case domain.BillPaid:
		return nil, &domain.ErrInvalidTransition{Action: "end", From: derived}
	}

	return s.applyTransition(ctx, billID, map[string]any{
		"status":   domain.BillStatusCancelled,
		"metadata": domain.BillMetadata{UIStatus: domain.BillEnded},
	}, isDemo)
}

// ResumeBill reactivates a paused or ended bill, clearing the lifecycle
// marker so the due date drives the status again. Resuming a bill that
// is already active is a no-op.
func (s *FinanceService) ResumeBill(ctx context.Context, userID, billID string, isDemo bool) (*domain.BillWithStatus, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.ResumeBill")
	defer span.End()

	bill, err := s.bills.GetBill(ctx, userID, billID, isDemo)
	if err != nil {
		return nil, err
	}
	switch derived := s.derivedStatus(bill); derived {
	case domain.BillPaused, domain.BillEnded:
	default:
		return &domain.BillWithStatus{Bill: *bill, DerivedStatus: derived}, nil
	}

	return s.applyTransition(ctx, billID, map[string]any{
		"status":   domain.BillStatusUpcoming,
		"metadata": domain.BillMetadata{},
	}, isDemo)
}

// MarkBillPaid flips a bill to paid without recording a payment or a
// ledger entry. PayBill is the path that moves money.
func (s *FinanceService) MarkBillPaid(ctx context.Context, userID, billID string, isDemo bool) (*domain.BillWithStatus, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.MarkBillPaid")
	defer span.End()

	bill, err := s.bills.GetBill(ctx, userID, billID, isDemo)
	if err != nil {
		return nil, err
	}
	switch derived := s.derivedStatus(bill); derived {
	case domain.BillPaid:
		return &domain.BillWithStatus{Bill: *bill, DerivedStatus: domain.BillPaid}, nil
	case domain.BillPaused, domain.BillEnded:
		return nil, &domain.ErrInvalidTransition{Action: "pay", From: derived}
	}

	return s.applyTransition(ctx, billID, map[string]any{
		"status": domain.BillStatusPaid,
	}, isDemo)
}

// UnmarkBillPaid reverts a paid bill to upcoming. The matching ledger
// entry, if any, is left alone; reversing money is a manual decision.
func (s *FinanceService) UnmarkBillPaid(ctx context.Context, userID, billID string, isDemo bool) (*domain.BillWithStatus, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.UnmarkBillPaid")
	defer span.End()

	bill, err := s.bills.GetBill(ctx, userID, billID, isDemo)
	if err != nil {
		return nil, err
	}
	if derived := s.derivedStatus(bill); derived != domain.BillPaid {
		return nil, &domain.ErrInvalidTransition{Action: "unpay", From: derived}
	}

	return s.applyTransition(ctx, billID, map[string]any{
		"status": domain.BillStatusUpcoming,
	}, isDemo)
}

func (s *FinanceService) applyTransition(ctx context.Context, billID string, updates map[string]any, isDemo bool) (*domain.BillWithStatus, error) {
	updates["updated_at"] = s.now().UTC().Format(time.RFC3339)
	bill, err := s.bills.UpdateBill(ctx, billID, updates, isDemo)
	if err != nil {
		return nil, err
	}
	return &domain.BillWithStatus{Bill: *bill, DerivedStatus: s.derivedStatus(bill)}, nil
}

// PayBill settles a bill: it writes an expense ledger entry against the
// paying account, records a payment row referencing that entry, then
// marks a one-off bill paid or advances a recurring bill's due date by
// one period. The account summary cache is invalidated so the next read
// reflects the payment.
func (s *FinanceService) PayBill(ctx context.Context, userID, billID string, req *domain.BillPayRequest, isDemo bool) (*domain.BillPayment, *domain.BillWithStatus, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.PayBill")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("pay_bill", time.Since(start)) }()

	bill, err := s.bills.GetBill(ctx, userID, billID, isDemo)
	if err != nil {
		return nil, nil, err
	}
	switch derived := s.derivedStatus(bill); derived {
	case domain.BillPaid, domain.BillPaused, domain.BillEnded:
		return nil, nil, &domain.ErrInvalidTransition{Action: "pay", From: derived}
	}

	accountID := req.AccountID
	if accountID == "" {
		accountID = bill.AccountID
	}
	if accountID == "" {
		return nil, nil, &domain.ErrValidation{Field: "account_id", Message: "no paying account on the request or the bill"}
	}
	if _, err := s.ledger.GetAccount(ctx, userID, accountID, isDemo); err != nil {
		return nil, nil, err
	}

	amount := req.Amount
	if amount == 0 {
		amount = bill.Amount
	}
	if amount <= 0 {
		return nil, nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}

	paidDate := req.PaidDate
	if paidDate == "" {
		paidDate = s.now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", paidDate); err != nil {
		return nil, nil, &domain.ErrValidation{Field: "paid_date", Message: "expected YYYY-MM-DD"}
	}

	tx, err := s.ledger.InsertTransaction(ctx, map[string]any{
		"id":                uuid.NewString(),
		"user_id":           userID,
		"description":       "Bill payment: " + bill.Name,
		"amount":            amount,
		"type":              domain.TxTypeExpense,
		"status":            domain.TxStatusCompleted,
		"source_account_id": accountID,
		"category":          bill.Category,
		"occurred_at":       paidDate,
	}, isDemo)
	if err != nil {
		return nil, nil, err
	}
	// The ledger moved; a cached summary is stale from here on even if
	// the payment record or the bill update fails below.
	s.summaryCache.Delete(summaryCacheKey(accountID, isDemo))

	payment, err := s.bills.InsertBillPayment(ctx, map[string]any{
		"id":             uuid.NewString(),
		"user_id":        userID,
		"bill_id":        billID,
		"account_id":     accountID,
		"transaction_id": tx.ID,
		"amount":         amount,
		"paid_date":      paidDate,
		"note":           req.Note,
	}, isDemo)
	if err != nil {
		return nil, nil, err
	}

	updates := map[string]any{"status": domain.BillStatusPaid}
	if bill.Recurrence != "" && bill.Recurrence != domain.RecurrenceOnce {
		next, err := nextDueDate(bill.DueDate, bill.Recurrence)
		if err != nil {
			s.logger.Warn("pay bill: cannot advance due date",
				zap.String("bill_id", billID),
				zap.String("due_date", bill.DueDate),
				zap.Error(err),
			)
		} else {
			updates = map[string]any{
				"status":   domain.BillStatusUpcoming,
				"due_date": next,
			}
		}
	}

	updated, err := s.applyTransition(ctx, billID, updates, isDemo)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("bill paid",
		zap.String("bill_id", billID),
		zap.String("account_id", accountID),
		zap.Float64("amount", amount),
		zap.String("recurrence", bill.Recurrence),
	)
	return payment, updated, nil
}

// ListBillPayments returns a page of the user's payment history,
// optionally scoped to one bill.
func (s *FinanceService) ListBillPayments(ctx context.Context, userID, billID string, page, pageSize int, isDemo bool) ([]domain.BillPayment, error) {
	ctx, span := tracer.Start(ctx, "FinanceService.ListBillPayments")
	defer span.End()

	if billID != "" {
		if _, err := s.bills.GetBill(ctx, userID, billID, isDemo); err != nil {
			return nil, err
		}
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.bills.ListBillPayments(ctx, userID, billID, page, pageSize, isDemo)
}

// nextDueDate advances a due date by one recurrence period.
func nextDueDate(dueDate, recurrence string) (string, error) {
	due, err := time.Parse("2006-01-02", dueDate)
	if err != nil {
		return "", err
	}
	switch recurrence {
	case domain.RecurrenceWeekly:
		due = due.AddDate(0, 0, 7)
	case domain.RecurrenceMonthly:
		due = due.AddDate(0, 1, 0)
	case domain.RecurrenceYearly:
		due = due.AddDate(1, 0, 0)
	default:
		return "", &domain.ErrValidation{Field: "recurrence", Message: "not a recurring bill"}
	}
	return due.Format("2006-01-02"), nil
}
