package service

import (
	"context"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SeedDemoData populates the demo table set for a user: two accounts
// with ledger history and a handful of bills in different lifecycle
// states. Existing demo data for the user is left alone; seeding twice
// just adds another batch.
func (s *FinanceService) SeedDemoData(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "FinanceService.SeedDemoData")
	defer span.End()

	today := s.now().UTC()
	day := func(offset int) string {
		return today.AddDate(0, 0, offset).Format("2006-01-02")
	}

	checking, err := s.CreateAccount(ctx, userID, &domain.AccountCreateRequest{
		Name:           "Demo Checking",
		AccountType:    domain.AccountTypeChecking,
		Institution:    "Demo Bank",
		InitialBalance: 2500,
		Currency:       "USD",
	}, true)
	if err != nil {
		return err
	}
	savings, err := s.CreateAccount(ctx, userID, &domain.AccountCreateRequest{
		Name:           "Demo Savings",
		AccountType:    domain.AccountTypeSavings,
		Institution:    "Demo Bank",
		InitialBalance: 10000,
		Currency:       "USD",
	}, true)
	if err != nil {
		return err
	}

	type seedTx struct {
		desc     string
		amount   float64
		txType   string
		source   string
		dest     string
		category string
		occurred string
	}
	txs := []seedTx{
		{"Salary", 4200, domain.TxTypeIncome, "", checking.ID, "salary", day(-25)},
		{"Groceries", 86.40, domain.TxTypeExpense, checking.ID, "", "groceries", day(-20)},
		{"Rent", 1450, domain.TxTypeExpense, checking.ID, "", "housing", day(-18)},
		{"To savings", 500, domain.TxTypeTransfer, checking.ID, savings.ID, "transfer", day(-14)},
		{"Coffee", 4.75, domain.TxTypeExpense, checking.ID, "", "dining", day(-3)},
	}
	for _, t := range txs {
		row := map[string]any{
			"id":          uuid.NewString(),
			"user_id":     userID,
			"description": t.desc,
			"amount":      t.amount,
			"type":        t.txType,
			"status":      domain.TxStatusCompleted,
			"category":    t.category,
			"occurred_at": t.occurred,
		}
		if t.source != "" {
			row["source_account_id"] = t.source
		}
		if t.dest != "" {
			row["destination_account_id"] = t.dest
		}
		if _, err := s.ledger.InsertTransaction(ctx, row, true); err != nil {
			return err
		}
	}

	bills := []domain.BillCreateRequest{
		{Name: "Electricity", Amount: 92.30, DueDate: day(0), Recurrence: domain.RecurrenceMonthly, AccountID: checking.ID, Category: "utilities"},
		{Name: "Internet", Amount: 59.99, DueDate: day(1), Recurrence: domain.RecurrenceMonthly, AccountID: checking.ID, Category: "utilities"},
		{Name: "Gym", Amount: 35, DueDate: day(-4), Recurrence: domain.RecurrenceMonthly, AccountID: checking.ID, Category: "health"},
		{Name: "Car insurance", Amount: 640, DueDate: day(40), Recurrence: domain.RecurrenceYearly, AccountID: checking.ID, Category: "insurance"},
	}
	for _, b := range bills {
		if _, err := s.CreateBill(ctx, userID, &b, true); err != nil {
			return err
		}
	}

	s.logger.Info("demo data seeded",
		zap.String("user_id", userID),
		zap.Int("accounts", 2),
		zap.Int("transactions", len(txs)),
		zap.Int("bills", len(bills)),
	)
	return nil
}
