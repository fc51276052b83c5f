package domain

import "time"

// ============================================================
// Accounts
// ============================================================

// Account types accepted by the accounts table.
const (
	AccountTypeChecking = "checking"
	AccountTypeSavings  = "savings"
	AccountTypeCredit   = "credit"
	AccountTypeLoan     = "loan"
	AccountTypeOther    = "other"
)

// Account represents a user's financial account.
// InitialBalance is fixed at creation and anchors the balance replay;
// it is never patched afterwards.
type Account struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Name               string    `json:"name"`
	AccountType        string    `json:"account_type"`
	Institution        string    `json:"institution,omitempty"`
	InitialBalance     float64   `json:"initial_balance"`
	InitialBalanceDate string    `json:"initial_balance_date,omitempty"` // YYYY-MM-DD
	Currency           string    `json:"currency,omitempty"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AccountSummary is the derived activity summary for one account.
// Never persisted; recomputed on every read.
type AccountSummary struct {
	AccountID           string  `json:"account_id"`
	CurrentBalance      float64 `json:"current_balance"`
	TotalIncome         float64 `json:"total_income"`
	TotalExpenses       float64 `json:"total_expenses"`
	TransactionCount    int     `json:"transaction_count"`
	LastTransactionDate string  `json:"last_transaction_date,omitempty"` // RFC3339, empty = no activity
}

// AccountWithBalance is an account enriched with its reconciled summary.
type AccountWithBalance struct {
	Account
	CurrentBalance      float64 `json:"current_balance"`
	TotalIncome         float64 `json:"total_income"`
	TotalExpenses       float64 `json:"total_expenses"`
	TransactionCount    int     `json:"transaction_count"`
	LastTransactionDate string  `json:"last_transaction_date,omitempty"`
}

// AccountTotals are portfolio-level aggregates across a user's accounts.
type AccountTotals struct {
	TotalBalance  float64 `json:"total_balance"`
	TotalIncome   float64 `json:"total_income"`
	TotalExpenses float64 `json:"total_expenses"`
	ActiveCount   int     `json:"active_count"`
}

// AccountsOverview is the aggregate builder output for the accounts screen.
type AccountsOverview struct {
	Accounts []AccountWithBalance `json:"accounts"`
	Totals   AccountTotals        `json:"totals"`
}

// AccountCreateRequest is the payload to create an account.
// A nonzero InitialBalance also seeds one opening_balance transaction.
type AccountCreateRequest struct {
	Name               string  `json:"name"`
	AccountType        string  `json:"account_type"`
	Institution        string  `json:"institution,omitempty"`
	InitialBalance     float64 `json:"initial_balance"`
	InitialBalanceDate string  `json:"initial_balance_date,omitempty"`
	Currency           string  `json:"currency,omitempty"`
}

// AccountUpdateRequest carries the mutable account fields. Nil pointers
// are left untouched. InitialBalance is deliberately absent.
type AccountUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	AccountType *string `json:"account_type,omitempty"`
	Institution *string `json:"institution,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// BalancePoint is one month boundary in a balance history.
type BalancePoint struct {
	Month   string  `json:"month"` // YYYY-MM
	Balance float64 `json:"balance"`
	Date    string  `json:"date"` // YYYY-MM-DD, last day of the month
}

// ValidAccountType reports whether t is an accepted account type.
func ValidAccountType(t string) bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeCredit, AccountTypeLoan, AccountTypeOther:
		return true
	}
	return false
}
