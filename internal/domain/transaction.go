package domain

import "time"

// ============================================================
// Transactions (ledger)
// ============================================================

// Transaction types. The effect on an account's balance depends on both
// the type and whether the account is the source or the destination.
const (
	TxTypeIncome         = "income"
	TxTypeExpense        = "expense"
	TxTypeTransfer       = "transfer"
	TxTypeLoan           = "loan"
	TxTypeLoanRepayment  = "loan_repayment"
	TxTypeDebt           = "debt"
	TxTypeDebtCollection = "debt_collection"
	TxTypeOpeningBalance = "opening_balance"
)

// Transaction statuses. Only completed transactions count toward balances.
const (
	TxStatusCompleted = "completed"
	TxStatusPending   = "pending"
	TxStatusFailed    = "failed"
)

// Transaction is one ledger entry. Amount is stored unsigned; the sign is
// inferred from Type and from which side references a given account.
// A transaction touches at most two accounts.
type Transaction struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	Description          string    `json:"description,omitempty"`
	Amount               float64   `json:"amount"`
	Type                 string    `json:"type"`
	Status               string    `json:"status"`
	SourceAccountID      string    `json:"source_account_id,omitempty"`
	DestinationAccountID string    `json:"destination_account_id,omitempty"`
	Category             string    `json:"category,omitempty"`
	OccurredAt           time.Time `json:"occurred_at"`
	CreatedAt            time.Time `json:"created_at"`
}

// DebitsAsSource reports whether a transaction of the given type reduces
// the balance of its source account. Any other type is a no-op for the
// source role.
func DebitsAsSource(txType string) bool {
	switch txType {
	case TxTypeExpense, TxTypeLoanRepayment, TxTypeDebt, TxTypeTransfer:
		return true
	}
	return false
}

// CreditsAsDestination reports whether a transaction of the given type
// increases the balance of its destination account. Any other type is a
// no-op for the destination role.
func CreditsAsDestination(txType string) bool {
	switch txType {
	case TxTypeIncome, TxTypeLoan, TxTypeDebtCollection, TxTypeTransfer:
		return true
	}
	return false
}
