package supabase

// Demo mode reads and writes a parallel demo_* table set on the same
// backend. Every store method threads isDemo through this mapping.
const (
	tableAccounts      = "accounts"
	tableTransactions  = "transactions"
	tableBills         = "bills"
	tableBillPayments  = "bill_payments"
	tableUsers         = "app_users"
	tableCredentials   = "auth_credentials"
	tableRefreshTokens = "auth_refresh_tokens"
)

// table returns the concrete table name for the selected table set.
// The auth tables are never demo-scoped.
func table(base string, isDemo bool) string {
	if !isDemo {
		return base
	}
	switch base {
	case tableAccounts, tableTransactions, tableBills, tableBillPayments:
		return "demo_" + base
	}
	return base
}
