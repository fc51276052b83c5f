package domain

import "time"

// ============================================================
// Bills
// ============================================================

// Persisted bill statuses (the column the mobile client also reads).
// paused and ended both persist as cancelled; metadata.ui_status tells
// them apart.
const (
	BillStatusUpcoming  = "upcoming"
	BillStatusPaid      = "paid"
	BillStatusOverdue   = "overdue"
	BillStatusCancelled = "cancelled"
	BillStatusSkipped   = "skipped"
	BillStatusPartial   = "partial"
)

// Derived (presentation) bill statuses.
const (
	BillDueToday    = "due_today"
	BillDueTomorrow = "due_tomorrow"
	BillDueWeek     = "due_week"
	BillOverdue     = "overdue"
	BillPaid        = "paid"
	BillPaused      = "paused"
	BillEnded       = "ended"
)

// Recurrence values for recurring bills.
const (
	RecurrenceOnce    = "once"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
	RecurrenceYearly  = "yearly"
)

// BillMetadata is the jsonb side-channel on the bills table. UIStatus
// distinguishes paused from ended, both persisted as cancelled.
type BillMetadata struct {
	UIStatus string `json:"ui_status,omitempty"`
}

// Bill is a recurring or one-off obligation.
type Bill struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	Name       string        `json:"name"`
	Amount     float64       `json:"amount"`
	DueDate    string        `json:"due_date"` // YYYY-MM-DD
	Status     string        `json:"status"`
	Recurrence string        `json:"recurrence,omitempty"`
	AccountID  string        `json:"account_id,omitempty"` // default paying account
	Category   string        `json:"category,omitempty"`
	Metadata   *BillMetadata `json:"metadata,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// BillCreateRequest is the payload to create a bill.
type BillCreateRequest struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	DueDate    string  `json:"due_date"`
	Recurrence string  `json:"recurrence,omitempty"`
	AccountID  string  `json:"account_id,omitempty"`
	Category   string  `json:"category,omitempty"`
}

// BillUpdateRequest carries the mutable bill fields.
type BillUpdateRequest struct {
	Name      *string  `json:"name,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
	DueDate   *string  `json:"due_date,omitempty"`
	AccountID *string  `json:"account_id,omitempty"`
	Category  *string  `json:"category,omitempty"`
}

// BillWithStatus is a bill plus its derived presentation status.
type BillWithStatus struct {
	Bill
	DerivedStatus string `json:"derived_status"`
}

// DeriveBillStatus maps a bill's persisted state onto exactly one of the
// seven presentation statuses. It is a pure function of the persisted
// status, the due date, today's date and the metadata ui_status; only the
// calendar day of dueDate and today matters.
//
// Precedence: paid and cancelled (ended/paused) win over anything the due
// date says; an upcoming bill past its due date is overdue even though the
// column still reads upcoming.
func DeriveBillStatus(persisted string, dueDate, today time.Time, uiStatus string) string {
	switch persisted {
	case BillStatusPaid:
		return BillPaid
	case BillStatusCancelled:
		if uiStatus == BillEnded {
			return BillEnded
		}
		// Older rows carry no ui_status; treat them as paused.
		return BillPaused
	}

	due := truncateDay(dueDate)
	now := truncateDay(today)

	if persisted == BillStatusOverdue || due.Before(now) {
		return BillOverdue
	}
	switch {
	case due.Equal(now):
		return BillDueToday
	case due.Equal(now.AddDate(0, 0, 1)):
		return BillDueTomorrow
	default:
		return BillDueWeek
	}
}

// BillStatusRank orders derived statuses urgency-first for display:
// due_today < due_tomorrow < overdue < due_week < paused < paid < ended.
func BillStatusRank(derived string) int {
	switch derived {
	case BillDueToday:
		return 0
	case BillDueTomorrow:
		return 1
	case BillOverdue:
		return 2
	case BillDueWeek:
		return 3
	case BillPaused:
		return 4
	case BillPaid:
		return 5
	case BillEnded:
		return 6
	}
	return 7
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ============================================================
// Bill payments
// ============================================================

// BillPayment records one settlement of a bill. The matching ledger entry
// (an expense transaction) carries the actual balance effect.
type BillPayment struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	BillID        string    `json:"bill_id"`
	AccountID     string    `json:"account_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Amount        float64   `json:"amount"`
	PaidDate      string    `json:"paid_date"` // YYYY-MM-DD
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// BillPayRequest is the payload to pay a bill.
type BillPayRequest struct {
	AccountID string  `json:"account_id,omitempty"` // defaults to the bill's account
	Amount    float64 `json:"amount,omitempty"`     // defaults to the bill amount
	PaidDate  string  `json:"paid_date,omitempty"`  // defaults to today
	Note      string  `json:"note,omitempty"`
}
