package model

import "time"

const (
	TxnPayment = "payment"
	TxnRefund  = "refund"
	TxnRenewal = "renewal"

	TxnPending   = "pending"
	TxnCompleted = "completed"
	TxnCancelled = "cancelled"
)

// FinanceTransaction is a ledger entry. Entries are append-only: the only
// permitted mutation is the status moving off pending, everything else is
// immutable once written. A student's reusable balance is always a fold over
// completed refund minus completed renewal entries, never a stored total.
type FinanceTransaction struct {
	ID            string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Type          string     `json:"transaction_type" bson:"transaction_type" validate:"required,oneof=payment refund renewal"`
	Amount        int64      `json:"amount" bson:"amount" validate:"required,gt=0"`
	StudentID     string     `json:"student_id" bson:"student_id" validate:"required,mongodb"`
	BookingID     string     `json:"booking_id,omitempty" bson:"booking_id,omitempty" validate:"omitempty,mongodb"`
	Description   string     `json:"description" bson:"description" validate:"required,max=500"`
	Status        string     `json:"status" bson:"status" validate:"required,oneof=pending completed cancelled"`
	DateCreated   time.Time  `json:"date_created" bson:"date_created" validate:"omitempty"`
	DateCompleted *time.Time `json:"date_completed,omitempty" bson:"date_completed,omitempty"`
}

type RenewalRequest struct {
	BookingID string `json:"booking_id" validate:"required,mongodb"`
	Amount    int64  `json:"amount" validate:"required"`
}

// FinanceSummary is the institution-wide cash position derived from the
// ledger. Reused funds are refunds drawn back in through renewals.
type FinanceSummary struct {
	FundsReceived int64 `json:"funds_received"`
	FundsRefunded int64 `json:"funds_refunded"`
	FundsReused   int64 `json:"funds_reused"`
	NetPosition   int64 `json:"net_position"`
	PendingCount  int64 `json:"pending_count"`
}
