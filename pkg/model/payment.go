package model

import "time"

const (
	PaymentPrepayment = "prepayment"
	PaymentFull       = "full"
)

// Payment is an append-only record of money tendered against a booking.
// Rows are never deleted or mutated except the one-way verified flip.
type Payment struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	BookingID   string    `json:"booking_id" bson:"booking_id" validate:"required,mongodb"`
	Amount      int64     `json:"amount" bson:"amount" validate:"required,gt=0"`
	PaymentType string    `json:"payment_type" bson:"payment_type" validate:"required,oneof=prepayment full"`
	Verified    bool      `json:"verified" bson:"verified"`
	Reference   string    `json:"reference" bson:"reference" validate:"omitempty,uuid4"`
	DatePaid    time.Time `json:"date_paid" bson:"date_paid" validate:"omitempty"`
}

type PaymentRequest struct {
	BookingID   string `json:"booking_id" validate:"required,mongodb"`
	Amount      int64  `json:"amount" validate:"required"`
	PaymentType string `json:"payment_type,omitempty" validate:"omitempty,oneof=prepayment full"`
	Verified    bool   `json:"verified,omitempty"`
}

// PaymentResult reports the payment row plus the booking status it produced.
type PaymentResult struct {
	Payment       *Payment `json:"payment,omitempty"`
	BookingStatus string   `json:"booking_status"`
	TotalVerified int64    `json:"total_verified"`
	TotalDue      int64    `json:"total_due"`
	CreditAmount  int64    `json:"credit_amount,omitempty"`
	Settled       bool     `json:"settled"`
}
