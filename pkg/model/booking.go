package model

import "time"

const (
	BookingPrebooked = "prebooked"
	BookingPaid      = "paid"
	BookingExpired   = "expired"
)

// ActiveBookingStatuses are the statuses that hold a bed in a room.
var ActiveBookingStatuses = []string{BookingPrebooked, BookingPaid}

type Booking struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	StudentID  string    `json:"student_id" bson:"student_id" validate:"required,mongodb"`
	RoomID     string    `json:"room_id,omitempty" bson:"room_id,omitempty" validate:"omitempty,mongodb"`
	Status     string    `json:"status" bson:"status" validate:"required,oneof=prebooked paid expired"`
	DateBooked time.Time `json:"date_booked" bson:"date_booked" validate:"omitempty"`
	ExpiryDate time.Time `json:"expiry_date" bson:"expiry_date" validate:"omitempty"`
}

// IsActive reports whether the booking still holds a bed.
func (b *Booking) IsActive() bool {
	return b.Status == BookingPrebooked || b.Status == BookingPaid
}

// PrebookRequest is the student-facing reservation request. A zero
// TokenAmount means "use the configured token payment".
type PrebookRequest struct {
	StudentID   string `json:"student_id" validate:"required,mongodb"`
	RoomID      string `json:"room_id" validate:"required,mongodb"`
	TokenAmount int64  `json:"token_amount,omitempty" validate:"omitempty,gt=0"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type ChangeRoomRequest struct {
	NewRoomID string `json:"new_room_id" validate:"required,mongodb"`
}

// BookingResult reports the booking state after an operation, plus any
// ledger amounts the operation generated, for the presentation layer.
type BookingResult struct {
	BookingID      string `json:"booking_id"`
	Status         string `json:"status"`
	RefundAmount   int64  `json:"refund_amount,omitempty"`
	RenewalAmount  int64  `json:"renewal_amount,omitempty"`
	CreditAmount   int64  `json:"credit_amount,omitempty"`
	TotalVerified  int64  `json:"total_verified"`
	TotalTendered  int64  `json:"total_tendered"`
	AlreadySettled bool   `json:"already_settled,omitempty"`
}

// DashboardSummary is the student's home view: active booking, payment
// progress (all tendered money over price, per display policy) and the
// unread notice count.
type DashboardSummary struct {
	Student       Student  `json:"student"`
	Booking       *Booking `json:"booking,omitempty"`
	TotalDue      int64    `json:"total_due"`
	TotalTendered int64    `json:"total_tendered"`
	Remaining     int64    `json:"remaining"`
	ProgressPct   int      `json:"progress_pct"`
	UnreadNotices int64    `json:"unread_notices"`
	Balance       int64    `json:"balance"`
}
