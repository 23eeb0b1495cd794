package model

const (
	RoomClassType1   = "Type 1"
	RoomClassEnsuite = "Ensuite"
	RoomClassRegular = "Regular"
)

type Hostel struct {
	ID          string `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name        string `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Gender      string `json:"gender" bson:"gender" validate:"required,oneof=Male Female"`
	Class       string `json:"class" bson:"class" validate:"required,oneof='Type 1' Ensuite Regular"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// Room belongs to exactly one hostel. IsVacant is a derived cache: true iff
// the count of active bookings (prebooked or paid) is below capacity. It is
// recomputed inside every transaction that changes a booking-room linkage,
// never written independently.
type Room struct {
	ID          string `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	HostelID    string `json:"hostel_id" bson:"hostel_id" validate:"required,mongodb"`
	Number      string `json:"number" bson:"number" validate:"required,max=10"`
	Capacity    int64  `json:"capacity" bson:"capacity" validate:"required,min=1"`
	Price       int64  `json:"price" bson:"price" validate:"required,gt=0"`
	IsVacant    bool   `json:"is_vacant" bson:"is_vacant"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// RoomDetail is the read-side view of a room with its live occupancy.
type RoomDetail struct {
	Room     Room   `json:"room"`
	Hostel   Hostel `json:"hostel"`
	Occupied int64  `json:"occupied"`
}
