package model

import (
	"fmt"
	"time"
)

// EngineLock is an advisory lock document. Uniqueness of _id serializes the
// critical sections that cannot rely on document-level atomicity: the
// room-capacity check before a booking insert, and the balance read before a
// renewal draw. Locks auto-expire via a TTL index so a crashed holder cannot
// wedge a room.
type EngineLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func RoomLockID(roomID string) string {
	return fmt.Sprintf("room:%s", roomID)
}

func StudentLockID(studentID string) string {
	return fmt.Sprintf("student:%s", studentID)
}
