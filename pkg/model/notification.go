package model

import "time"

const (
	DeliveryPending = "Pending"
	DeliverySent    = "Sent"
	DeliveryFailed  = "Failed"
	DeliveryNoEmail = "No Email"
	DeliveryNoPhone = "No Phone"
)

// Notification is the stored copy of a message sent to a student, with
// per-channel delivery status filled in by the notifier once dispatch has
// been attempted. Delivery state never feeds back into booking or finance
// state.
type Notification struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	StudentID   string    `json:"student_id" bson:"student_id" validate:"required,mongodb"`
	Subject     string    `json:"subject" bson:"subject" validate:"required,max=200"`
	Message     string    `json:"message" bson:"message" validate:"required"`
	IsRead      bool      `json:"is_read" bson:"is_read"`
	EmailStatus string    `json:"email_status" bson:"email_status"`
	SMSStatus   string    `json:"sms_status" bson:"sms_status"`
	DateSent    time.Time `json:"date_sent" bson:"date_sent"`
}

// NotificationIntent is the payload published to the notification topic
// after a state transition commits.
type NotificationIntent struct {
	NotificationID string `json:"notification_id"`
	StudentID      string `json:"student_id"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
}

// DeliveryResult is what a Dispatcher reports back per channel.
type DeliveryResult struct {
	EmailStatus string `json:"email_status"`
	SMSStatus   string `json:"sms_status"`
}
