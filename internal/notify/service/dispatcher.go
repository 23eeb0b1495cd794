package service

import (
	"context"

	"hostel/pkg/logger"
	"hostel/pkg/model"
)

// Dispatcher attempts delivery on every channel the student has and reports
// the per-channel outcome. Delivery never feeds back into booking or
// finance state.
type Dispatcher interface {
	Deliver(ctx context.Context, student *model.Student, notification *model.Notification) *model.DeliveryResult
}

// LogDispatcher writes deliveries to the log instead of a real provider.
// The channel bookkeeping (missing email, missing phone) is real so the
// stored statuses match what a wired provider would produce.
type LogDispatcher struct {
	log *logger.Logger
}

func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Deliver(ctx context.Context, student *model.Student, notification *model.Notification) *model.DeliveryResult {
	result := &model.DeliveryResult{
		EmailStatus: model.DeliveryNoEmail,
		SMSStatus:   model.DeliveryNoPhone,
	}

	if student.Email != "" {
		d.log.Info("Email dispatched",
			"to", student.Email,
			"subject", notification.Subject,
			"notification_id", notification.ID,
		)
		result.EmailStatus = model.DeliverySent
	}

	if student.Phone != "" {
		d.log.Info("SMS dispatched",
			"to", student.Phone,
			"notification_id", notification.ID,
		)
		result.SMSStatus = model.DeliverySent
	}

	return result
}
