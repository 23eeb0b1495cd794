package service

import (
	"context"

	"hostel/internal/notify/repository"
	"hostel/pkg/kafka"
	"hostel/pkg/logger"
	"hostel/pkg/model"
)

// Emitter persists a notification and publishes its delivery intent. Called
// after a booking or payment transaction commits; both the store and the
// publish are fire-and-forget and only ever logged, so a broker outage can
// never fail a booking.
type Emitter interface {
	Emit(ctx context.Context, studentID, subject, message string)
}

type kafkaEmitter struct {
	repo     repository.NotificationRepository
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaEmitter(repo repository.NotificationRepository, producer *kafka.Producer, log *logger.Logger) Emitter {
	return &kafkaEmitter{
		repo:     repo,
		producer: producer,
		log:      log,
	}
}

func (e *kafkaEmitter) Emit(ctx context.Context, studentID, subject, message string) {
	notification := &model.Notification{
		StudentID: studentID,
		Subject:   subject,
		Message:   message,
	}

	if err := e.repo.Create(ctx, notification); err != nil {
		e.log.Error("Failed to store notification", "student_id", studentID, "subject", subject, "error", err)
		return
	}

	if e.producer == nil {
		e.log.Debug("No notification producer configured, skipping publish", "notification_id", notification.ID)
		return
	}

	intent := model.NotificationIntent{
		NotificationID: notification.ID,
		StudentID:      studentID,
		Subject:        subject,
		Message:        message,
	}

	// Keyed by student so one student's notices stay ordered.
	msg := kafka.NewMessage().
		WithKey(studentID).
		WithValue(intent).
		WithEventType("notification.intent").
		WithSource("hostel-api").
		Build()

	if err := e.producer.Publish(ctx, msg); err != nil {
		e.log.Error("Failed to publish notification intent",
			"notification_id", notification.ID,
			"student_id", studentID,
			"error", err,
		)
		return
	}

	e.log.Info("Notification intent published",
		"notification_id", notification.ID,
		"student_id", studentID,
		"subject", subject,
	)
}

// nopEmitter drops notices; used by one-shot tools that have no broker.
type nopEmitter struct{}

func NewNopEmitter() Emitter {
	return nopEmitter{}
}

func (nopEmitter) Emit(context.Context, string, string, string) {}
