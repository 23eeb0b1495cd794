package service

import (
	"context"
	"errors"

	"hostel/internal/notify/repository"
	studenterrors "hostel/internal/student/errors"
	studentrepo "hostel/internal/student/repository"
	"hostel/pkg/kafka"
	"hostel/pkg/logger"
	"hostel/pkg/model"
)

// IntentHandler consumes notification intents and drives delivery. Errors
// are classified so the consumer retries broker or database hiccups but
// routes malformed or unresolvable intents straight to the DLQ.
type IntentHandler struct {
	repo        repository.NotificationRepository
	studentRepo studentrepo.StudentRepository
	dispatcher  Dispatcher
	log         *logger.Logger
}

func NewIntentHandler(
	repo repository.NotificationRepository,
	studentRepo studentrepo.StudentRepository,
	dispatcher Dispatcher,
	log *logger.Logger,
) *IntentHandler {
	return &IntentHandler{
		repo:        repo,
		studentRepo: studentRepo,
		dispatcher:  dispatcher,
		log:         log,
	}
}

// Handle implements kafka.MessageHandler.
func (h *IntentHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var intent model.NotificationIntent
	if err := msg.DecodeValue(&intent); err != nil {
		return kafka.NewPermanentError("failed to decode notification intent", err)
	}
	if intent.NotificationID == "" || intent.StudentID == "" {
		return kafka.NewPermanentError("notification intent missing required fields", nil)
	}

	student, err := h.studentRepo.FindByID(ctx, intent.StudentID)
	if err != nil {
		if errors.Is(err, studenterrors.ErrNotFound) || errors.Is(err, studenterrors.ErrInvalidID) {
			return kafka.NewPermanentError("student for notification intent not found", err)
		}
		return kafka.NewTransientError("failed to load student for notification intent", err)
	}

	notification := &model.Notification{
		ID:      intent.NotificationID,
		Subject: intent.Subject,
		Message: intent.Message,
	}

	result := h.dispatcher.Deliver(ctx, student, notification)

	if err := h.repo.UpdateDeliveryStatus(ctx, intent.NotificationID, result); err != nil {
		return kafka.NewTransientError("failed to record delivery status", err)
	}

	h.log.Info("Notification delivered",
		"notification_id", intent.NotificationID,
		"student_id", intent.StudentID,
		"email_status", result.EmailStatus,
		"sms_status", result.SMSStatus,
	)

	return nil
}
