package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	notifyerrors "hostel/internal/notify/errors"
	studenterrors "hostel/internal/student/errors"
	"hostel/pkg/kafka"
	"hostel/pkg/logger"
	"hostel/pkg/model"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
}

type mockNotificationRepo struct {
	createFunc               func(ctx context.Context, n *model.Notification) error
	updateDeliveryStatusFunc func(ctx context.Context, id string, result *model.DeliveryResult) error
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, n)
	}
	return nil
}

func (m *mockNotificationRepo) FindByStudent(ctx context.Context, studentID string, limit int, offset int64) ([]*model.Notification, error) {
	return nil, nil
}

func (m *mockNotificationRepo) CountByStudent(ctx context.Context, studentID string) (int64, error) {
	return 0, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, studentID string) (int64, error) {
	return 0, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id string) error { return nil }

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, studentID string) (int64, error) {
	return 0, nil
}

func (m *mockNotificationRepo) UpdateDeliveryStatus(ctx context.Context, id string, result *model.DeliveryResult) error {
	if m.updateDeliveryStatusFunc != nil {
		return m.updateDeliveryStatusFunc(ctx, id, result)
	}
	return nil
}

type mockStudentRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Student, error)
}

func (m *mockStudentRepo) Create(ctx context.Context, student *model.Student) error { return nil }

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*model.Student, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockStudentRepo) FindByRegNo(ctx context.Context, regNo string) (*model.Student, error) {
	return nil, nil
}

func (m *mockStudentRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Student, error) {
	return nil, nil
}

func (m *mockStudentRepo) Count(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockStudentRepo) UpdateProfile(ctx context.Context, id string, update *model.StudentProfileUpdate) error {
	return nil
}

func intentMessage(t *testing.T, intent model.NotificationIntent) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(intent)
	if err != nil {
		t.Fatalf("failed to marshal intent: %v", err)
	}
	return kafka.Message{Value: payload}
}

func TestLogDispatcher_ReportsChannelAvailability(t *testing.T) {
	dispatcher := NewLogDispatcher(testLogger())
	notification := &model.Notification{ID: "n1", Subject: "Booking Confirmation", Message: "Room booked"}

	tests := []struct {
		name      string
		student   *model.Student
		wantEmail string
		wantSMS   string
	}{
		{
			"both channels",
			&model.Student{Email: "a@example.com", Phone: "+254712345678"},
			model.DeliverySent, model.DeliverySent,
		},
		{
			"email only",
			&model.Student{Email: "a@example.com"},
			model.DeliverySent, model.DeliveryNoPhone,
		},
		{
			"phone only",
			&model.Student{Phone: "+254712345678"},
			model.DeliveryNoEmail, model.DeliverySent,
		},
		{
			"no channels",
			&model.Student{},
			model.DeliveryNoEmail, model.DeliveryNoPhone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := dispatcher.Deliver(context.Background(), tt.student, notification)
			if result.EmailStatus != tt.wantEmail {
				t.Errorf("email status: got %q, want %q", result.EmailStatus, tt.wantEmail)
			}
			if result.SMSStatus != tt.wantSMS {
				t.Errorf("sms status: got %q, want %q", result.SMSStatus, tt.wantSMS)
			}
		})
	}
}

func TestIntentHandler_DeliversAndRecordsStatus(t *testing.T) {
	var recorded *model.DeliveryResult
	repo := &mockNotificationRepo{
		updateDeliveryStatusFunc: func(ctx context.Context, id string, result *model.DeliveryResult) error {
			if id != "64f000000000000000000010" {
				t.Errorf("unexpected notification id: %s", id)
			}
			recorded = result
			return nil
		},
	}
	students := &mockStudentRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Student, error) {
			return &model.Student{ID: id, Email: "a@example.com"}, nil
		},
	}

	handler := NewIntentHandler(repo, students, NewLogDispatcher(testLogger()), testLogger())

	msg := intentMessage(t, model.NotificationIntent{
		NotificationID: "64f000000000000000000010",
		StudentID:      "64f000000000000000000001",
		Subject:        "Payment Complete",
		Message:        "Room 01 is fully paid.",
	})

	if err := handler.Handle(context.Background(), msg); err != nil {
		t.Fatalf("expected handle to succeed, got: %v", err)
	}
	if recorded == nil {
		t.Fatal("expected delivery status to be recorded")
	}
	if recorded.EmailStatus != model.DeliverySent || recorded.SMSStatus != model.DeliveryNoPhone {
		t.Errorf("unexpected delivery result: %+v", recorded)
	}
}

func TestIntentHandler_MalformedPayloadIsPermanent(t *testing.T) {
	handler := NewIntentHandler(&mockNotificationRepo{}, &mockStudentRepo{}, NewLogDispatcher(testLogger()), testLogger())

	err := handler.Handle(context.Background(), kafka.Message{Value: []byte("not json")})
	if err == nil {
		t.Fatal("expected malformed payload to fail")
	}
	if kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("expected permanent classification, got: %v", err)
	}
}

func TestIntentHandler_MissingFieldsArePermanent(t *testing.T) {
	handler := NewIntentHandler(&mockNotificationRepo{}, &mockStudentRepo{}, NewLogDispatcher(testLogger()), testLogger())

	msg := intentMessage(t, model.NotificationIntent{Subject: "No IDs"})
	err := handler.Handle(context.Background(), msg)
	if err == nil {
		t.Fatal("expected intent without IDs to fail")
	}
	if kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("expected permanent classification, got: %v", err)
	}
}

func TestIntentHandler_UnknownStudentIsPermanent(t *testing.T) {
	students := &mockStudentRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Student, error) {
			return nil, studenterrors.ErrNotFound
		},
	}
	handler := NewIntentHandler(&mockNotificationRepo{}, students, NewLogDispatcher(testLogger()), testLogger())

	msg := intentMessage(t, model.NotificationIntent{
		NotificationID: "64f000000000000000000010",
		StudentID:      "64f000000000000000000001",
	})

	err := handler.Handle(context.Background(), msg)
	if err == nil {
		t.Fatal("expected unknown student to fail")
	}
	if kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("expected permanent classification, got: %v", err)
	}
}

func TestIntentHandler_StoreFailuresAreTransient(t *testing.T) {
	students := &mockStudentRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Student, error) {
			return nil, errors.New("server selection timeout")
		},
	}
	handler := NewIntentHandler(&mockNotificationRepo{}, students, NewLogDispatcher(testLogger()), testLogger())

	msg := intentMessage(t, model.NotificationIntent{
		NotificationID: "64f000000000000000000010",
		StudentID:      "64f000000000000000000001",
	})

	err := handler.Handle(context.Background(), msg)
	if err == nil {
		t.Fatal("expected store failure to surface")
	}
	if kafka.ClassifyError(err) != kafka.ErrorTypeTransient {
		t.Errorf("expected transient classification, got: %v", err)
	}
}

func TestIntentHandler_StatusWriteFailureIsTransient(t *testing.T) {
	repo := &mockNotificationRepo{
		updateDeliveryStatusFunc: func(ctx context.Context, id string, result *model.DeliveryResult) error {
			return notifyerrors.ErrNotFound
		},
	}
	students := &mockStudentRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Student, error) {
			return &model.Student{ID: id, Phone: "+254712345678"}, nil
		},
	}
	handler := NewIntentHandler(repo, students, NewLogDispatcher(testLogger()), testLogger())

	msg := intentMessage(t, model.NotificationIntent{
		NotificationID: "64f000000000000000000010",
		StudentID:      "64f000000000000000000001",
	})

	err := handler.Handle(context.Background(), msg)
	if err == nil {
		t.Fatal("expected status write failure to surface")
	}
	if kafka.ClassifyError(err) != kafka.ErrorTypeTransient {
		t.Errorf("expected transient classification, got: %v", err)
	}
}
