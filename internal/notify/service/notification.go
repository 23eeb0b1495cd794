package service

import (
	"context"
	"errors"
	"sync"

	notifyerrors "hostel/internal/notify/errors"
	"hostel/internal/notify/repository"
	"hostel/pkg/config"
	apperrors "hostel/pkg/errors"
	"hostel/pkg/model"
)

type NotificationService interface {
	ListByStudent(ctx context.Context, studentID string, limit int, offset int64) ([]*model.Notification, int64, error)
	UnreadCount(ctx context.Context, studentID string) (int64, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, studentID string) (int64, error)
}

type notificationService struct {
	repo repository.NotificationRepository
	cfg  *config.Config
}

func NewNotificationService(repo repository.NotificationRepository, cfg *config.Config) NotificationService {
	return &notificationService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *notificationService) ListByStudent(ctx context.Context, studentID string, limit int, offset int64) ([]*model.Notification, int64, error) {
	if studentID == "" {
		return nil, 0, apperrors.InvalidInput("Student ID cannot be empty")
	}

	var count int64
	var notifications []*model.Notification
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByStudent(ctx, studentID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count notifications", "student_id", studentID, "error", errCount)
			errCount = apperrors.Internal("Failed to count notifications", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		notifications, errFind = s.repo.FindByStudent(ctx, studentID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list notifications", "student_id", studentID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve notifications", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return notifications, count, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, studentID string) (int64, error) {
	if studentID == "" {
		return 0, apperrors.InvalidInput("Student ID cannot be empty")
	}

	count, err := s.repo.CountUnread(ctx, studentID)
	if err != nil {
		return 0, apperrors.Internal("Failed to count unread notifications", err)
	}

	return count, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Notification ID cannot be empty")
	}

	if err := s.repo.MarkRead(ctx, id); err != nil {
		if errors.Is(err, notifyerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Notification", id)
		}
		if errors.Is(err, notifyerrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid notification ID format")
		}
		return apperrors.Internal("Failed to mark notification read", err)
	}

	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, studentID string) (int64, error) {
	if studentID == "" {
		return 0, apperrors.InvalidInput("Student ID cannot be empty")
	}

	updated, err := s.repo.MarkAllRead(ctx, studentID)
	if err != nil {
		return 0, apperrors.Internal("Failed to mark notifications read", err)
	}

	return updated, nil
}
