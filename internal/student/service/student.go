package service

import (
	"context"
	"errors"
	"sync"

	studenterrors "hostel/internal/student/errors"
	"hostel/internal/student/repository"
	"hostel/internal/student/validator"
	"hostel/pkg/config"
	apperrors "hostel/pkg/errors"
	"hostel/pkg/model"
)

type StudentService interface {
	Register(ctx context.Context, student *model.Student) error
	GetByID(ctx context.Context, id string) (*model.Student, error)
	GetByRegNo(ctx context.Context, regNo string) (*model.Student, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Student, int64, error)
	UpdateProfile(ctx context.Context, id string, update *model.StudentProfileUpdate) error
}

type studentService struct {
	repo      repository.StudentRepository
	validator *validator.StudentValidator
	cfg       *config.Config
}

func NewStudentService(
	repo repository.StudentRepository,
	validator *validator.StudentValidator,
	cfg *config.Config,
) StudentService {
	return &studentService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *studentService) Register(ctx context.Context, student *model.Student) error {
	if err := s.validator.Validate(student); err != nil {
		s.cfg.Log.Warn("Student validation failed", "reg_no", student.RegNo, "error", err)
		return apperrors.Validation("Student validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, studenterrors.ErrDuplicateRegNo) {
			return apperrors.Conflict("A student with this registration number already exists")
		}
		s.cfg.Log.Error("Failed to register student", "reg_no", student.RegNo, "error", err)
		return apperrors.Internal("Failed to register student", err)
	}

	s.cfg.Log.Info("Student registered", "id", student.ID, "reg_no", student.RegNo)
	return nil
}

func (s *studentService) GetByID(ctx context.Context, id string) (*model.Student, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Student ID cannot be empty")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, studenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Student", id)
		}
		if errors.Is(err, studenterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid student ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve student", err)
	}

	return student, nil
}

func (s *studentService) GetByRegNo(ctx context.Context, regNo string) (*model.Student, error) {
	if regNo == "" {
		return nil, apperrors.InvalidInput("Registration number cannot be empty")
	}

	student, err := s.repo.FindByRegNo(ctx, regNo)
	if err != nil {
		if errors.Is(err, studenterrors.ErrNotFound) {
			return nil, apperrors.NotFound("Student")
		}
		return nil, apperrors.Internal("Failed to retrieve student", err)
	}

	return student, nil
}

func (s *studentService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Student, int64, error) {
	var count int64
	var students []*model.Student
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count students", "error", errCount)
			errCount = apperrors.Internal("Failed to count students", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		students, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list students", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve students", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return students, count, nil
}

func (s *studentService) UpdateProfile(ctx context.Context, id string, update *model.StudentProfileUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Student ID cannot be empty")
	}

	if err := s.validator.ValidateProfileUpdate(update); err != nil {
		s.cfg.Log.Warn("Profile update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid profile update", map[string]any{"error": err.Error()})
	}

	if err := s.repo.UpdateProfile(ctx, id, update); err != nil {
		if errors.Is(err, studenterrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Student", id)
		}
		if errors.Is(err, studenterrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid student ID format")
		}
		return apperrors.Internal("Failed to update student profile", err)
	}

	s.cfg.Log.Info("Student profile updated", "id", id)
	return nil
}
