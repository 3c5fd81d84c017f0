package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/report-card-api/internal/models"
	"github.com/noah-isme/report-card-api/internal/repository"
	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// overviewInvalidator drops cached overview snapshots after writes.
type overviewInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID string)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateStudent(context.Context, string) {}

// StudentRequest holds the payload for creating or replacing a student.
type StudentRequest struct {
	Name        string       `json:"name" validate:"required,max=100"`
	Email       string       `json:"email" validate:"required,email"`
	DateOfBirth *models.Date `json:"date_of_birth" validate:"required"`
}

// PatchStudentRequest holds a partial student update.
type PatchStudentRequest struct {
	Name        *string      `json:"name" validate:"omitempty,max=100"`
	Email       *string      `json:"email" validate:"omitempty,email"`
	DateOfBirth *models.Date `json:"date_of_birth"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo        studentRepository
	invalidator overviewInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, invalidator overviewInvalidator, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, invalidator: invalidator, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "student")
	}
	student := &models.Student{Name: req.Name, Email: req.Email, DateOfBirth: *req.DateOfBirth}
	if err := s.ensureEmailFree(ctx, student.Email, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, s.writeError(err, student.Email, "failed to create student")
	}
	return student, nil
}

// Update replaces every field of an existing student.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "student")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student.Name = req.Name
	student.Email = req.Email
	student.DateOfBirth = *req.DateOfBirth
	return s.save(ctx, student)
}

// Patch updates only the provided fields.
func (s *StudentService) Patch(ctx context.Context, id string, req PatchStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "student")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		student.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		student.Email = strings.TrimSpace(*req.Email)
	}
	if req.DateOfBirth != nil {
		student.DateOfBirth = *req.DateOfBirth
	}
	if student.Name == "" || student.Email == "" {
		return nil, appErrors.Validation("name and email may not be blank")
	}
	return s.save(ctx, student)
}

func (s *StudentService) save(ctx context.Context, student *models.Student) (*models.Student, error) {
	if err := s.ensureEmailFree(ctx, student.Email, student.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, s.writeError(err, student.Email, "failed to update student")
	}
	s.invalidator.InvalidateStudent(ctx, student.ID)
	return student, nil
}

// Delete removes the student together with its report cards and marks.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.invalidator.InvalidateStudent(ctx, id)
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

func (s *StudentService) ensureEmailFree(ctx context.Context, email, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return duplicateEmail(email)
	}
	return nil
}

func (s *StudentService) writeError(err error, email, message string) error {
	if errors.Is(err, repository.ErrUniqueViolation) {
		return duplicateEmail(email)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func duplicateEmail(email string) *appErrors.Error {
	return appErrors.Validation("student with email %s already exists", email)
}

// newPagination reports the requested window; a zero page size means the whole set.
func newPagination(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = total
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
