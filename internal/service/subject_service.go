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

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
	StudentIDsForSubject(ctx context.Context, id string) ([]string, error)
}

// SubjectRequest holds the payload for creating or replacing a subject.
type SubjectRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Code string `json:"code" validate:"required,max=20"`
}

// PatchSubjectRequest holds a partial subject update.
type PatchSubjectRequest struct {
	Name *string `json:"name" validate:"omitempty,max=100"`
	Code *string `json:"code" validate:"omitempty,max=20"`
}

// SubjectService provides subject business logic.
type SubjectService struct {
	repo        subjectRepository
	invalidator overviewInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, invalidator overviewInvalidator, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, invalidator: invalidator, validator: validate, logger: logger}
}

// List returns subjects matching the filter.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create registers a new subject.
func (s *SubjectService) Create(ctx context.Context, req SubjectRequest) (*models.Subject, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.TrimSpace(req.Code)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "subject")
	}
	subject := &models.Subject{Name: req.Name, Code: req.Code}
	if err := s.ensureCodeFree(ctx, subject.Code, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, s.writeError(err, subject.Code, "failed to create subject")
	}
	return subject, nil
}

// Update replaces every field of a subject.
func (s *SubjectService) Update(ctx context.Context, id string, req SubjectRequest) (*models.Subject, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.TrimSpace(req.Code)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "subject")
	}
	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	subject.Name = req.Name
	subject.Code = req.Code
	return s.save(ctx, subject)
}

// Patch updates only the provided fields.
func (s *SubjectService) Patch(ctx context.Context, id string, req PatchSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "subject")
	}
	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		subject.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		subject.Code = strings.TrimSpace(*req.Code)
	}
	if subject.Name == "" || subject.Code == "" {
		return nil, appErrors.Validation("name and code may not be blank")
	}
	return s.save(ctx, subject)
}

func (s *SubjectService) save(ctx context.Context, subject *models.Subject) (*models.Subject, error) {
	if err := s.ensureCodeFree(ctx, subject.Code, subject.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, s.writeError(err, subject.Code, "failed to update subject")
	}
	// Overviews embed subject names.
	s.invalidateHolders(ctx, subject.ID)
	return subject, nil
}

// Delete removes a subject and every mark recorded against it.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	holders, err := s.repo.StudentIDsForSubject(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	for _, studentID := range holders {
		s.invalidator.InvalidateStudent(ctx, studentID)
	}
	return nil
}

func (s *SubjectService) invalidateHolders(ctx context.Context, subjectID string) {
	holders, err := s.repo.StudentIDsForSubject(ctx, subjectID)
	if err != nil {
		s.logger.Warn("failed to resolve students for cache invalidation", zap.String("subject_id", subjectID), zap.Error(err))
		return
	}
	for _, studentID := range holders {
		s.invalidator.InvalidateStudent(ctx, studentID)
	}
}

func (s *SubjectService) ensureCodeFree(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate subject code")
	}
	if exists {
		return appErrors.Validation("subject with code %s already exists", code)
	}
	return nil
}

func (s *SubjectService) writeError(err error, code, message string) error {
	if errors.Is(err, repository.ErrUniqueViolation) {
		return appErrors.Validation("subject with code %s already exists", code)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
