package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/report-card-api/internal/models"
	"github.com/noah-isme/report-card-api/internal/repository"
	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
)

type markRepository interface {
	List(ctx context.Context, filter models.MarkFilter) ([]models.MarkDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Mark, error)
	FindDetailByID(ctx context.Context, id string) (*models.MarkDetail, error)
	ExistsForSubject(ctx context.Context, reportCardID, subjectID string, excludeID string) (bool, error)
	Create(ctx context.Context, mark *models.Mark) error
	Update(ctx context.Context, mark *models.Mark) error
	Delete(ctx context.Context, id string) error
}

type reportCardReader interface {
	FindByID(ctx context.Context, id string) (*models.ReportCard, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// MarkRequest holds the payload for creating or replacing a mark.
type MarkRequest struct {
	ReportCardID string        `json:"report_card" validate:"required"`
	SubjectID    string        `json:"subject" validate:"required"`
	Score        *models.Score `json:"score" validate:"required"`
}

// PatchMarkRequest holds a partial mark update.
type PatchMarkRequest struct {
	ReportCardID *string       `json:"report_card"`
	SubjectID    *string       `json:"subject"`
	Score        *models.Score `json:"score"`
}

// MarkService manages subject marks on report cards.
type MarkService struct {
	repo        markRepository
	cards       reportCardReader
	subjects    subjectReader
	invalidator overviewInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMarkService constructs a MarkService.
func NewMarkService(repo markRepository, cards reportCardReader, subjects subjectReader, invalidator overviewInvalidator, validate *validator.Validate, logger *zap.Logger) *MarkService {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkService{repo: repo, cards: cards, subjects: subjects, invalidator: invalidator, validator: validate, logger: logger}
}

// List returns marks with subjects nested.
func (s *MarkService) List(ctx context.Context, filter models.MarkFilter) ([]models.MarkDetail, *models.Pagination, error) {
	marks, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}
	return marks, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a mark with its subject nested.
func (s *MarkService) Get(ctx context.Context, id string) (*models.MarkDetail, error) {
	mark, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mark not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark")
	}
	return mark, nil
}

// Create records a mark; a report card holds at most one mark per subject.
func (s *MarkService) Create(ctx context.Context, req MarkRequest) (*models.Mark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "mark")
	}
	mark := &models.Mark{ReportCardID: req.ReportCardID, SubjectID: req.SubjectID, Score: *req.Score}
	card, err := s.validate(ctx, mark)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, mark); err != nil {
		return nil, s.writeError(err, "failed to create mark")
	}
	s.invalidator.InvalidateStudent(ctx, card.StudentID)
	return mark, nil
}

// Update replaces every field of a mark.
func (s *MarkService) Update(ctx context.Context, id string, req MarkRequest) (*models.Mark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "mark")
	}
	mark, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	previousCard := mark.ReportCardID
	mark.ReportCardID = req.ReportCardID
	mark.SubjectID = req.SubjectID
	mark.Score = *req.Score
	return s.save(ctx, mark, previousCard)
}

// Patch updates only the provided fields.
func (s *MarkService) Patch(ctx context.Context, id string, req PatchMarkRequest) (*models.Mark, error) {
	mark, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	previousCard := mark.ReportCardID
	if req.ReportCardID != nil {
		mark.ReportCardID = *req.ReportCardID
	}
	if req.SubjectID != nil {
		mark.SubjectID = *req.SubjectID
	}
	if req.Score != nil {
		mark.Score = *req.Score
	}
	return s.save(ctx, mark, previousCard)
}

func (s *MarkService) save(ctx context.Context, mark *models.Mark, previousCard string) (*models.Mark, error) {
	card, err := s.validate(ctx, mark)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, mark); err != nil {
		return nil, s.writeError(err, "failed to update mark")
	}
	s.invalidator.InvalidateStudent(ctx, card.StudentID)
	if previousCard != mark.ReportCardID {
		s.invalidateCardOwner(ctx, previousCard)
	}
	return mark, nil
}

// Delete removes a mark.
func (s *MarkService) Delete(ctx context.Context, id string) error {
	mark, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "mark not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete mark")
	}
	s.invalidateCardOwner(ctx, mark.ReportCardID)
	return nil
}

func (s *MarkService) find(ctx context.Context, id string) (*models.Mark, error) {
	mark, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mark not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark")
	}
	return mark, nil
}

func (s *MarkService) validate(ctx context.Context, mark *models.Mark) (*models.ReportCard, error) {
	if err := mark.Score.Validate(); err != nil {
		return nil, appErrors.Validation("score: %s", err.Error())
	}
	card, err := s.cards.FindByID(ctx, mark.ReportCardID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Validation("report card %s does not exist", mark.ReportCardID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
	}
	if _, err := s.subjects.FindByID(ctx, mark.SubjectID); err != nil {
		if isNoRows(err) {
			return nil, appErrors.Validation("subject %s does not exist", mark.SubjectID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	exists, err := s.repo.ExistsForSubject(ctx, mark.ReportCardID, mark.SubjectID, mark.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate mark subject")
	}
	if exists {
		return nil, duplicateMark()
	}
	return card, nil
}

func (s *MarkService) invalidateCardOwner(ctx context.Context, reportCardID string) {
	card, err := s.cards.FindByID(ctx, reportCardID)
	if err != nil {
		s.logger.Warn("failed to resolve report card for cache invalidation", zap.String("report_card_id", reportCardID), zap.Error(err))
		return
	}
	s.invalidator.InvalidateStudent(ctx, card.StudentID)
}

func (s *MarkService) writeError(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrUniqueViolation):
		return duplicateMark()
	case errors.Is(err, repository.ErrForeignKeyViolation):
		return appErrors.Validation("report card or subject does not exist")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

func duplicateMark() *appErrors.Error {
	return appErrors.Clone(appErrors.ErrConflict, "a mark for this subject already exists on the report card")
}
