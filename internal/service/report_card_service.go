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

type reportCardRepository interface {
	List(ctx context.Context, filter models.ReportCardFilter) ([]models.ReportCard, int, error)
	FindByID(ctx context.Context, id string) (*models.ReportCard, error)
	ExistsForTerm(ctx context.Context, studentID, term string, year int, excludeID string) (bool, error)
	Create(ctx context.Context, card *models.ReportCard) error
	Update(ctx context.Context, card *models.ReportCard) error
	Delete(ctx context.Context, id string) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type reportCardMarksReader interface {
	MarksForReportCards(ctx context.Context, reportCardIDs []string) ([]models.MarkDetail, error)
}

// ReportCardRequest holds the payload for creating or replacing a report card.
type ReportCardRequest struct {
	StudentID string `json:"student" validate:"required"`
	Term      string `json:"term" validate:"required,max=100"`
	Year      *int   `json:"year" validate:"required"`
}

// PatchReportCardRequest holds a partial report card update.
type PatchReportCardRequest struct {
	StudentID *string `json:"student"`
	Term      *string `json:"term" validate:"omitempty,max=100"`
	Year      *int    `json:"year"`
}

// ReportCardService manages report cards and guards the one-card-per-term rule.
type ReportCardService struct {
	repo        reportCardRepository
	students    studentReader
	marks       reportCardMarksReader
	invalidator overviewInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReportCardService constructs a ReportCardService.
func NewReportCardService(repo reportCardRepository, students studentReader, marks reportCardMarksReader, invalidator overviewInvalidator, validate *validator.Validate, logger *zap.Logger) *ReportCardService {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCardService{repo: repo, students: students, marks: marks, invalidator: invalidator, validator: validate, logger: logger}
}

// List returns report cards matching the filter with marks and students nested.
func (s *ReportCardService) List(ctx context.Context, filter models.ReportCardFilter) ([]models.ReportCardDetail, *models.Pagination, error) {
	cards, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report cards")
	}
	details, err := s.nest(ctx, cards)
	if err != nil {
		return nil, nil, err
	}
	return details, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a report card by id with its marks and student nested.
func (s *ReportCardService) Get(ctx context.Context, id string) (*models.ReportCardDetail, error) {
	card, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := s.nest(ctx, []models.ReportCard{*card})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// Detail serves the singular report-card route; it shares the Get payload.
func (s *ReportCardService) Detail(ctx context.Context, id string) (*models.ReportCardDetail, error) {
	return s.Get(ctx, id)
}

func (s *ReportCardService) find(ctx context.Context, id string) (*models.ReportCard, error) {
	card, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
	}
	return card, nil
}

// nest attaches marks in a single batch and each distinct student once.
func (s *ReportCardService) nest(ctx context.Context, cards []models.ReportCard) ([]models.ReportCardDetail, error) {
	details := make([]models.ReportCardDetail, 0, len(cards))
	if len(cards) == 0 {
		return details, nil
	}
	ids := make([]string, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.ID)
	}
	marks, err := s.marks.MarksForReportCards(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card marks")
	}
	byCard := make(map[string][]models.MarkDetail, len(cards))
	for _, mark := range marks {
		byCard[mark.ReportCardID] = append(byCard[mark.ReportCardID], mark)
	}
	students := make(map[string]*models.Student)
	for _, card := range cards {
		student, ok := students[card.StudentID]
		if !ok {
			student, err = s.students.FindByID(ctx, card.StudentID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card student")
			}
			students[card.StudentID] = student
		}
		cardMarks := byCard[card.ID]
		if cardMarks == nil {
			cardMarks = make([]models.MarkDetail, 0)
		}
		details = append(details, models.ReportCardDetail{ReportCard: card, Marks: cardMarks, StudentDetail: student})
	}
	return details, nil
}

// Create registers a report card after checking the student has none for the term and year.
func (s *ReportCardService) Create(ctx context.Context, req ReportCardRequest) (*models.ReportCard, error) {
	req.Term = strings.TrimSpace(req.Term)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "report card")
	}
	card := &models.ReportCard{StudentID: req.StudentID, Term: req.Term, Year: *req.Year}
	if err := s.validate(ctx, card); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, card); err != nil {
		return nil, s.writeError(err, card, "failed to create report card")
	}
	s.invalidator.InvalidateStudent(ctx, card.StudentID)
	return card, nil
}

// Update replaces every field of a report card.
func (s *ReportCardService) Update(ctx context.Context, id string, req ReportCardRequest) (*models.ReportCard, error) {
	req.Term = strings.TrimSpace(req.Term)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "report card")
	}
	card, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	previousStudent := card.StudentID
	card.StudentID = req.StudentID
	card.Term = req.Term
	card.Year = *req.Year
	return s.save(ctx, card, previousStudent)
}

// Patch updates only the provided fields.
func (s *ReportCardService) Patch(ctx context.Context, id string, req PatchReportCardRequest) (*models.ReportCard, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "report card")
	}
	card, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	previousStudent := card.StudentID
	if req.StudentID != nil {
		card.StudentID = *req.StudentID
	}
	if req.Term != nil {
		card.Term = strings.TrimSpace(*req.Term)
	}
	if req.Year != nil {
		card.Year = *req.Year
	}
	if card.StudentID == "" || card.Term == "" {
		return nil, appErrors.Validation("student and term may not be blank")
	}
	return s.save(ctx, card, previousStudent)
}

func (s *ReportCardService) save(ctx context.Context, card *models.ReportCard, previousStudent string) (*models.ReportCard, error) {
	if err := s.validate(ctx, card); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, card); err != nil {
		return nil, s.writeError(err, card, "failed to update report card")
	}
	s.invalidator.InvalidateStudent(ctx, card.StudentID)
	if previousStudent != card.StudentID {
		s.invalidator.InvalidateStudent(ctx, previousStudent)
	}
	return card, nil
}

// Delete removes a report card and its marks.
func (s *ReportCardService) Delete(ctx context.Context, id string) error {
	card, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete report card")
	}
	s.invalidator.InvalidateStudent(ctx, card.StudentID)
	return nil
}

// validate checks the referenced student and the case-insensitive term uniqueness.
// The unique index remains the final guard against concurrent inserts.
func (s *ReportCardService) validate(ctx context.Context, card *models.ReportCard) error {
	if _, err := s.students.FindByID(ctx, card.StudentID); err != nil {
		if isNoRows(err) {
			return appErrors.Validation("student %s does not exist", card.StudentID)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exists, err := s.repo.ExistsForTerm(ctx, card.StudentID, card.Term, card.Year, card.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate report card term")
	}
	if exists {
		return duplicateReportCard(card)
	}
	return nil
}

func (s *ReportCardService) writeError(err error, card *models.ReportCard, message string) error {
	switch {
	case errors.Is(err, repository.ErrUniqueViolation):
		return duplicateReportCard(card)
	case errors.Is(err, repository.ErrForeignKeyViolation):
		return appErrors.Validation("student %s does not exist", card.StudentID)
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

func duplicateReportCard(card *models.ReportCard) *appErrors.Error {
	return appErrors.Validation("report card for student %s for %s %d already exists", card.StudentID, card.Term, card.Year)
}
