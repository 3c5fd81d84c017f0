package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/report-card-api/internal/models"
)

// ReportCardRepository handles report card persistence.
type ReportCardRepository struct {
	db *sqlx.DB
}

// NewReportCardRepository constructs a ReportCardRepository.
func NewReportCardRepository(db *sqlx.DB) *ReportCardRepository {
	return &ReportCardRepository{db: db}
}

const reportCardColumns = "id, student_id, term, year, created_at, updated_at"

// List returns report cards matching the filter.
func (r *ReportCardRepository) List(ctx context.Context, filter models.ReportCardFilter) ([]models.ReportCard, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Year != nil {
		args = append(args, *filter.Year)
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(term) LIKE $%d", len(args)))
	}
	base := "FROM report_cards WHERE " + strings.Join(conditions, " AND ")

	query := paginate(fmt.Sprintf("SELECT %s %s ORDER BY created_at, id", reportCardColumns, base), filter.Page, filter.PageSize)
	cards := make([]models.ReportCard, 0)
	if err := r.db.SelectContext(ctx, &cards, query, args...); err != nil {
		err = translate(err)
		if errors.Is(err, ErrMalformedID) {
			return make([]models.ReportCard, 0), 0, nil
		}
		return nil, 0, fmt.Errorf("list report cards: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count report cards: %w", err)
	}
	return cards, total, nil
}

// FindByID fetches a report card by ID.
func (r *ReportCardRepository) FindByID(ctx context.Context, id string) (*models.ReportCard, error) {
	var card models.ReportCard
	if err := r.db.GetContext(ctx, &card, "SELECT "+reportCardColumns+" FROM report_cards WHERE id = $1", id); err != nil {
		return nil, translate(err)
	}
	return &card, nil
}

// ExistsForTerm reports whether the student already has a card for the term and year.
// Terms compare case-insensitively, matching the report_cards_student_term_year_key index.
func (r *ReportCardRepository) ExistsForTerm(ctx context.Context, studentID, term string, year int, excludeID string) (bool, error) {
	query := "SELECT 1 FROM report_cards WHERE student_id = $1 AND LOWER(term) = LOWER($2) AND year = $3"
	args := []interface{}{studentID, term, year}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check report card term: %w", err)
	}
	return true, nil
}

// Create inserts a report card.
func (r *ReportCardRepository) Create(ctx context.Context, card *models.ReportCard) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now
	const query = `INSERT INTO report_cards (id, student_id, term, year, created_at, updated_at)
        VALUES (:id, :student_id, :term, :year, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, card); err != nil {
		return fmt.Errorf("create report card: %w", translate(err))
	}
	return nil
}

// Update modifies a report card.
func (r *ReportCardRepository) Update(ctx context.Context, card *models.ReportCard) error {
	card.UpdatedAt = time.Now().UTC()
	const query = `UPDATE report_cards SET student_id = :student_id, term = :term, year = :year, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, card); err != nil {
		return fmt.Errorf("update report card: %w", translate(err))
	}
	return nil
}

// Delete removes a report card and its marks.
func (r *ReportCardRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM report_cards WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete report card: %w", translate(err))
	}
	return requireAffected(res)
}
