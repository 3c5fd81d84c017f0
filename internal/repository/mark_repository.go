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

// MarkRepository handles persistence of subject marks.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository constructs a MarkRepository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

const (
	markColumns       = "id, report_card_id, subject_id, score, created_at, updated_at"
	markDetailColumns = `m.id, m.report_card_id, m.score,
        s.id AS "subject.id", s.name AS "subject.name", s.code AS "subject.code",
        s.created_at AS "subject.created_at", s.updated_at AS "subject.updated_at"`
)

// List returns marks with their subjects nested.
func (r *MarkRepository) List(ctx context.Context, filter models.MarkFilter) ([]models.MarkDetail, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.ReportCardID != "" {
		args = append(args, filter.ReportCardID)
		conditions = append(conditions, fmt.Sprintf("m.report_card_id = $%d", len(args)))
	}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		conditions = append(conditions, fmt.Sprintf("m.subject_id = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	query := paginate(fmt.Sprintf("SELECT %s FROM marks m JOIN subjects s ON s.id = m.subject_id%s ORDER BY m.created_at, m.id", markDetailColumns, where), filter.Page, filter.PageSize)
	marks := make([]models.MarkDetail, 0)
	if err := r.db.SelectContext(ctx, &marks, query, args...); err != nil {
		err = translate(err)
		if errors.Is(err, ErrMalformedID) {
			return make([]models.MarkDetail, 0), 0, nil
		}
		return nil, 0, fmt.Errorf("list marks: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM marks m"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count marks: %w", err)
	}
	return marks, total, nil
}

// FindByID fetches the stored mark row.
func (r *MarkRepository) FindByID(ctx context.Context, id string) (*models.Mark, error) {
	var mark models.Mark
	if err := r.db.GetContext(ctx, &mark, "SELECT "+markColumns+" FROM marks WHERE id = $1", id); err != nil {
		return nil, translate(err)
	}
	return &mark, nil
}

// FindDetailByID fetches a mark with its subject nested.
func (r *MarkRepository) FindDetailByID(ctx context.Context, id string) (*models.MarkDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM marks m JOIN subjects s ON s.id = m.subject_id WHERE m.id = $1", markDetailColumns)
	var mark models.MarkDetail
	if err := r.db.GetContext(ctx, &mark, query, id); err != nil {
		return nil, translate(err)
	}
	return &mark, nil
}

// ExistsForSubject reports whether the report card already holds a mark for the subject.
func (r *MarkRepository) ExistsForSubject(ctx context.Context, reportCardID, subjectID string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM marks WHERE report_card_id = $1 AND subject_id = $2"
	args := []interface{}{reportCardID, subjectID}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check mark subject: %w", err)
	}
	return true, nil
}

// Create inserts a mark.
func (r *MarkRepository) Create(ctx context.Context, mark *models.Mark) error {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = now
	}
	mark.UpdatedAt = now
	const query = `INSERT INTO marks (id, report_card_id, subject_id, score, created_at, updated_at)
        VALUES (:id, :report_card_id, :subject_id, :score, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mark); err != nil {
		return fmt.Errorf("create mark: %w", translate(err))
	}
	return nil
}

// Update modifies a mark.
func (r *MarkRepository) Update(ctx context.Context, mark *models.Mark) error {
	mark.UpdatedAt = time.Now().UTC()
	const query = `UPDATE marks SET report_card_id = :report_card_id, subject_id = :subject_id, score = :score, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, mark); err != nil {
		return fmt.Errorf("update mark: %w", translate(err))
	}
	return nil
}

// Delete removes a mark.
func (r *MarkRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM marks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete mark: %w", translate(err))
	}
	return requireAffected(res)
}
