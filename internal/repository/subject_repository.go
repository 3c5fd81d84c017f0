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

// SubjectRepository handles subject persistence.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

const subjectColumns = "id, name, code, created_at, updated_at"

// List returns subjects matching the filter.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	base := "FROM subjects"
	var args []interface{}
	if filter.Search != "" {
		base += " WHERE (LOWER(name) LIKE $1 OR LOWER(code) LIKE $1)"
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	query := paginate(fmt.Sprintf("SELECT %s %s ORDER BY created_at, id", subjectColumns, base), filter.Page, filter.PageSize)
	subjects := make([]models.Subject, 0)
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// FindByID fetches a subject by ID.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, "SELECT "+subjectColumns+" FROM subjects WHERE id = $1", id); err != nil {
		return nil, translate(err)
	}
	return &subject, nil
}

// ExistsByCode reports whether another subject already uses code.
func (r *SubjectRepository) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM subjects WHERE code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return true, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now
	const query = `INSERT INTO subjects (id, name, code, created_at, updated_at) VALUES (:id, :name, :code, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", translate(err))
	}
	return nil
}

// Update modifies a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, code = :code, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", translate(err))
	}
	return nil
}

// Delete removes a subject together with the marks recorded against it.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM subjects WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete subject: %w", translate(err))
	}
	return requireAffected(res)
}

// StudentIDsForSubject lists the students holding at least one mark in the subject.
func (r *SubjectRepository) StudentIDsForSubject(ctx context.Context, id string) ([]string, error) {
	const query = `SELECT DISTINCT rc.student_id FROM marks m JOIN report_cards rc ON rc.id = m.report_card_id WHERE m.subject_id = $1`
	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, query, id); err != nil {
		return nil, fmt.Errorf("list subject students: %w", err)
	}
	return ids, nil
}
