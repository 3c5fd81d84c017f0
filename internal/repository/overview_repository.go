package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/report-card-api/internal/models"
)

// OverviewRepository reads the rows that make up a student's yearly overview.
type OverviewRepository struct {
	db *sqlx.DB
}

// NewOverviewRepository constructs an OverviewRepository.
func NewOverviewRepository(db *sqlx.DB) *OverviewRepository {
	return &OverviewRepository{db: db}
}

// ReportCardsForYear returns the student's cards for year ordered by creation.
func (r *OverviewRepository) ReportCardsForYear(ctx context.Context, studentID string, year int) ([]models.ReportCard, error) {
	query := fmt.Sprintf("SELECT %s FROM report_cards WHERE student_id = $1 AND year = $2 ORDER BY created_at, id", reportCardColumns)
	cards := make([]models.ReportCard, 0)
	if err := r.db.SelectContext(ctx, &cards, query, studentID, year); err != nil {
		return nil, fmt.Errorf("list report cards for year: %w", err)
	}
	return cards, nil
}

// MarksForReportCards returns every mark of the given cards with subjects joined, ordered
// by subject name then subject id so averages and nested marks list deterministically.
func (r *OverviewRepository) MarksForReportCards(ctx context.Context, reportCardIDs []string) ([]models.MarkDetail, error) {
	marks := make([]models.MarkDetail, 0)
	if len(reportCardIDs) == 0 {
		return marks, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM marks m JOIN subjects s ON s.id = m.subject_id
        WHERE m.report_card_id = ANY($1) ORDER BY s.name, s.id, m.id`, markDetailColumns)
	if err := r.db.SelectContext(ctx, &marks, query, pq.Array(reportCardIDs)); err != nil {
		return nil, fmt.Errorf("list marks for report cards: %w", err)
	}
	return marks, nil
}
