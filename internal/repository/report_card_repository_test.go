package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/report-card-api/internal/models"
)

var reportCardRowColumns = []string{"id", "student_id", "term", "year", "created_at", "updated_at"}

func TestReportCardRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, term, year, created_at, updated_at FROM report_cards WHERE 1=1 AND student_id = $1 AND LOWER(term) LIKE $2 ORDER BY created_at, id")).
		WithArgs("s1", "%fall%").
		WillReturnRows(sqlmock.NewRows(reportCardRowColumns).AddRow("rc1", "s1", "Fall", 2024, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM report_cards WHERE 1=1 AND student_id = $1 AND LOWER(term) LIKE $2")).
		WithArgs("s1", "%fall%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	cards, total, err := repo.List(context.Background(), models.ReportCardFilter{StudentID: "s1", Search: "Fall"})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, 2024, cards[0].Year)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryExistsForTermIsCaseInsensitive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM report_cards WHERE student_id = $1 AND LOWER(term) = LOWER($2) AND year = $3 LIMIT 1")).
		WithArgs("s1", "fall", 2024).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsForTerm(context.Background(), "s1", "fall", 2024, "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryExistsForTermExcludesSelf(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND id <> $4 LIMIT 1")).
		WithArgs("s1", "Fall", 2024, "rc1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsForTerm(context.Background(), "s1", "Fall", 2024, "rc1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryCreateRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec("INSERT INTO report_cards").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "report_cards_student_term_year_key"})

	err := repo.Create(context.Background(), &models.ReportCard{StudentID: "s1", Term: "FALL", Year: 2024})
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryListMalformedStudentFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectQuery(`SELECT .* FROM report_cards WHERE 1=1 AND student_id = \$1`).
		WithArgs("abc").
		WillReturnError(&pq.Error{Code: "22P02"})

	cards, total, err := repo.List(context.Background(), models.ReportCardFilter{StudentID: "abc"})
	require.NoError(t, err)
	assert.NotNil(t, cards)
	assert.Empty(t, cards)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
