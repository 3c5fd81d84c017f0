package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/report-card-api/internal/models"
)

var markDetailRowColumns = []string{"id", "report_card_id", "score", "subject.id", "subject.name", "subject.code", "subject.created_at", "subject.updated_at"}

func TestMarkRepositoryListByReportCard(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	now := time.Now()
	mock.ExpectQuery(`FROM marks m JOIN subjects s ON s.id = m.subject_id WHERE 1=1 AND m.report_card_id = \$1 ORDER BY m.created_at, m.id`).
		WithArgs("rc1").
		WillReturnRows(sqlmock.NewRows(markDetailRowColumns).AddRow("m1", "rc1", "80.50", "sub1", "Math", "MATH", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM marks m WHERE 1=1 AND m.report_card_id = $1")).
		WithArgs("rc1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	marks, total, err := repo.List(context.Background(), models.MarkFilter{ReportCardID: "rc1"})
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, "80.50", marks[0].Score.String())
	assert.Equal(t, "Math", marks[0].Subject.Name)
	assert.Equal(t, "rc1", marks[0].ReportCardID)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryCreateDuplicateSubject(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectExec("INSERT INTO marks").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "marks_report_card_subject_key"})

	err := repo.Create(context.Background(), &models.Mark{ReportCardID: "rc1", SubjectID: "sub1", Score: models.MustScore("70")})
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectExec("UPDATE marks SET").
		WithArgs("rc1", "sub1", "91.25", sqlmock.AnyArg(), "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.Mark{ID: "m1", ReportCardID: "rc1", SubjectID: "sub1", Score: models.MustScore("91.25")})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
