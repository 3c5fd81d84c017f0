package service

import (
	"context"
	"net/http"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/report-card-api/internal/models"
	"github.com/noah-isme/report-card-api/internal/repository"
	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func invalidUUID(raw string) *pq.Error {
	return &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "` + raw + `"`}
}

func TestOverviewUnknownStudentWithMalformedID(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT .* FROM students WHERE id = \$1`).
		WithArgs("abc").
		WillReturnError(invalidUUID("abc"))

	svc := NewOverviewService(repository.NewOverviewRepository(db), repository.NewStudentRepository(db), nil, nil, nil)
	_, err := svc.AverageOverview(context.Background(), "abc", "2024")

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardCreateWithMalformedStudent(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT .* FROM students WHERE id = \$1`).
		WithArgs("abc").
		WillReturnError(invalidUUID("abc"))

	year := 2024
	svc := NewReportCardService(repository.NewReportCardRepository(db), repository.NewStudentRepository(db), repository.NewOverviewRepository(db), nil, nil, nil)
	_, err := svc.Create(context.Background(), ReportCardRequest{StudentID: "abc", Term: "Fall", Year: &year})

	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, "student abc does not exist", appErrors.FromError(err).Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCreateWithMalformedReportCard(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT .* FROM report_cards WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(invalidUUID("nope"))

	score := models.MustScore("80")
	svc := NewMarkService(repository.NewMarkRepository(db), repository.NewReportCardRepository(db), repository.NewSubjectRepository(db), nil, nil, nil)
	_, err := svc.Create(context.Background(), MarkRequest{ReportCardID: "nope", SubjectID: "subject-1", Score: &score})

	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, "report card nope does not exist", appErrors.FromError(err).Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentDeleteWithMalformedID(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`DELETE FROM students WHERE id = \$1`).
		WithArgs("abc").
		WillReturnError(invalidUUID("abc"))

	svc := NewStudentService(repository.NewStudentRepository(db), nil, nil, nil)
	err := svc.Delete(context.Background(), "abc")

	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
