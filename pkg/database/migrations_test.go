package database

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMigratorMock(t *testing.T) (*Migrator, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewMigrator(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestMigratorUpAppliesPendingOnly(t *testing.T) {
	m, mock, cleanup := newMigratorMock(t)
	defer cleanup()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(2, "create_users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	count, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratorUpRollsBackOnFailure(t *testing.T) {
	m, mock, cleanup := newMigratorMock(t)
	defer cleanup()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS students").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	count, err := m.Up(context.Background())
	require.ErrorIs(t, err, ErrMigrationFailed)
	assert.Equal(t, 0, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratorDownRevertsLatest(t *testing.T) {
	m, mock, cleanup := newMigratorMock(t)
	defer cleanup()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, time.Now()).AddRow(2, time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM schema_migrations").WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Down(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsSchemaGuardsInvariants(t *testing.T) {
	schema := Migrations()[0].UpSQL
	assert.Contains(t, schema, "REFERENCES students(id) ON DELETE CASCADE")
	assert.Contains(t, schema, "REFERENCES report_cards(id) ON DELETE CASCADE")
	assert.Contains(t, schema, "report_cards_student_term_year_key ON report_cards (student_id, LOWER(term), year)")
	assert.Contains(t, schema, "marks_report_card_subject_key UNIQUE (report_card_id, subject_id)")
	assert.Contains(t, schema, "NUMERIC(5,2)")
}
