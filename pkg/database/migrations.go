package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrMigrationFailed marks any failure while applying or reverting a migration.
var ErrMigrationFailed = errors.New("migration failed")

const migrationsTable = "schema_migrations"

// Migration is one ordered schema change.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    email VARCHAR(254) NOT NULL,
    date_of_birth DATE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT students_email_key UNIQUE (email)
);

CREATE TABLE IF NOT EXISTS subjects (
    id UUID PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    code VARCHAR(20) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT subjects_code_key UNIQUE (code)
);

CREATE TABLE IF NOT EXISTS report_cards (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    term VARCHAR(100) NOT NULL,
    year INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_report_cards_student_id ON report_cards(student_id);
CREATE INDEX IF NOT EXISTS idx_report_cards_term ON report_cards(term);
CREATE INDEX IF NOT EXISTS idx_report_cards_year ON report_cards(year);
CREATE UNIQUE INDEX IF NOT EXISTS report_cards_student_term_year_key ON report_cards (student_id, LOWER(term), year);

CREATE TABLE IF NOT EXISTS marks (
    id UUID PRIMARY KEY,
    report_card_id UUID NOT NULL REFERENCES report_cards(id) ON DELETE CASCADE,
    subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
    score NUMERIC(5,2) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT marks_report_card_subject_key UNIQUE (report_card_id, subject_id)
);

CREATE INDEX IF NOT EXISTS idx_marks_report_card_id ON marks(report_card_id);
CREATE INDEX IF NOT EXISTS idx_marks_subject_id ON marks(subject_id);
`

const migration001Down = `
DROP TABLE IF EXISTS marks;
DROP TABLE IF EXISTS report_cards;
DROP TABLE IF EXISTS subjects;
DROP TABLE IF EXISTS students;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email VARCHAR(254) NOT NULL,
    password_hash TEXT NOT NULL,
    full_name VARCHAR(150) NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    last_login TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT users_email_key UNIQUE (email)
);
`

const migration002Down = `
DROP TABLE IF EXISTS users;
`

// Migrations returns the embedded schema history in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_report_card_schema", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_users", UpSQL: migration002Up, DownSQL: migration002Down},
	}
}

// Migrator applies Migrations against a database, recording progress in schema_migrations.
type Migrator struct {
	db         *sqlx.DB
	migrations []Migration
}

// NewMigrator builds a migrator over the embedded migrations.
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db, migrations: Migrations()}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
)`, migrationsTable)
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	var rows []struct {
		Version   int       `db:"version"`
		AppliedAt time.Time `db:"applied_at"`
	}
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", migrationsTable)
	if err := m.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	applied := make(map[int]time.Time, len(rows))
	for _, row := range rows {
		applied[row.Version] = row.AppliedAt
	}
	return applied, nil
}

// Up applies every pending migration, each inside its own transaction.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		insert := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", migrationsTable)
		if err := m.withTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, insert, mig.Version, mig.Name)
			return err
		}); err != nil {
			return count, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		count++
	}
	return count, nil
}

// Down reverts the most recently applied migration. It is a no-op on an empty history.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	last := 0
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil || target.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for version %d", ErrMigrationFailed, last)
	}

	remove := fmt.Sprintf("DELETE FROM %s WHERE version = $1", migrationsTable)
	return m.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, target.DownSQL); err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, last, err)
		}
		_, err := tx.ExecContext(ctx, remove, last)
		return err
	})
}

// Status reports every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

func (m *Migrator) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
