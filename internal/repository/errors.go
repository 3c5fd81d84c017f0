package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrUniqueViolation reports an insert or update rejected by a unique constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrForeignKeyViolation reports a reference to a row that does not exist.
	ErrForeignKeyViolation = errors.New("foreign key violation")
	// ErrMalformedID reports an identifier that is not a valid UUID. It also matches
	// sql.ErrNoRows: no stored row can carry such an id.
	ErrMalformedID = errors.New("malformed identifier")
)

const (
	maxPageSize = 100

	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqInvalidText         = "22P02"
)

// ConstraintError carries the violated constraint name next to the sentinel.
type ConstraintError struct {
	Kind       error
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Constraint == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + " (" + e.Constraint + ")"
}

// Is lets errors.Is match the sentinel kind.
func (e *ConstraintError) Is(target error) bool {
	return target == e.Kind
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

type malformedIDError struct {
	err error
}

func (e *malformedIDError) Error() string {
	return ErrMalformedID.Error() + ": " + e.err.Error()
}

func (e *malformedIDError) Is(target error) bool {
	return target == ErrMalformedID || target == sql.ErrNoRows
}

func (e *malformedIDError) Unwrap() error {
	return e.err
}

// translate converts PostgreSQL constraint failures and unparsable UUID parameters into
// repository sentinels and leaves every other error untouched.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pqUniqueViolation:
		return &ConstraintError{Kind: ErrUniqueViolation, Constraint: pqErr.Constraint, Err: err}
	case pqForeignKeyViolation:
		return &ConstraintError{Kind: ErrForeignKeyViolation, Constraint: pqErr.Constraint, Err: err}
	case pqInvalidText:
		return &malformedIDError{err: err}
	default:
		return err
	}
}

// ConstraintName returns the violated constraint, if err carries one.
func ConstraintName(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}

// paginate appends LIMIT/OFFSET when a page size was requested. A zero size returns
// every row.
func paginate(query string, page, size int) string {
	if size <= 0 {
		return query
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, size, (page-1)*size)
}

// requireAffected turns a no-op write into sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
