package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidReference is returned when a foreign key points at a missing row.
var ErrInvalidReference = errors.New("invalid reference")

// ErrInvalidID is returned when an identifier is not in the expected format.
var ErrInvalidID = errors.New("invalid id")

// DuplicateError reports a unique constraint violation on Field.
type DuplicateError struct {
	Table string
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}

// ReferenceError reports a foreign key violation. It matches ErrInvalidReference.
type ReferenceError struct {
	Field string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("invalid reference: %s", e.Field)
}

func (e *ReferenceError) Is(target error) bool {
	return target == ErrInvalidReference
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02"
)

// translate maps driver errors onto the package's error vocabulary.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pgUniqueViolation:
		return &DuplicateError{Table: pqErr.Table, Field: constraintField(pqErr.Table, pqErr.Constraint, "_key")}
	case pgForeignKeyViolation:
		return &ReferenceError{Field: constraintField(pqErr.Table, pqErr.Constraint, "_fkey")}
	case pgInvalidTextRepr:
		return fmt.Errorf("%w: %s", ErrInvalidID, pqErr.Message)
	}
	return err
}

// constraintField derives "email" from "users_email_key".
func constraintField(table, constraint, suffix string) string {
	field := strings.TrimSuffix(constraint, suffix)
	if table != "" {
		field = strings.TrimPrefix(field, table+"_")
	}
	if field == "" {
		return constraint
	}
	return field
}
