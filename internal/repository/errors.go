// Package repository defines the data access layer. Every method touching
// a user-owned row takes the owner's id and puts it in the SQL predicate.
//
// This file defines the sentinel errors shared across repositories and the
// translation of MySQL failures onto them. Handlers never see driver errors
// directly; they check these values with errors.Is.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound is returned when the requested row does not exist or is
	// not owned by the caller. The two cases are indistinguishable on purpose.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert or update hits a unique index.
	ErrDuplicate = errors.New("unique constraint violation")

	// ErrRelatedNotFound is returned when a write references a parent row
	// that disappeared, e.g. a todo inserted while its box is being deleted.
	ErrRelatedNotFound = errors.New("related row not found")
)

// MySQL server error numbers we translate.
const (
	mysqlDupEntry         = 1062
	mysqlNoReferencedRow  = 1216
	mysqlNoReferencedRow2 = 1452
)

// Error tags a sentinel with the entity it concerns so the API can say
// "Box not found" rather than a bare "not found".
type Error struct {
	Entity string
	Err    error
}

func (e *Error) Error() string { return e.Entity + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func notFound(entity string) error {
	return &Error{Entity: entity, Err: ErrNotFound}
}

// classify converts a driver error into one of the sentinels. entity names
// the row being written; parent names the row a foreign key points at.
func classify(err error, entity, parent string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(entity)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDupEntry:
			return &Error{Entity: entity, Err: ErrDuplicate}
		case mysqlNoReferencedRow, mysqlNoReferencedRow2:
			return &Error{Entity: parent, Err: ErrRelatedNotFound}
		}
	}
	return fmt.Errorf("%s: db error: %w", entity, err)
}
