package htables

import (
	"errors"
	"fmt"

	"github.com/inovacc/htables/internal/connuri"
	"github.com/inovacc/htables/internal/storage"
)

var (
	// ErrExpiredSession is returned by every operation on a released session.
	ErrExpiredSession = errors.New("trying to use expired database session")

	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("not found")

	ErrInvalidTableName = errors.New("invalid table name")

	// ErrDetachedRow is returned when saving or deleting a row that no
	// table produced.
	ErrDetachedRow = errors.New("row is not bound to a table")

	// ErrNotPersisted is returned when deleting a row that was never saved.
	ErrNotPersisted = errors.New("row has not been saved")

	// ErrFileNotFound is returned by the SQLite backend for unknown db file
	// ids. PostgreSQL reports missing large objects with its own error.
	ErrFileNotFound = storage.ErrFileNotFound
)

// ConfigurationError reports a malformed connection URI or pool setting.
type ConfigurationError = connuri.ConfigurationError

// InvalidFieldError reports a key or value the backend cannot store: caught
// by debug-mode checks on PostgreSQL, and always by the SQLite JSON codec
// for text that is not valid UTF-8.
type InvalidFieldError = storage.InvalidFieldError

// NotFoundError indicates that no row matched a Get or Find query.
type NotFoundError struct {
	Table  string
	ID     int64
	Filter map[string]string
}

func (e *NotFoundError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("no %s row with id=%d", e.Table, e.ID)
	}

	return fmt.Sprintf("no %s row matching %v", e.Table, e.Filter)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// MultipleResultsError indicates that FindSingle matched more than one row.
type MultipleResultsError struct {
	Table  string
	Filter map[string]string
}

func (e *MultipleResultsError) Error() string {
	return fmt.Sprintf("more than one %s row matching %v", e.Table, e.Filter)
}

// UnknownTableError indicates a table name missing from the schema.
type UnknownTableError struct {
	Name string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %q", e.Name)
}

// DuplicateTableError indicates a second definition of a table name.
type DuplicateTableError struct {
	Name string
}

func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("table %q is already defined", e.Name)
}
