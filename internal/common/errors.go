// Package common holds the error values, logger setup, and retry helper
// shared across the application.
package common

import "errors"

var (
	// ErrNotFound is returned by storage lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrDatabaseCorrupted signals stored data this binary cannot read,
	// either a schema from a newer release or a row that fails to parse.
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// ErrInconsistentMerge means an entity merge hit state that should
	// not exist mid-transaction; the merge rolls back.
	ErrInconsistentMerge = errors.New("inconsistent merge state")

	// ErrMergeInProgress rejects a merge whose entities overlap one
	// already running.
	ErrMergeInProgress = errors.New("overlapping entity merge already running")

	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError pairs a message fit for the terminal with the underlying
// cause. The CLI prints UserMessage and keeps Err for debug logging.
type UserError struct {
	Err         error
	UserMessage string
}

// NewUserError wraps err with a message meant for the person at the
// keyboard.
func NewUserError(msg string, err error) error {
	return &UserError{UserMessage: msg, Err: err}
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.UserMessage
	}
	return e.UserMessage + ": " + e.Err.Error()
}

func (e *UserError) Unwrap() error { return e.Err }
