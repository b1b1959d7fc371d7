package errors

import (
	"fmt"
	"strings"
)

// Stages at which a row can be dropped
const (
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StageWrite     = "write"
	StageVerify    = "verify"
)

// MigrationError describes why a single row or table could not be migrated
type MigrationError struct {
	Table   string
	RowID   string
	Stage   string
	Message string
	cause   error
}

func NewMigrationError(msg string) *MigrationError {
	return &MigrationError{
		Message: msg,
	}
}

// NewMigrationErrorf creates a new MigrationError with a formatted message. A %w verb keeps
// the wrapped error reachable through errors.Is / errors.As.
func NewMigrationErrorf(format string, args ...any) *MigrationError {
	err := fmt.Errorf(format, args...)
	return &MigrationError{
		Message: err.Error(),
		cause:   unwrapOnce(err),
	}
}

func WrapMigrationError(e error) *MigrationError {
	if e == nil {
		return nil
	}

	if migrationError, ok := e.(*MigrationError); ok {
		return migrationError
	}

	return &MigrationError{
		Message: e.Error(),
		cause:   e,
	}
}

func (e *MigrationError) Error() string {
	path := []string{}
	if e.Table != "" {
		path = append(path, fmt.Sprintf("table '%s'", e.Table))
	}
	if e.RowID != "" {
		path = append(path, fmt.Sprintf("row '%s'", e.RowID))
	}
	if e.Stage != "" {
		path = append(path, fmt.Sprintf("stage '%s'", e.Stage))
	}

	if len(path) == 0 {
		return e.Message
	}

	return strings.Join(path, " -> ") + ": " + e.Message
}

func (e *MigrationError) Unwrap() error {
	return e.cause
}

func (e *MigrationError) AddTable(table string) *MigrationError {
	e.Table = table
	return e
}

func (e *MigrationError) AddRow(rowID string) *MigrationError {
	e.RowID = rowID
	return e
}

func (e *MigrationError) AddStage(stage string) *MigrationError {
	e.Stage = stage
	return e
}

// Fields returns the error context as structured log fields
func (e *MigrationError) Fields() map[string]any {
	return map[string]any{
		"table":  e.Table,
		"row_id": e.RowID,
		"stage":  e.Stage,
	}
}

func IsMigrationError(err error) bool {
	_, ok := err.(*MigrationError)
	return ok
}

func unwrapOnce(err error) error {
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return u.Unwrap()
	case interface{ Unwrap() []error }:
		if errs := u.Unwrap(); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}
