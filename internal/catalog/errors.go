package catalog

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("catalog: not found")
	ErrConflict       = errors.New("catalog: already exists")
	ErrParentNotFound = errors.New("catalog: referenced entity not found")
)

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Postgres SQLSTATE codes mapped onto catalog errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// mapPgError translates integrity violations into catalog sentinels while
// keeping the driver error in the chain.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w (%s): %w", ErrConflict, pgErr.ConstraintName, err)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w (%s): %w", ErrParentNotFound, pgErr.ConstraintName, err)
	case pgCheckViolation:
		return &ValidationError{Field: pgErr.ConstraintName, Value: pgErr.Detail, Reason: "check constraint violated"}
	}
	return err
}
