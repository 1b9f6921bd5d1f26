package db

import (
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation       = "23505"
	pgSerializationFailure  = "40001"
	pgDeadlockDetected      = "40P01"
	pgLockNotAvailable      = "55P03"
	sqliteUniqueMarker      = "UNIQUE constraint failed"
	sqliteBusyMarker        = "database is locked"
	postgresDuplicateMarker = "duplicate key value"
)

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. When constraintName is provided, the helper looks for
// the constraint text in the error.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return constraintName == "" || strings.Contains(err.Error(), constraintName)
	}
	if code, constraint := pgCode(err); code == pgUniqueViolation {
		return constraintName == "" || constraint == constraintName
	}
	msg := err.Error()
	if !strings.Contains(msg, postgresDuplicateMarker) && !strings.Contains(msg, sqliteUniqueMarker) {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}

// IsTransientConflict reports serialization failures, deadlocks and lock
// contention that a caller may safely retry.
func IsTransientConflict(err error) bool {
	if err == nil {
		return false
	}
	switch code, _ := pgCode(err); code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return strings.Contains(err.Error(), sqliteBusyMarker)
}

// Classify wraps storage errors into the typed taxonomy. Transient conflicts
// become STORAGE_CONFLICT; everything else is INTERNAL_ERROR. Already typed
// errors pass through.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if IsTransientConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeStorageConflict, err, message)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
}

func pgCode(err error) (string, string) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}
