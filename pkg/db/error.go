package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsRLSDeniedErr reports whether an insert or update was rejected by a
// row security policy. Seeing this in logs means application code tried
// to write a row for an org other than the session's.
func IsRLSDeniedErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "violates row-level security policy")
}
