package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE for "column does not exist".
const pgUndefinedColumn = "42703"

// IsUndefinedColumn reports whether err was caused by referencing a column the
// schema does not have. Used to detect deployments that have not yet run the
// payout-tracking migration, so the feature can degrade instead of hard-fail.
func IsUndefinedColumn(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedColumn
	}

	// sqlite (tests) reports the same condition as a plain message.
	return strings.Contains(err.Error(), "no such column")
}

// IsDuplicateKey reports whether err was a unique-constraint violation.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
