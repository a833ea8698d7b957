package db

import (
	"errors"  // Error inspection
	"strings" // Driver message matching

	"gorm.io/gorm" // GORM ORM library
)

// IsDuplicateKeyErr reports whether err is a unique index violation
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1062") || // MySQL
		strings.Contains(msg, "UNIQUE constraint failed") // SQLite
}

// IsDuplicateOn reports whether err is a unique index violation naming column
func IsDuplicateOn(err error, column string) bool {
	return IsDuplicateKeyErr(err) && strings.Contains(err.Error(), column)
}
