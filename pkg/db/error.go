package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Driver-specific unique violation messages: postgres 23505, mysql 1062,
// sqlite 2067.
var duplicateKeyMessages = []string{
	"duplicate key value violates unique constraint",
	"Error 1062",
	"UNIQUE constraint failed",
}

// IsDuplicateKeyErr reports whether err is a unique constraint violation
// regardless of which driver produced it.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	for _, needle := range duplicateKeyMessages {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
