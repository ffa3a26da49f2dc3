package utils

import (
	"regexp"
)

var autoincrementInsertPattern = regexp.MustCompile(`(?is)^\s*INSERT\s+.*\sRETURNING\s+`)

// IsAutoincrementInsertQuery reports whether query is an INSERT that returns the
// generated key.
func IsAutoincrementInsertQuery(query string) bool {
	return autoincrementInsertPattern.MatchString(query)
}
