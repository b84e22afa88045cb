// Package utils holds small query-parsing helpers shared by the HTTP layer.
package utils

import (
	"errors"
	"strconv"
	"strings"
)

// ErrBadCursor is returned by ParseSequence for malformed or negative values.
var ErrBadCursor = errors.New("cursor must be a non-negative integer")

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
//
//	utils.AtoiDefault("42", 0) // 42
//	utils.AtoiDefault("", 10)  // 10
//	utils.AtoiDefault("x", 5)  // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ParseSequence parses a message sequence cursor such as the after query
// parameter. An empty string is 0.
func ParseSequence(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, ErrBadCursor
	}
	return n, nil
}
