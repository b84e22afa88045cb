package domain

import (
	"regexp"
	"strings"
)

// IdempotencyKeyMaxLen caps client-supplied idempotency keys.
const IdempotencyKeyMaxLen = 200

// idempotencyKeyRE is an RFC 7230 token plus a few safe separators.
var idempotencyKeyRE = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// ValidIdempotencyKey reports whether key is acceptable as a message
// idempotency key. The empty string is not a key.
func ValidIdempotencyKey(key string) bool {
	return key != "" && len(key) <= IdempotencyKeyMaxLen && idempotencyKeyRE.MatchString(key)
}

// IdempotencyKeyPtr trims key and returns nil when nothing remains, so an
// absent key is stored as NULL and never collides.
func IdempotencyKeyPtr(key string) *string {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return &key
}
