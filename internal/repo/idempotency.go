// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the helpers behind safe-retry semantics
// for message sends: duplicate detection and lookup by idempotency key.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/homefinder-messaging/internal/domain"
)

// ErrDuplicate indicates a unique-constraint violation on insert.
var ErrDuplicate = errors.New("duplicate")

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// GetMessageByIdempotencyKey returns the message stored under key in the
// conversation, or ErrNotFound.
func GetMessageByIdempotencyKey(ctx context.Context, db *gorm.DB, conversationID, key string) (*domain.Message, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var m domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND idempotency_key = ?", conversationID, key).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}
