// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/homefinder-messaging/internal/domain"
)

// InsertMessage persists m as-is. The caller assigns ID, SequenceNumber and
// SentAt. A unique violation on (conversation_id, sequence_number) or
// (conversation_id, idempotency_key) is returned as ErrDuplicate.
func InsertMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	err := db.WithContext(ctx).Omit(clause.Associations).Create(m).Error
	if err != nil && IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// ListMessagesAfter returns up to limit messages of a conversation with a
// sequence number strictly greater than after, in ascending order. A limit
// <= 0 means no limit.
func ListMessagesAfter(ctx context.Context, db *gorm.DB, conversationID string, after int64, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("conversation_id = ? AND sequence_number > ?", conversationID, after).
		Order("sequence_number ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// MaxSequence returns the highest sequence number stored for the
// conversation, or 0 when it has no messages.
func MaxSequence(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var max int64
	err := db.WithContext(ctx).
		Raw("SELECT COALESCE(MAX(sequence_number), 0) FROM messages WHERE conversation_id = ?", conversationID).
		Scan(&max).Error
	return max, err
}

// LastMessage returns the newest message of a conversation, or ErrNotFound.
func LastMessage(ctx context.Context, db *gorm.DB, conversationID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sequence_number DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountUnread counts messages in the conversation not sent by userID whose
// sequence number is above afterSeq.
func CountUnread(ctx context.Context, db *gorm.DB, conversationID, userID string, afterSeq int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND sequence_number > ?", conversationID, userID, afterSeq).
		Count(&n).Error
	return n, err
}
