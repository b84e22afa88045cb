// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// MessagesStats returns the number of messages in a conversation and the
// highest sequence number among them. Both are 0 for an empty conversation.
// Messages are immutable, so the pair changes exactly when a message is added.
func MessagesStats(ctx context.Context, db *gorm.DB, conversationID string) (count int64, maxSeq int64, err error) {
	var row struct {
		Count  int64
		MaxSeq int64
	}
	err = db.WithContext(ctx).
		Raw("SELECT COUNT(*) AS count, COALESCE(MAX(sequence_number), 0) AS max_seq FROM messages WHERE conversation_id = ?", conversationID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Count, row.MaxSeq, nil
}
