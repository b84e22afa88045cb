// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ReadMarker model.
//
// The repository follows a "thin" approach: the service layer decides which
// sequence number a participant may mark; this file only guarantees that a
// stored marker never moves backwards, even under concurrent writers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/homefinder-messaging/internal/domain"
)

// AdvanceReadMarker raises the marker for (conversationID, userID) to seq,
// creating it if needed. A lower seq leaves the marker untouched. It returns
// the stored value after the write.
func AdvanceReadMarker(ctx context.Context, db *gorm.DB, conversationID, userID string, seq int64) (int64, error) {
	now := time.Now().UTC()
	rm := &domain.ReadMarker{
		ConversationID:   conversationID,
		UserID:           userID,
		LastReadSequence: seq,
		UpdatedAt:        now,
	}
	err := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_read_sequence": gorm.Expr("MAX(read_markers.last_read_sequence, excluded.last_read_sequence)"),
				"updated_at":         now,
			}),
		}).
		Create(rm).Error
	if err != nil {
		return 0, err
	}
	return GetReadSequence(ctx, db, conversationID, userID)
}

// GetReadSequence returns the marker for (conversationID, userID), or 0 when
// the participant has never marked anything read.
func GetReadSequence(ctx context.Context, db *gorm.DB, conversationID, userID string) (int64, error) {
	var rows []domain.ReadMarker
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].LastReadSequence, nil
}

// ReadSequencesForUser returns userID's markers keyed by conversation ID.
func ReadSequencesForUser(ctx context.Context, db *gorm.DB, userID string) (map[string]int64, error) {
	var rows []domain.ReadMarker
	if err := db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.ConversationID] = r.LastReadSequence
	}
	return out, nil
}
