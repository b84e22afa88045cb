// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition.
//
// Error semantics:
//   - When a conversation is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On other DB errors the raw gorm error is propagated.
//
// Usage:
//
//	conv := &domain.Conversation{PropertyID: "P123", OwnerID: "owner1", ClientID: "client1"}
//	created, err := repo.CreateConversationIfAbsent(ctx, db, conv)
//	if err == nil && !created {
//	    conv, err = repo.FindConversation(ctx, db, "P123", "client1")
//	}
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/homefinder-messaging/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateConversationIfAbsent inserts c unless a conversation for the same
// (property_id, client_id) already exists. It reports whether a row was
// written. ID and CreatedAt are filled in when empty.
//
// The unique index makes this safe across processes: of several concurrent
// callers exactly one sees created == true.
func CreateConversationIfAbsent(ctx context.Context, db *gorm.DB, c *domain.Conversation) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "property_id"}, {Name: "client_id"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindConversation fetches the conversation for (propertyID, clientID), or
// ErrNotFound.
func FindConversation(ctx context.Context, db *gorm.DB, propertyID, clientID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("property_id = ? AND client_id = ?", propertyID, clientID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation fetches a conversation by ID, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversationsForUser returns every conversation in which userID is the
// owner or the client, most recent activity first. Timestamps are stored in
// UTC so the text comparison SQLite performs matches chronological order.
func ListConversationsForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("owner_id = ? OR client_id = ?", userID, userID).
		Order("COALESCE(last_message_at, created_at) DESC, id ASC").
		Find(&out).Error
	return out, err
}

// TouchConversation records the newest message on the conversation row.
// It returns ErrNotFound if no row matched.
func TouchConversation(ctx context.Context, db *gorm.DB, id string, seq int64, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_sequence":   seq,
			"last_message_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
