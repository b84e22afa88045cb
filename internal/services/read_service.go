// Package services – ReadService
//
// This file implements the ReadService, which records how far a participant
// has read in a conversation. It enforces participation, clamps the marker to
// the conversation's newest message, and never lets a marker move backwards.
package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/homefinder-messaging/internal/repo"
)

// ReadService implements the use-cases around read markers.
type ReadService struct {
	// DB is the database handle used for all read-marker operations.
	DB *gorm.DB
}

// MarkRead records that userID has read conversationID up to seq and returns
// the stored marker.
//
// Semantics and validation:
//   - seq must be >= 0; otherwise ErrInvalidInput.
//   - conversationID must exist; otherwise ErrConversationNotFound.
//   - userID must be the owner or the client; otherwise ErrNotParticipant.
//   - seq above the conversation's last sequence is clamped to it.
//   - A seq below the current marker leaves the marker unchanged.
//
// The conversation lookup and the marker upsert run in one transaction so
// the clamp uses a consistent last sequence.
func (s *ReadService) MarkRead(ctx context.Context, conversationID, userID string, seq int64) (int64, error) {
	tr := otel.Tracer("services/ReadService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
			attribute.Int64("sequence", seq),
		),
	)
	defer span.End()

	if seq < 0 {
		return 0, fmt.Errorf("%w: sequence number must be >= 0", ErrInvalidInput)
	}

	var stored int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := repo.GetConversation(ctx, tx, conversationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return err
		}
		if !conv.HasParticipant(userID) {
			return ErrNotParticipant
		}
		if seq > conv.LastSequence {
			seq = conv.LastSequence
		}
		stored, err = repo.AdvanceReadMarker(ctx, tx, conversationID, userID, seq)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return 0, err
		}
		span.RecordError(err)
		return 0, unavailable(err)
	}
	return stored, nil
}
