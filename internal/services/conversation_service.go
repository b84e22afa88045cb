// Package services – ConversationService
//
// This file implements the ConversationService, which owns the lifecycle of
// owner/client conversations around a listing. It resolves the owner through
// the property catalog, rejects self-conversations, and creates each
// (property, client) conversation exactly once even when duplicate requests
// race, both inside the process (singleflight) and across processes (unique
// index insert-or-fetch).
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/homefinder-messaging/internal/domain"
	"github.com/tbourn/homefinder-messaging/internal/repo"
)

// PropertyCatalog resolves listings. It returns repo.ErrNotFound (or any
// error matching gorm.ErrRecordNotFound) for unknown IDs.
type PropertyCatalog interface {
	GetProperty(ctx context.Context, id string) (*domain.Property, error)
}

// ConversationSummary is one row of a participant's conversation list.
type ConversationSummary struct {
	Conversation     domain.Conversation
	PropertyTitle    string
	Counterpart      string
	LastMessage      *domain.Message
	LastReadSequence int64
	UnreadCount      int64
}

// ConversationService provides conversation-level operations.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Catalog resolves the owner of a listing.
	Catalog PropertyCatalog

	inflight singleflight.Group
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB, catalog PropertyCatalog) *ConversationService {
	return &ConversationService{DB: db, Catalog: catalog}
}

type getOrCreateResult struct {
	conv    domain.Conversation
	created bool
}

// GetOrCreate returns the conversation between the owner of propertyID and
// requesterID, creating it when absent. created reports whether this call
// (or an in-process duplicate it was collapsed with) inserted the row.
//
// Errors: ErrPropertyNotFound, ErrSelfConversation, ErrMissingIdentity,
// or ErrStoreUnavailable for storage failures.
func (s *ConversationService) GetOrCreate(ctx context.Context, propertyID, requesterID string) (*domain.Conversation, bool, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "GetOrCreate",
		trace.WithAttributes(
			attribute.String("property.id", propertyID),
			attribute.String("user.id", requesterID),
		),
	)
	defer span.End()

	if requesterID == "" {
		return nil, false, ErrMissingIdentity
	}
	if propertyID == "" {
		return nil, false, ErrPropertyNotFound
	}

	key := propertyID + "\x00" + requesterID
	v, err, _ := s.inflight.Do(key, func() (any, error) {
		// Collapsed callers share this work; one caller's cancellation must not fail the rest.
		return s.getOrCreate(context.WithoutCancel(ctx), propertyID, requesterID)
	})
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	res := v.(getOrCreateResult)
	conv := res.conv
	span.SetAttributes(attribute.String("conversation.id", conv.ID), attribute.Bool("created", res.created))
	return &conv, res.created, nil
}

func (s *ConversationService) getOrCreate(ctx context.Context, propertyID, requesterID string) (getOrCreateResult, error) {
	prop, err := s.Catalog.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return getOrCreateResult{}, ErrPropertyNotFound
		}
		return getOrCreateResult{}, unavailable(err)
	}
	if requesterID == prop.OwnerID {
		return getOrCreateResult{}, ErrSelfConversation
	}

	if existing, err := repo.FindConversation(ctx, s.DB, propertyID, requesterID); err == nil {
		return getOrCreateResult{conv: *existing}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return getOrCreateResult{}, unavailable(err)
	}

	conv := &domain.Conversation{
		PropertyID: propertyID,
		OwnerID:    prop.OwnerID,
		ClientID:   requesterID,
	}
	created, err := repo.CreateConversationIfAbsent(ctx, s.DB, conv)
	if err != nil {
		return getOrCreateResult{}, unavailable(err)
	}
	if created {
		return getOrCreateResult{conv: *conv, created: true}, nil
	}

	// Lost the race to another process: read the winner's row.
	existing, err := repo.FindConversation(ctx, s.DB, propertyID, requesterID)
	if err != nil {
		return getOrCreateResult{}, unavailable(err)
	}
	return getOrCreateResult{conv: *existing}, nil
}

// Get returns a conversation by ID, or ErrConversationNotFound.
func (s *ConversationService) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	c, err := repo.GetConversation(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, unavailable(err)
	}
	return c, nil
}

// GetForParticipant returns the conversation if userID takes part in it.
func (s *ConversationService) GetForParticipant(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return c, nil
}

// ListForUser returns every conversation userID takes part in, most recent
// activity first, with the last message and the number of unread messages
// sent by the counterpart.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]ConversationSummary, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListForUser",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if userID == "" {
		return nil, ErrMissingIdentity
	}

	convs, err := repo.ListConversationsForUser(ctx, s.DB, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	if len(convs) == 0 {
		return []ConversationSummary{}, nil
	}

	propertyIDs := lo.Uniq(lo.Map(convs, func(c domain.Conversation, _ int) string { return c.PropertyID }))
	titles, err := repo.PropertyTitles(ctx, s.DB, propertyIDs)
	if err != nil {
		return nil, unavailable(err)
	}
	marks, err := repo.ReadSequencesForUser(ctx, s.DB, userID)
	if err != nil {
		return nil, unavailable(err)
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		sum := ConversationSummary{
			Conversation:     c,
			PropertyTitle:    titles[c.PropertyID],
			Counterpart:      c.Counterpart(userID),
			LastReadSequence: marks[c.ID],
		}
		if c.LastSequence > 0 {
			last, err := repo.LastMessage(ctx, s.DB, c.ID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, unavailable(err)
			}
			sum.LastMessage = last
			if sum.UnreadCount, err = repo.CountUnread(ctx, s.DB, c.ID, userID, sum.LastReadSequence); err != nil {
				return nil, unavailable(err)
			}
		}
		out = append(out, sum)
	}
	span.SetAttributes(attribute.Int("conversations", len(out)))
	return out, nil
}

// unavailable wraps a storage error as retryable.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
