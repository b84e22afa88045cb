// Package services – MessageService
//
// This file implements MessageService, the append-only, per-conversation
// ordered message log. It validates and normalizes bodies, checks that the
// sender takes part in the conversation, assigns gapless sequence numbers,
// resolves idempotent retries to the stored message, and hands every newly
// stored message to the delivery broker.
//
// Sequence assignment is serialized per conversation by a small lock arena:
// appends to different conversations proceed in parallel. The counter is
// loaded lazily from the store and reloaded whenever a write fails, so a
// failed or contended append never leaves numbering inconsistent.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/homefinder-messaging/internal/domain"
	"github.com/tbourn/homefinder-messaging/internal/repo"
)

const (
	// DefaultListLimit is the page size used when List is called with limit <= 0.
	DefaultListLimit = 100
	// MaxListLimit caps a single List page.
	MaxListLimit = 500

	defaultMaxBodyRunes = 4000

	// maxAppendAttempts bounds retries after sequence contention with
	// another writer on the same database.
	maxAppendAttempts = 3
)

// Publisher receives each message right after it is stored. Publish must not
// block; it is called while the conversation's append lock is held so that
// delivery order matches append order.
type Publisher interface {
	Publish(m domain.Message)
}

// MessageService coordinates message persistence and hand-off to delivery.
type MessageService struct {
	DB           *gorm.DB
	Broker       Publisher
	MaxBodyRunes int

	mu    sync.Mutex
	convs map[string]*seqState
}

// seqState is the per-conversation entry of the lock arena.
type seqState struct {
	mu     sync.Mutex
	next   int64
	loaded bool
}

// NewMessageService constructs a MessageService. broker may be nil.
func NewMessageService(db *gorm.DB, broker Publisher, maxBodyRunes int) *MessageService {
	if maxBodyRunes <= 0 {
		maxBodyRunes = defaultMaxBodyRunes
	}
	return &MessageService{
		DB:           db,
		Broker:       broker,
		MaxBodyRunes: maxBodyRunes,
		convs:        make(map[string]*seqState),
	}
}

// Append stores body as the next message of conversationID sent by senderID.
//
// When idempotencyKey is non-empty and a message with the same key already
// exists in the conversation, that message is returned unchanged with
// replayed == true and nothing is published.
//
// Errors: ErrConversationNotFound, ErrNotParticipant, ErrEmptyBody,
// ErrBodyTooLong, ErrInvalidIdempotency, or ErrStoreUnavailable (retryable).
func (s *MessageService) Append(ctx context.Context, conversationID, senderID, body, idempotencyKey string) (*domain.Message, bool, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", senderID),
			attribute.Bool("idempotent", idempotencyKey != ""),
		),
	)
	defer span.End()

	body, err := s.normalizeBody(body)
	if err != nil {
		return nil, false, err
	}
	key := domain.IdempotencyKeyPtr(idempotencyKey)
	if key != nil && !domain.ValidIdempotencyKey(*key) {
		return nil, false, ErrInvalidIdempotency
	}

	conv, err := repo.GetConversation(ctx, s.DB, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrConversationNotFound
		}
		return nil, false, unavailable(err)
	}
	if !conv.HasParticipant(senderID) {
		return nil, false, ErrNotParticipant
	}

	// Appends are not cancellable once they reach the critical section.
	m, err := s.appendLocked(context.WithoutCancel(ctx), conversationID, senderID, body, key)
	switch {
	case errors.Is(err, ErrDuplicateRequest):
		span.SetAttributes(attribute.Bool("replayed", true))
		return m, true, nil
	case err != nil:
		span.RecordError(err)
		return nil, false, err
	}
	span.SetAttributes(attribute.Int64("sequence", m.SequenceNumber))
	return m, false, nil
}

// appendLocked runs the serialized part of Append. It returns the stored
// message, or the earlier message together with ErrDuplicateRequest.
func (s *MessageService) appendLocked(ctx context.Context, conversationID, senderID, body string, key *string) (*domain.Message, error) {
	st := s.seqFor(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		if key != nil {
			prev, err := repo.GetMessageByIdempotencyKey(ctx, s.DB, conversationID, *key)
			if err == nil {
				return prev, ErrDuplicateRequest
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, unavailable(err)
			}
		}

		if !st.loaded {
			max, err := repo.MaxSequence(ctx, s.DB, conversationID)
			if err != nil {
				return nil, unavailable(err)
			}
			st.next, st.loaded = max+1, true
		}

		m := &domain.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			SequenceNumber: st.next,
			SenderID:       senderID,
			Body:           body,
			IdempotencyKey: key,
			SentAt:         time.Now().UTC(),
		}
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := repo.InsertMessage(ctx, tx, m); err != nil {
				return err
			}
			return repo.TouchConversation(ctx, tx, conversationID, m.SequenceNumber, m.SentAt)
		})
		switch {
		case err == nil:
			st.next++
			if s.Broker != nil {
				s.Broker.Publish(*m)
			}
			return m, nil
		case errors.Is(err, repo.ErrDuplicate):
			// Another writer took this sequence number or this key.
			trace.SpanFromContext(ctx).AddEvent("sequence_conflict",
				trace.WithAttributes(attribute.Int64("sequence", m.SequenceNumber), attribute.Int("attempt", attempt+1)))
			st.loaded = false
			continue
		default:
			st.loaded = false
			return nil, unavailable(err)
		}
	}
	return nil, unavailable(fmt.Errorf("sequence contention after %d attempts", maxAppendAttempts))
}

// seqFor returns the arena entry for a conversation, creating it on first use.
func (s *MessageService) seqFor(conversationID string) *seqState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.convs == nil {
		s.convs = make(map[string]*seqState)
	}
	st, ok := s.convs[conversationID]
	if !ok {
		st = &seqState{}
		s.convs[conversationID] = st
	}
	return st
}

// List returns messages of conversationID with a sequence number greater
// than after, ascending. limit <= 0 selects DefaultListLimit; larger values
// are capped at MaxListLimit. Repeating the call with after set to the last
// returned sequence number walks the whole log.
func (s *MessageService) List(ctx context.Context, conversationID string, after int64, limit int) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int64("after", after),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if after < 0 {
		after = 0
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	if _, err := repo.GetConversation(ctx, s.DB, conversationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, unavailable(err)
	}

	items, err := repo.ListMessagesAfter(ctx, s.DB, conversationID, after, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	return items, nil
}

// Stats returns the message count and highest sequence number of a
// conversation, for conditional responses.
func (s *MessageService) Stats(ctx context.Context, conversationID string) (count, maxSeq int64, err error) {
	return repo.MessagesStats(ctx, s.DB, conversationID)
}

// normalizeBody converts line endings to LF, applies Unicode NFC, trims
// surrounding whitespace, and enforces the length bound.
func (s *MessageService) normalizeBody(raw string) (string, error) {
	b := strings.ReplaceAll(raw, "\r\n", "\n")
	b = strings.ReplaceAll(b, "\r", "\n")
	b = strings.TrimSpace(norm.NFC.String(b))
	if b == "" {
		return "", ErrEmptyBody
	}
	max := s.MaxBodyRunes
	if max <= 0 {
		max = defaultMaxBodyRunes
	}
	if utf8.RuneCountInString(b) > max {
		return "", ErrBodyTooLong
	}
	return b, nil
}
