// Package handlers exposes the messaging API over HTTP and websockets.
//
// Handlers are transport-thin: they bind and validate input, resolve the
// caller from the auth middleware, delegate to the services, and translate
// results (including conditional and replayed responses) into HTTP.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/homefinder-messaging/internal/domain"
	"github.com/tbourn/homefinder-messaging/internal/http/middleware"
	"github.com/tbourn/homefinder-messaging/internal/realtime"
	"github.com/tbourn/homefinder-messaging/internal/services"
)

// ConversationService is the conversation contract consumed by handlers.
type ConversationService interface {
	GetOrCreate(ctx context.Context, propertyID, requesterID string) (*domain.Conversation, bool, error)
	GetForParticipant(ctx context.Context, id, userID string) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]services.ConversationSummary, error)
}

// MessageService is the message-log contract consumed by handlers.
type MessageService interface {
	Append(ctx context.Context, conversationID, senderID, body, idempotencyKey string) (*domain.Message, bool, error)
	List(ctx context.Context, conversationID string, after int64, limit int) ([]domain.Message, error)
	Stats(ctx context.Context, conversationID string) (count, maxSeq int64, err error)
}

// ReadService records read markers.
type ReadService interface {
	MarkRead(ctx context.Context, conversationID, userID string, seq int64) (int64, error)
}

// SessionRegistry is the part of the realtime registry the websocket
// endpoint drives.
type SessionRegistry interface {
	Connect(userID string) *realtime.Session
	Subscribe(sessionID, conversationID string) error
	Unsubscribe(sessionID, conversationID string) error
	Disconnect(sessionID, reason string) bool
	Touch(sessionID string)
}

// Options tunes transport behavior.
type Options struct {
	// PingPeriod is how often the server pings websocket clients. The read
	// deadline is twice this value.
	PingPeriod time.Duration
	// AllowedOrigins restricts websocket upgrades by Origin. Empty allows all.
	AllowedOrigins []string
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	convSvc  ConversationService
	msgSvc   MessageService
	readSvc  ReadService
	sessions SessionRegistry
	opts     Options
}

// New constructs Handlers bound to the given services.
func New(convs ConversationService, msgs MessageService, reads ReadService, sessions SessionRegistry, opts Options) *Handlers {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 30 * time.Second
	}
	return &Handlers{
		convSvc:  convs,
		msgSvc:   msgs,
		readSvc:  reads,
		sessions: sessions,
		opts:     opts,
	}
}

// userID returns the authenticated caller.
func userID(c *gin.Context) string {
	return middleware.UserID(c)
}
