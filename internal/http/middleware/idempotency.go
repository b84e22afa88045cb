// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header of message sends and, when
// a lookup is supplied, flags requests that replay an already stored message.
// Replays bypass the rate limiter: the client is retrying something the
// server has already accepted.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/homefinder-messaging/internal/domain"
)

// HeaderIdempotencyKey carries the client's retry token.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the send repeats a message the caller already stored.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyLookup reports whether conversationID already holds a message
// that userID stored under key. Lookup errors never block the request.
type IdempotencyLookup func(ctx context.Context, conversationID, userID, key string) (bool, error)

// IdempotencyValidator checks the Idempotency-Key header and stashes it.
//
//   - No header: no-op.
//   - Malformed header: 400 bad_request.
//   - lookup reports a message the caller stored: replay and rate-bypass
//     flags are set.
//
// Only message sends can be replays. Other routes, and sends without an :id
// route parameter, only get validation.
func IdempotencyValidator(lookup IdempotencyLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if !domain.ValidIdempotencyKey(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if convID := c.Param("id"); lookup != nil && convID != "" && isMessageSend(c) {
			if exists, _ := lookup(c.Request.Context(), convID, UserID(c), key); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

func isMessageSend(c *gin.Context) bool {
	return c.Request.Method == http.MethodPost && strings.HasSuffix(c.FullPath(), "/messages")
}
