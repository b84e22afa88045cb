// Message HTTP handlers.
//
//   - POST /conversations/{id}/messages   (append to the conversation's log)
//   - GET  /conversations/{id}/messages   (read the log after a sequence cursor)
//
// Idempotency: a key may arrive in the Idempotency-Key header or the body.
// Resending with the same key returns the stored message with
// `Idempotency-Replayed: true` instead of storing it twice.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/homefinder-messaging/internal/domain"
	"github.com/tbourn/homefinder-messaging/internal/http/middleware"
	"github.com/tbourn/homefinder-messaging/internal/utils"
)

// PostMessageRequest is the payload for sending a message.
type PostMessageRequest struct {
	// SenderID defaults to the authenticated user and must match it when set.
	SenderID       string `json:"senderId,omitempty" example:"client1"`
	Body           string `json:"body" binding:"required" example:"Hello, I'm interested"`
	IdempotencyKey string `json:"idempotencyKey,omitempty" example:"7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab"`
}

// PostMessageResponse acknowledges a stored message.
type PostMessageResponse struct {
	MessageID      string    `json:"messageId" example:"5b6c7d8e-9f00-4a1b-8c2d-3e4f5a6b7c8d"`
	SequenceNumber int64     `json:"sequenceNumber" example:"1"`
	SentAt         time.Time `json:"sentAt"`
}

// MessageItem is one message of a list page.
type MessageItem struct {
	MessageID      string    `json:"messageId"`
	SenderID       string    `json:"senderId" example:"owner1"`
	Body           string    `json:"body" example:"Thanks for your interest!"`
	SequenceNumber int64     `json:"sequenceNumber" example:"2"`
	SentAt         time.Time `json:"sentAt"`
}

// ListMessagesResponse is a page of the log. Request the next page with
// after=nextAfter while hasMore is true.
type ListMessagesResponse struct {
	Messages  []MessageItem `json:"messages"`
	NextAfter int64         `json:"nextAfter" example:"2"`
	HasMore   bool          `json:"hasMore"`
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message
// @Description Appends a message to the conversation and delivers it to subscribed sessions.
// @Description Supports safe retries via the Idempotency-Key header (same key, same message).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header    string                       false  "Retry token"
// @Param       id               path      string                       true   "Conversation ID"  format(uuid)
// @Param       body             body      handlers.PostMessageRequest  true   "Message"
// @Success     201              {object}  handlers.PostMessageResponse        "Stored"
// @Success     200              {object}  handlers.PostMessageResponse        "Replay of an earlier send"
// @Failure     400              {object}  handlers.ErrorResponse
// @Failure     401              {object}  handlers.ErrorResponse
// @Failure     403              {object}  handlers.ErrorResponse              "Not a participant"
// @Failure     404              {object}  handlers.ErrorResponse              "Conversation not found"
// @Failure     503              {object}  handlers.ErrorResponse              "Retry with the same key"
// @Router      /conversations/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		return
	}
	me := userID(c)
	if s := strings.TrimSpace(req.SenderID); s != "" && s != me {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "senderId must be the authenticated user")
		return
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if hdr, present := middleware.GetIdempotencyKey(c); present {
		if key != "" && key != hdr {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "idempotency key in header and body differ")
			return
		}
		key = hdr
	}

	m, replayed, err := h.msgSvc.Append(c.Request.Context(), c.Param("id"), me, req.Body, key)
	if err != nil {
		failService(c, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		c.Header("Idempotency-Replayed", "true")
		status = http.StatusOK
	}
	ok(c, status, PostMessageResponse{
		MessageID:      m.ID,
		SequenceNumber: m.SequenceNumber,
		SentAt:         m.SentAt,
	})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages after a sequence number
// @Description Returns messages with sequenceNumber > after in ascending order. Used for the
// @Description initial history load and for catch-up after a reconnect. Supports weak ETags.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id             path      string  true   "Conversation ID"  format(uuid)
// @Param       after          query     int     false  "Last sequence number already seen"  default(0)
// @Param       limit          query     int     false  "Page size (max 500)"                default(100)
// @Param       If-None-Match  header    string  false  "ETag from a previous response"
// @Success     200            {object}  handlers.ListMessagesResponse
// @Success     304            "Not Modified"
// @Failure     400            {object}  handlers.ErrorResponse
// @Failure     401            {object}  handlers.ErrorResponse
// @Failure     403            {object}  handlers.ErrorResponse
// @Failure     404            {object}  handlers.ErrorResponse
// @Failure     503            {object}  handlers.ErrorResponse
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	convID := c.Param("id")

	after, err := utils.ParseSequence(c.Query("after"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "after must be a non-negative integer")
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 0)

	conv, err := h.convSvc.GetForParticipant(ctx, convID, userID(c))
	if err != nil {
		failService(c, err)
		return
	}

	count, maxSeq, err := h.msgSvc.Stats(ctx, convID)
	if err != nil {
		failService(c, err)
		return
	}
	etag := fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d"`, convID, count, maxSeq, after, limit)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Header("ETag", etag)
		c.Status(http.StatusNotModified)
		return
	}

	msgs, err := h.msgSvc.List(ctx, convID, after, limit)
	if err != nil {
		failService(c, err)
		return
	}

	resp := ListMessagesResponse{Messages: make([]MessageItem, 0, len(msgs)), NextAfter: after}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, toMessageItem(m))
	}
	if n := len(msgs); n > 0 {
		resp.NextAfter = msgs[n-1].SequenceNumber
	}
	resp.HasMore = resp.NextAfter < max(maxSeq, conv.LastSequence)

	c.Header("ETag", etag)
	ok(c, http.StatusOK, resp)
}

func toMessageItem(m domain.Message) MessageItem {
	return MessageItem{
		MessageID:      m.ID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		SequenceNumber: m.SequenceNumber,
		SentAt:         m.SentAt,
	}
}
