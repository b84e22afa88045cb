// Conversation HTTP handlers.
//
//   - POST /conversations        (get or create the conversation for a listing)
//   - GET  /conversations        (the caller's conversations, newest activity first)
//   - GET  /conversations/{id}   (one conversation, participants only)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/tbourn/homefinder-messaging/internal/domain"
	"github.com/tbourn/homefinder-messaging/internal/services"
)

// CreateConversationRequest opens (or reopens) the conversation about a listing.
type CreateConversationRequest struct {
	PropertyID string `json:"propertyId" binding:"required" example:"P123"`
	// RequesterID defaults to the authenticated user and must match it when set.
	RequesterID string `json:"requesterId,omitempty" example:"client1"`
}

// ConversationResponse describes one conversation.
type ConversationResponse struct {
	ConversationID string     `json:"conversationId" example:"3f1c2b9e-1c2d-4e5f-8a9b-0c1d2e3f4a5b"`
	PropertyID     string     `json:"propertyId" example:"P123"`
	OwnerID        string     `json:"ownerId" example:"owner1"`
	ClientID       string     `json:"clientId" example:"client1"`
	LastSequence   int64      `json:"lastSequence" example:"2"`
	LastMessageAt  *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// ConversationSummaryResponse is one entry of the caller's inbox.
type ConversationSummaryResponse struct {
	ConversationResponse
	PropertyTitle    string          `json:"propertyTitle" example:"Sunny two-bedroom flat"`
	CounterpartID    string          `json:"counterpartId" example:"owner1"`
	LastReadSequence int64           `json:"lastReadSequence" example:"1"`
	UnreadCount      int64           `json:"unreadCount" example:"1"`
	LastMessage      *domain.Message `json:"lastMessage,omitempty"`
}

// ListConversationsResponse wraps the caller's inbox.
type ListConversationsResponse struct {
	Conversations []ConversationSummaryResponse `json:"conversations"`
}

func toConversationResponse(c domain.Conversation) ConversationResponse {
	return ConversationResponse{
		ConversationID: c.ID,
		PropertyID:     c.PropertyID,
		OwnerID:        c.OwnerID,
		ClientID:       c.ClientID,
		LastSequence:   c.LastSequence,
		LastMessageAt:  c.LastMessageAt,
		CreatedAt:      c.CreatedAt,
	}
}

// CreateConversation godoc
// @ID          createConversation
// @Summary     Get or create the conversation for a listing
// @Description Returns the single conversation between the listing's owner and the caller,
// @Description creating it on first contact. Safe to repeat.
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateConversationRequest  true  "Listing to talk about"
// @Success     201   {object}  handlers.ConversationResponse       "Created"
// @Success     200   {object}  handlers.ConversationResponse       "Already existed"
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse              "requesterId differs from the caller"
// @Failure     404   {object}  handlers.ErrorResponse              "Property not found"
// @Failure     409   {object}  handlers.ErrorResponse              "Owner contacting their own listing"
// @Failure     503   {object}  handlers.ErrorResponse
// @Router      /conversations [post]
func (h *Handlers) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "propertyId required")
		return
	}
	me := userID(c)
	if r := strings.TrimSpace(req.RequesterID); r != "" && r != me {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "requesterId must be the authenticated user")
		return
	}

	conv, created, err := h.convSvc.GetOrCreate(c.Request.Context(), strings.TrimSpace(req.PropertyID), me)
	if err != nil {
		failService(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		c.Header("Location", c.FullPath()+"/"+conv.ID)
	}
	ok(c, status, toConversationResponse(*conv))
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List the caller's conversations
// @Description Every conversation the caller owns or started, most recent activity first,
// @Description with the last message and the number of unread messages.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ListConversationsResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	items, err := h.convSvc.ListForUser(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: lo.Map(items, func(s services.ConversationSummary, _ int) ConversationSummaryResponse {
			return ConversationSummaryResponse{
				ConversationResponse: toConversationResponse(s.Conversation),
				PropertyTitle:        s.PropertyTitle,
				CounterpartID:        s.Counterpart,
				LastReadSequence:     s.LastReadSequence,
				UnreadCount:          s.UnreadCount,
				LastMessage:          s.LastMessage,
			}
		}),
	})
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Get one conversation
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Conversation ID"  format(uuid)
// @Success     200  {object}  handlers.ConversationResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /conversations/{id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	conv, err := h.convSvc.GetForParticipant(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, toConversationResponse(*conv))
}
