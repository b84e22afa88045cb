package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MarkReadRequest moves the caller's read marker forward.
type MarkReadRequest struct {
	SequenceNumber *int64 `json:"sequenceNumber" binding:"required" example:"2"`
}

// MarkRead godoc
// @ID          markRead
// @Summary     Mark messages as read
// @Description Records that the caller has read the conversation up to sequenceNumber.
// @Description Values above the newest message are clamped; the marker never moves back.
// @Tags        Conversations
// @Accept      json
// @Security    BearerAuth
// @Param       id    path  string                    true  "Conversation ID"  format(uuid)
// @Param       body  body  handlers.MarkReadRequest  true  "Read position"
// @Success     204
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Failure     503   {object}  handlers.ErrorResponse
// @Router      /conversations/{id}/read [post]
func (h *Handlers) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SequenceNumber == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sequenceNumber required")
		return
	}
	if _, err := h.readSvc.MarkRead(c.Request.Context(), c.Param("id"), userID(c), *req.SequenceNumber); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
