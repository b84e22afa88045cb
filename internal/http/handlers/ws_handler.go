// Realtime websocket endpoint.
//
//	GET /ws   (upgrade; authenticate with Authorization or ?access_token=)
//
// Inbound frames:  {"type":"subscribe"|"unsubscribe"|"ping","conversationId":"..."}
// Outbound frames: connected, subscribed, unsubscribed, message, pong, error.
//
// One goroutine reads, one writes. The writer owns the socket for writes and
// drains both control replies and the session's event channel; it exits when
// the registry closes that channel (disconnect or idle reaping).
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tbourn/homefinder-messaging/internal/http/middleware"
	"github.com/tbourn/homefinder-messaging/internal/realtime"
)

const (
	wsWriteWait    = 10 * time.Second
	wsMaxFrameSize = 16 << 10
)

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
}

type controlFrame struct {
	Type           string `json:"type"`
	SessionID      string `json:"sessionId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	LastSequence   *int64 `json:"lastSequence,omitempty"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message,omitempty"`
}

type messageFrame struct {
	Type string `json:"type"`
	realtime.Event
}

func errorFrame(convID, code, msg string) controlFrame {
	return controlFrame{Type: "error", ConversationID: convID, Code: code, Message: msg}
}

func (h *Handlers) upgrader() *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(h.opts.AllowedOrigins))
	for _, o := range h.opts.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// Realtime godoc
// @ID          realtime
// @Summary     Realtime message stream (websocket)
// @Description Upgrades to a websocket. Send {"type":"subscribe","conversationId":"..."} to
// @Description receive that conversation's new messages in order. After a reconnect, list
// @Description messages with after=<last sequence seen> to recover any gap. Message frames
// @Description already queued for the socket may still arrive after the unsubscribed reply;
// @Description clients ignore frames for conversations they no longer follow.
// @Tags        Realtime
// @Security    BearerAuth
// @Param       access_token  query  string  false  "Bearer token for clients that cannot set headers"
// @Success     101
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /ws [get]
func (h *Handlers) Realtime(c *gin.Context) {
	me := userID(c)
	ws, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the client.
		return
	}

	sess := h.sessions.Connect(me)
	lg := middleware.LoggerFrom(c).With().Str("session_id", sess.ID).Logger()

	ctrl := make(chan any, 16)
	writerDone := make(chan struct{})
	go h.writeLoop(ws, sess, ctrl, writerDone, lg)

	defer func() {
		h.sessions.Disconnect(sess.ID, realtime.ReasonClosed)
		<-writerDone
	}()

	send := func(v any) bool {
		select {
		case ctrl <- v:
			return true
		case <-writerDone:
			return false
		}
	}
	send(controlFrame{Type: "connected", SessionID: sess.ID, UserID: me})

	readWait := 2 * h.opts.PingPeriod
	ws.SetReadLimit(wsMaxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPongHandler(func(string) error {
		h.sessions.Touch(sess.ID)
		return ws.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				lg.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readWait))
		h.sessions.Touch(sess.ID)

		var in inboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			if !send(errorFrame("", ErrCodeBadRequest, "malformed frame")) {
				return
			}
			continue
		}
		if !send(h.handleFrame(c, sess, in)) {
			return
		}
	}
}

// handleFrame executes one inbound frame and returns the reply.
func (h *Handlers) handleFrame(c *gin.Context, sess *realtime.Session, in inboundFrame) controlFrame {
	ctx := c.Request.Context()
	switch in.Type {
	case "ping":
		return controlFrame{Type: "pong"}

	case "subscribe":
		if in.ConversationID == "" {
			return errorFrame("", ErrCodeBadRequest, "conversationId required")
		}
		if _, err := h.convSvc.GetForParticipant(ctx, in.ConversationID, sess.UserID); err != nil {
			_, code := statusFor(err)
			return errorFrame(in.ConversationID, code, err.Error())
		}
		if err := h.sessions.Subscribe(sess.ID, in.ConversationID); err != nil {
			return errorFrame(in.ConversationID, ErrCodeUnavailable, "session closed")
		}
		// Read the head after subscribing: anything newer is delivered live.
		conv, err := h.convSvc.GetForParticipant(ctx, in.ConversationID, sess.UserID)
		if err != nil {
			_, code := statusFor(err)
			return errorFrame(in.ConversationID, code, err.Error())
		}
		last := conv.LastSequence
		return controlFrame{Type: "subscribed", ConversationID: in.ConversationID, LastSequence: &last}

	case "unsubscribe":
		if err := h.sessions.Unsubscribe(sess.ID, in.ConversationID); err != nil && !errors.Is(err, realtime.ErrUnknownSession) {
			return errorFrame(in.ConversationID, ErrCodeInternal, err.Error())
		}
		return controlFrame{Type: "unsubscribed", ConversationID: in.ConversationID}

	default:
		return errorFrame(in.ConversationID, ErrCodeBadRequest, "unknown frame type")
	}
}

// writeLoop is the socket's only writer. It returns when the session's event
// channel closes or a write fails, closing the socket either way. Control
// replies and queued events are not ordered against each other.
func (h *Handlers) writeLoop(ws *websocket.Conn, sess *realtime.Session, ctrl <-chan any, done chan<- struct{}, lg zerolog.Logger) {
	ticker := time.NewTicker(h.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
		close(done)
	}()

	write := func(v any) bool {
		_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := ws.WriteJSON(v); err != nil {
			lg.Debug().Err(err).Msg("websocket write failed")
			return false
		}
		return true
	}

	events := sess.Events()
	for {
		select {
		case v := <-ctrl:
			if !write(v) {
				return
			}
		case ev, open := <-events:
			if !open {
				reason := sess.Reason()
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
					time.Now().Add(wsWriteWait))
				return
			}
			if !write(messageFrame{Type: "message", Event: ev}) {
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
