// Package realtime tracks live sessions and fans newly stored messages out to
// them.
//
// The Registry is an explicit component: callers construct one and pass it
// around; nothing here is package-global except Prometheus collectors.
//
// A single RWMutex gates delivery. Every send into a session channel happens
// under the read lock after re-checking that the session is still subscribed;
// Unsubscribe and Disconnect take the write lock. Once either has returned, no
// further event for the removed subscription reaches the session, and a
// publish racing a disconnect can never send on a closed channel.
package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// State is the lifecycle position of a session.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// Disconnect reasons.
const (
	ReasonClosed      = "closed"
	ReasonIdleTimeout = "idle_timeout"
	ReasonShutdown    = "shutdown"
)

var ErrUnknownSession = errors.New("unknown session")

// Event is one message as delivered to a session.
type Event struct {
	ConversationID string    `json:"conversationId"`
	SequenceNumber int64     `json:"sequenceNumber"`
	MessageID      string    `json:"messageId"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sentAt"`
}

// Options tunes a Registry. Zero values fall back to defaults.
type Options struct {
	IdleTimeout     time.Duration
	Buffer          int
	DeliveryRetries int
	DeliveryBackoff time.Duration
	Logger          *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 2 * time.Minute
	}
	if o.Buffer <= 0 {
		o.Buffer = 64
	}
	if o.DeliveryRetries <= 0 {
		o.DeliveryRetries = 3
	}
	if o.DeliveryBackoff <= 0 {
		o.DeliveryBackoff = 50 * time.Millisecond
	}
	return o
}

// Session is one live connection of a user. Events are read from Events()
// until the channel is closed by Disconnect.
type Session struct {
	ID     string
	UserID string

	pending  chan queued
	out      chan Event
	done     chan struct{}
	lastSeen atomic.Int64
	reason   atomic.Value
}

// Events returns the session's outbound channel. The Registry closes it when
// the session disconnects.
func (s *Session) Events() <-chan Event { return s.out }

// Done is closed when the session disconnects.
func (s *Session) Done() <-chan struct{} { return s.done }

// Reason reports why the session was disconnected, or "" while it is live.
func (s *Session) Reason() string {
	v, _ := s.reason.Load().(string)
	return v
}

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// Registry maps sessions to the conversations they follow.
type Registry struct {
	opts Options
	log  zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	byConv   map[string]map[string]struct{} // conversationID -> sessionIDs
	bySess   map[string]map[string]uint64   // sessionID -> conversationID -> subscription generation
	gen      uint64

	now func() time.Time
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts Options) *Registry {
	opts = opts.withDefaults()
	l := log.Logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	return &Registry{
		opts:     opts,
		log:      l.With().Str("component", "realtime").Logger(),
		sessions: make(map[string]*Session),
		byConv:   make(map[string]map[string]struct{}),
		bySess:   make(map[string]map[string]uint64),
		now:      time.Now,
	}
}

// Connect registers a new session for userID and starts its delivery pump.
func (r *Registry) Connect(userID string) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		UserID:  userID,
		pending: make(chan queued, r.opts.Buffer),
		out:     make(chan Event, r.opts.Buffer),
		done:    make(chan struct{}),
	}
	s.touch(r.now())

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.bySess[s.ID] = make(map[string]uint64)
	r.mu.Unlock()

	sessionsActive.Inc()
	r.log.Debug().Str("session_id", s.ID).Str("user_id", userID).Msg("session connected")

	go r.pump(s)
	return s
}

// Subscribe adds conversationID to the session's subscriptions. Subscribing
// twice is a no-op.
func (r *Registry) Subscribe(sessionID, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	convs := r.bySess[sessionID]
	if _, dup := convs[conversationID]; dup {
		return nil
	}
	r.gen++
	convs[conversationID] = r.gen
	set := r.byConv[conversationID]
	if set == nil {
		set = make(map[string]struct{})
		r.byConv[conversationID] = set
	}
	set[sessionID] = struct{}{}
	s.touch(r.now())

	subscriptionsActive.Inc()
	return nil
}

// Unsubscribe removes conversationID from the session's subscriptions. After
// it returns, no event of that conversation is delivered to the session.
func (r *Registry) Unsubscribe(sessionID, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return ErrUnknownSession
	}
	r.unsubscribeLocked(sessionID, conversationID)
	return nil
}

func (r *Registry) unsubscribeLocked(sessionID, conversationID string) {
	convs := r.bySess[sessionID]
	if _, ok := convs[conversationID]; !ok {
		return
	}
	delete(convs, conversationID)
	if set := r.byConv[conversationID]; set != nil {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.byConv, conversationID)
		}
	}
	subscriptionsActive.Dec()
}

// Disconnect removes the session and all of its subscriptions and closes its
// channels. It reports whether the session was live.
func (r *Registry) Disconnect(sessionID, reason string) bool {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	for conv := range r.bySess[sessionID] {
		r.unsubscribeLocked(sessionID, conv)
	}
	delete(r.bySess, sessionID)
	delete(r.sessions, sessionID)
	s.reason.Store(reason)
	close(s.done)
	close(s.out)
	r.mu.Unlock()

	sessionsActive.Dec()
	r.log.Debug().Str("session_id", sessionID).Str("reason", reason).Msg("session disconnected")
	return true
}

// Touch records activity on a session, postponing its idle timeout.
func (r *Registry) Touch(sessionID string) {
	r.mu.RLock()
	s := r.sessions[sessionID]
	r.mu.RUnlock()
	if s != nil {
		s.touch(r.now())
	}
}

// Session returns a live session by ID.
func (r *Registry) Session(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// State reports the lifecycle state of a session.
func (r *Registry) State(sessionID string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return StateDisconnected
	}
	if len(r.bySess[sessionID]) > 0 {
		return StateSubscribed
	}
	return StateConnected
}

// Subscribers returns the IDs of sessions subscribed to conversationID, sorted.
func (r *Registry) Subscribers(conversationID string) []string {
	r.mu.RLock()
	ids := lo.Keys(r.byConv[conversationID])
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Subscriptions returns the conversations a session follows, sorted.
func (r *Registry) Subscriptions(sessionID string) []string {
	r.mu.RLock()
	ids := lo.Keys(r.bySess[sessionID])
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Run disconnects sessions idle for longer than the idle timeout until ctx
// is done, then disconnects every remaining session.
func (r *Registry) Run(ctx context.Context) {
	interval := r.opts.IdleTimeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-t.C:
			r.reapIdle()
		}
	}
}

func (r *Registry) reapIdle() {
	cutoff := r.now().Add(-r.opts.IdleTimeout).UnixNano()

	r.mu.RLock()
	idle := lo.FilterMap(lo.Values(r.sessions), func(s *Session, _ int) (string, bool) {
		return s.ID, s.lastSeen.Load() < cutoff
	})
	r.mu.RUnlock()

	for _, id := range idle {
		if r.Disconnect(id, ReasonIdleTimeout) {
			r.log.Info().Str("session_id", id).Msg("idle session reaped")
		}
	}
}

// Close disconnects every session.
func (r *Registry) Close() {
	r.mu.RLock()
	ids := lo.Keys(r.sessions)
	r.mu.RUnlock()
	for _, id := range ids {
		r.Disconnect(id, ReasonShutdown)
	}
}

// subscriptionLocked returns the generation of a live subscription, or 0.
// It must be called with r.mu held.
func (r *Registry) subscriptionLocked(sessionID, conversationID string) uint64 {
	return r.bySess[sessionID][conversationID]
}
