package realtime

import (
	"time"

	"github.com/tbourn/homefinder-messaging/internal/domain"
)

// Broker fans stored messages out to subscribed sessions. It never blocks
// the caller and never buffers for sessions that are not subscribed.
type Broker struct {
	reg *Registry
}

// NewBroker returns a Broker delivering through reg.
func NewBroker(reg *Registry) *Broker {
	return &Broker{reg: reg}
}

// EventFromMessage converts a stored message into its delivery form.
func EventFromMessage(m domain.Message) Event {
	return Event{
		ConversationID: m.ConversationID,
		SequenceNumber: m.SequenceNumber,
		MessageID:      m.ID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		SentAt:         m.SentAt,
	}
}

// Publish enqueues m for every session currently subscribed to its
// conversation and returns immediately. A session whose queue is full misses
// the event and recovers it by listing after its last known sequence.
func (b *Broker) Publish(m domain.Message) {
	messagesPublished.Inc()
	b.reg.enqueue(EventFromMessage(m))
}

// queued is a pending event bound to the subscription it was published for,
// so a later re-subscribe does not revive events queued for an earlier one.
type queued struct {
	ev  Event
	gen uint64
}

// enqueue places ev on the pending queue of each subscriber without blocking.
func (r *Registry) enqueue(ev Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for sid := range r.byConv[ev.ConversationID] {
		s := r.sessions[sid]
		if s == nil {
			continue
		}
		select {
		case s.pending <- queued{ev: ev, gen: r.subscriptionLocked(sid, ev.ConversationID)}:
			n++
		default:
			deliveriesTotal.WithLabelValues(outcomeQueueFull).Inc()
			r.log.Warn().
				Str("session_id", sid).
				Str("conversation_id", ev.ConversationID).
				Int64("sequence", ev.SequenceNumber).
				Msg("delivery queue full; dropping event")
		}
	}
	return n
}

// pump moves pending events to the session's outbound channel in FIFO order
// until the session disconnects.
func (r *Registry) pump(s *Session) {
	for {
		select {
		case <-s.done:
			return
		case q := <-s.pending:
			r.deliverWithRetry(s, q)
		}
	}
}

func (r *Registry) deliverWithRetry(s *Session, q queued) {
	ev := q.ev
	for attempt := 1; ; attempt++ {
		sent, live := r.tryDeliver(s, q)
		switch {
		case sent:
			deliveriesTotal.WithLabelValues(outcomeDelivered).Inc()
			return
		case !live:
			deliveriesTotal.WithLabelValues(outcomeStale).Inc()
			return
		case attempt >= r.opts.DeliveryRetries:
			deliveriesTotal.WithLabelValues(outcomeRetryFail).Inc()
			r.log.Warn().
				Str("session_id", s.ID).
				Str("conversation_id", ev.ConversationID).
				Int64("sequence", ev.SequenceNumber).
				Int("attempts", attempt).
				Msg("session not draining; dropping event")
			return
		}

		t := time.NewTimer(r.opts.DeliveryBackoff)
		select {
		case <-s.done:
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// tryDeliver sends the event to the session without blocking. live is false
// when the subscription it was queued for has ended or the session is gone.
func (r *Registry) tryDeliver(s *Session, q queued) (sent, live bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.sessions[s.ID] != s || r.subscriptionLocked(s.ID, q.ev.ConversationID) != q.gen {
		return false, false
	}
	select {
	case s.out <- q.ev:
		return true, true
	default:
		return false, true
	}
}
