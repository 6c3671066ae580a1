// Package realtime implements the in-process delivery core: the session
// registry, the channel broadcaster and the heartbeat driver. Transports
// plug in through the Sink interface; the stream package provides the SSE
// one.
package realtime

import (
	"encoding/json"
	"log"
	"time"

	"github.com/edupulse/hub/metrics"
)

// Hub is the delivery core: it composes the session registry with the
// channel broadcaster and the heartbeat driver. One Hub is created per
// process and shared by every stream connection and event producer.
type Hub struct {
	registry          *Registry
	heartbeatInterval time.Duration
}

// Option configures a Hub.
type Option func(*Hub)

// WithHeartbeatInterval overrides the default 30s heartbeat period.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Hub) { h.heartbeatInterval = d }
}

// NewHub creates a hub with an empty registry.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		registry:          NewRegistry(),
		heartbeatInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry exposes the session registry for read-side callers.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect registers a session for the subscriber, announces the join to its
// channel peers (never to the joiner itself), and starts the session's
// heartbeat loop. The returned session is live until Disconnect.
func (h *Hub) Connect(entry PresenceEntry, sink Sink) *Session {
	sess, joined := h.registry.Register(entry, sink)
	metrics.ActiveSessions.Inc()
	metrics.TotalSessions.Inc()

	if joined {
		body, _ := json.Marshal(entry)
		h.BroadcastExcluding(Event{
			Kind:    KindPeerJoined,
			Channel: entry.Channel,
			Body:    body,
		}, entry.Subscriber)
	}

	go h.heartbeatLoop(sess)
	return sess
}

// Disconnect tears a session down: it cancels the session (stopping the
// heartbeat loop and invalidating the sink), removes the registry record,
// and announces the departure when this was the subscriber's last session.
// It is safe to call from multiple paths; only the call that actually
// removes the record emits the peer_left notice.
func (h *Hub) Disconnect(sessionID string) {
	sess, left := h.registry.Unregister(sessionID)
	if sess == nil {
		return
	}
	sess.close()
	// Wait out an in-flight push so the sink is never touched after this
	// returns; new pushes are already rejected by the cancelled context.
	sess.writeMu.Lock()
	sess.writeMu.Unlock()
	metrics.ActiveSessions.Dec()

	if left {
		body, _ := json.Marshal(PresenceEntry{
			Subscriber: sess.Subscriber,
			Channel:    sess.Channel,
		})
		h.BroadcastExcluding(Event{
			Kind:    KindPeerLeft,
			Channel: sess.Channel,
			Body:    body,
		}, sess.Subscriber)
	}
}

// Broadcast fans the event out to every session matching its channel.
func (h *Hub) Broadcast(ev Event) {
	h.BroadcastExcluding(ev, "")
}

// BroadcastExcluding fans the event out while skipping sessions owned by
// one subscriber, used for join/leave notices so the actor does not see its
// own transition. A push failure on one sink tears down only that session,
// asynchronously; delivery to the remaining sessions always proceeds.
func (h *Hub) BroadcastExcluding(ev Event, excludedSubscriber string) {
	metrics.EventsBroadcast.WithLabelValues(ev.Kind).Inc()

	for _, sess := range h.registry.SessionsFor(ev.Channel) {
		if excludedSubscriber != "" && sess.Subscriber == excludedSubscriber {
			continue
		}
		if err := sess.Push(ev.Kind, ev.Body); err != nil {
			metrics.DeliveryFailures.Inc()
			log.Printf("Push to session %s failed, dropping it: %v", sess.ID, err)
			go h.Disconnect(sess.ID)
			continue
		}
		metrics.FramesDelivered.Inc()
	}
}

// Snapshot returns the presence entries visible within the scope.
func (h *Hub) Snapshot(channel string) []PresenceEntry {
	return h.registry.Snapshot(channel)
}
