package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/hub/broker"
	"github.com/edupulse/hub/history"
	"github.com/edupulse/hub/metrics"
	"github.com/edupulse/hub/realtime"
)

// Handler serves the push-stream endpoint and the request/response paths
// that feed it (event submission, acknowledgments).
type Handler struct {
	hub     *realtime.Hub
	store   history.Store
	backlog int

	// Optional ingest-broker mirroring; see WithBroker.
	broker broker.MessageBroker
	topic  string
	origin string
}

// NewHandler creates a handler replaying at most backlog records on open.
func NewHandler(hub *realtime.Hub, store history.Store, backlog int) *Handler {
	return &Handler{
		hub:     hub,
		store:   store,
		backlog: backlog,
	}
}

// WithBroker mirrors locally submitted events onto the ingest topic and
// tags them with this instance's origin id so ListenForEvents can skip
// them when they come back around.
func (h *Handler) WithBroker(b broker.MessageBroker, topic, origin string) *Handler {
	h.broker = b
	h.topic = topic
	h.origin = origin
	return h
}

// ServeStream handles a long-lived push connection. The connection moves
// through three states: validate the identity parameter before anything is
// registered, then register and synchronously push the presence snapshot
// and the bounded backlog, then stay open purely push-driven until the
// client goes away.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subscriber := q.Get("subscriber")
	if subscriber == "" {
		http.Error(w, "missing required parameter: subscriber", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	channel := q.Get("channel")
	name := q.Get("name")
	if name == "" {
		name = subscriber
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Tell EventSource-style consumers how long to wait before their own
	// transport-level retry if the connection does drop.
	fmt.Fprint(w, "retry: 2000\n\n")
	flusher.Flush()

	entry := realtime.PresenceEntry{
		Subscriber:  subscriber,
		DisplayName: name,
		Role:        q.Get("role"),
		Channel:     channel,
	}
	sess := h.hub.Connect(entry, newSSESink(w, flusher))
	// Teardown runs exactly once no matter which path closes the
	// connection; Disconnect is idempotent so a racing push failure is safe.
	defer h.hub.Disconnect(sess.ID)

	snapshot, err := json.Marshal(h.hub.Snapshot(channel))
	if err != nil {
		log.Printf("Failed to marshal presence snapshot for %s: %v", subscriber, err)
		return
	}
	if err := sess.Push(realtime.KindPresenceSnapshot, snapshot); err != nil {
		return
	}

	if h.backlog > 0 {
		recs, err := h.store.Recent(r.Context(), channel, h.backlog)
		if err != nil {
			log.Printf("History replay for channel %q failed: %v", channel, err)
		}
		for _, rec := range recs {
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			if err := sess.Push(rec.Kind, data); err != nil {
				return
			}
			metrics.HistoryReplayed.Inc()
		}
	}

	// Delivery is push-driven from here; broadcasts and heartbeats write to
	// the sink from their own goroutines. Block until the client goes away
	// or the hub tears the session down after a failed push.
	select {
	case <-r.Context().Done():
	case <-sess.Done():
	}
}

type publishRequest struct {
	Kind    string          `json:"kind"`
	Channel string          `json:"channel,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// ServePublish accepts an event from a producer, persists it when it is a
// replayable kind, hands it to the broadcaster, and returns without waiting
// for any delivery.
func (h *Handler) ServePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		http.Error(w, "missing required field: kind", http.StatusBadRequest)
		return
	}

	rec := history.Record{
		ID:        uuid.New().String(),
		Kind:      req.Kind,
		Channel:   req.Channel,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	}

	if replayable(rec.Kind) {
		if err := h.store.Append(r.Context(), rec); err != nil {
			log.Printf("Failed to persist event %s: %v", rec.ID, err)
			http.Error(w, "failed to persist event", http.StatusInternalServerError)
			return
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		http.Error(w, "invalid event body", http.StatusBadRequest)
		return
	}
	h.hub.Broadcast(realtime.Event{Kind: rec.Kind, Channel: rec.Channel, Body: data})

	if h.broker != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			env := broker.Envelope{
				ID:      rec.ID,
				Kind:    rec.Kind,
				Channel: rec.Channel,
				Body:    rec.Body,
				Origin:  h.origin,
			}
			if err := h.broker.Publish(ctx, h.topic, env); err != nil {
				log.Printf("Failed to mirror event %s to broker: %v", rec.ID, err)
			}
		}()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"id": rec.ID, "status": "accepted"})
}

type ackRequest struct {
	ID      string `json:"id"`
	Actor   string `json:"actor"`
	Channel string `json:"channel,omitempty"`
}

// ServeAck records that an actor has seen an alert or message, then
// broadcasts a follow-up alert frame so the actor's other tabs and peers
// can clear it locally.
func (h *Handler) ServeAck(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Actor == "" {
		http.Error(w, "missing required fields: id, actor", http.StatusBadRequest)
		return
	}

	if err := h.store.Acknowledge(r.Context(), req.ID, req.Actor); err != nil {
		log.Printf("Failed to record ack for %s: %v", req.ID, err)
		http.Error(w, "failed to record acknowledgment", http.StatusInternalServerError)
		return
	}

	body, _ := json.Marshal(map[string]string{
		"id":             req.ID,
		"acknowledgedBy": req.Actor,
	})
	h.hub.Broadcast(realtime.Event{Kind: realtime.KindAlert, Channel: req.Channel, Body: body})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ListenForEvents consumes the ingest topic and hands every envelope from
// another origin to the broadcaster. Producers that cannot reach the HTTP
// submission path publish here instead.
func (h *Handler) ListenForEvents(ctx context.Context) {
	if h.broker == nil {
		return
	}

	envelopes, err := h.broker.Subscribe(ctx, h.topic)
	if err != nil {
		log.Fatalf("Failed to subscribe to %s: %v", h.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-envelopes:
			if !ok {
				log.Println("Ingest channel closed")
				return
			}
			// Skip envelopes this instance mirrored onto the topic itself.
			if env.Origin != "" && env.Origin == h.origin {
				continue
			}

			rec := history.Record{
				ID:        env.ID,
				Kind:      env.Kind,
				Channel:   env.Channel,
				Body:      env.Body,
				CreatedAt: time.Now().UTC(),
			}
			if rec.ID == "" {
				rec.ID = uuid.New().String()
			}
			if replayable(rec.Kind) {
				if err := h.store.Append(ctx, rec); err != nil {
					log.Printf("Failed to persist ingested event %s: %v", rec.ID, err)
				}
			}
			data, err := json.Marshal(rec)
			if err != nil {
				log.Printf("Failed to marshal ingested event %s: %v", rec.ID, err)
				continue
			}
			h.hub.Broadcast(realtime.Event{Kind: rec.Kind, Channel: rec.Channel, Body: data})
		}
	}
}

// replayable reports whether records of this kind are persisted for backlog
// replay. Presence and heartbeat traffic is ephemeral.
func replayable(kind string) bool {
	return kind == realtime.KindMessage || kind == realtime.KindAlert
}
