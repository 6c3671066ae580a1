package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry owns the live session records and presence entries for one hub
// instance. It is the only shared mutable state in the delivery layer; every
// method is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	presence map[string]*presenceRecord // keyed by subscriber id
}

type presenceRecord struct {
	entry PresenceEntry
	refs  int // open sessions for this subscriber
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		presence: make(map[string]*presenceRecord),
	}
}

// Register allocates a fresh session for the subscriber described by entry
// and records it. The returned joined flag is true when this is the
// subscriber's first open session, i.e. a "peer joined" notice is due.
// Re-registering overwrites the presence entry rather than duplicating it.
func (r *Registry) Register(entry PresenceEntry, sink Sink) (*Session, bool) {
	sess := newSession(uuid.New().String(), entry, sink)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sess.ID] = sess
	rec, ok := r.presence[entry.Subscriber]
	if !ok {
		r.presence[entry.Subscriber] = &presenceRecord{entry: entry, refs: 1}
		return sess, true
	}
	rec.entry = entry
	rec.refs++
	return sess, false
}

// Unregister removes the session record if present. Removing an unknown id
// is a no-op, not an error: teardown can be triggered both by an explicit
// disconnect and by a failed push, in either order. The returned left flag
// is true when this was the subscriber's last session and its presence entry
// was removed.
func (r *Registry) Unregister(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	delete(r.sessions, sessionID)

	rec, ok := r.presence[sess.Subscriber]
	if !ok {
		return sess, false
	}
	rec.refs--
	if rec.refs > 0 {
		return sess, false
	}
	delete(r.presence, sess.Subscriber)
	return sess, true
}

// Has reports whether the session is still registered.
func (r *Registry) Has(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// SessionsFor returns a point-in-time snapshot of the sessions matching the
// channel. An empty channel selects every session. Callers iterate the copy
// freely while registrations and teardowns proceed underneath.
func (r *Registry) SessionsFor(channel string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if channel == "" || sess.Channel == channel {
			out = append(out, sess)
		}
	}
	return out
}

// Snapshot returns the presence entries visible within the scope. An empty
// scope sees every online subscriber.
func (r *Registry) Snapshot(channel string) []PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PresenceEntry, 0, len(r.presence))
	for _, rec := range r.presence {
		if channel == "" || rec.entry.Channel == channel {
			out = append(out, rec.entry)
		}
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
