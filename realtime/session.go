package realtime

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionClosed is returned by Push after a session has been torn down.
var ErrSessionClosed = errors.New("session closed")

// Sink is the write handle used to push frames to one connection. A Sink is
// not safe for concurrent use; Session serializes access to it.
type Sink interface {
	Push(kind string, data []byte) error
}

// Session represents one open push connection.
type Session struct {
	ID         string
	Subscriber string
	Channel    string // "" = global scope

	sink   Sink
	ctx    context.Context
	cancel context.CancelFunc

	// writeMu serializes all pushes to the sink. Broadcasts and the
	// heartbeat loop target the same connection concurrently; without
	// single-writer discipline frames interleave and corrupt the stream.
	writeMu sync.Mutex
}

func newSession(id string, entry PresenceEntry, sink Sink) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:         id,
		Subscriber: entry.Subscriber,
		Channel:    entry.Channel,
		sink:       sink,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Push writes one frame to the session's sink. It fails with
// ErrSessionClosed once the session has been torn down, so a broadcast
// racing a disconnect never touches a released sink.
func (s *Session) Push(kind string, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}
	return s.sink.Push(kind, data)
}

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Session) close() {
	s.cancel()
}
