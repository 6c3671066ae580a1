// Package client consumes a hub push stream and keeps it alive across
// network flaps: it reopens the stream with bounded exponential backoff,
// watches for silent connection death via the heartbeat cadence, and gives
// up after a fixed number of consecutive failures.
package client

import (
	"context"
	"errors"
	"fmt"
)

// Frame is one decoded push frame: the kind and its JSON body.
type Frame struct {
	Kind string
	Data []byte
}

// Conn is one open stream connection.
type Conn interface {
	// Recv blocks for the next frame. It returns an error when the stream
	// ends or the connection is closed.
	Recv() (Frame, error)
	Close() error
}

// Params identify the subscriber and scope of a stream.
type Params struct {
	Subscriber  string
	Channel     string
	DisplayName string
	Role        string
}

// Dialer opens stream connections. The production implementation is
// SSEDialer; tests substitute scripted fakes.
type Dialer interface {
	Dial(ctx context.Context, p Params) (Conn, error)
}

// TerminalError marks an open failure that will repeat identically on every
// retry, such as a rejected request. The reconnector gives up immediately
// instead of burning its attempt budget on it.
type TerminalError struct {
	StatusCode int
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("stream rejected with status %d", e.StatusCode)
}

// IsTerminal reports whether err is a TerminalError.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
