// Package broker carries events from external producers (grading, chat and
// notification services) into the hub over a pub/sub topic. The hub itself
// stays single-process; the broker is only an ingest path handing payloads
// to the broadcaster.
package broker

import (
	"context"
	"encoding/json"
)

// Envelope is the wire form of one produced event. Origin identifies the
// publishing instance so a hub that mirrors its own HTTP submissions onto
// the topic can skip them when they come back around.
type Envelope struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Channel string          `json:"channel,omitempty"`
	Body    json.RawMessage `json:"body"`
	Origin  string          `json:"origin,omitempty"`
}

// MessageBroker abstracts the pub/sub transport used for event ingest.
type MessageBroker interface {
	// Publish sends an envelope to the topic.
	Publish(ctx context.Context, topic string, env Envelope) error
	// Subscribe starts consuming the topic; the channel closes when the
	// context is done or the broker shuts down.
	Subscribe(ctx context.Context, topic string) (<-chan Envelope, error)
	// Type names the backing implementation, for logs and metrics labels.
	Type() string
	// Close releases the broker's resources.
	Close() error
}
