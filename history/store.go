package history

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one persisted event: a chat message or a grade alert that new
// and reconnecting subscribers replay before going live.
type Record struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Channel   string          `json:"channel,omitempty"`
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store defines the backlog persistence interface. Implementations keep at
// most a bounded number of records per channel; older records are trimmed.
type Store interface {
	// Append stores a new record for its channel.
	Append(ctx context.Context, rec Record) error
	// Recent returns up to limit of the newest records for the channel,
	// in original (oldest-first) order.
	Recent(ctx context.Context, channel string, limit int) ([]Record, error)
	// Acknowledge marks a record as seen by an actor.
	Acknowledge(ctx context.Context, recordID, actor string) error
}
