package history

import (
	"context"
	"sync"
)

// MemoryStore keeps the backlog in process memory. It is the default
// backend for a single-instance deployment and the test double for the
// Redis-backed one.
type MemoryStore struct {
	mu       sync.RWMutex
	maxLen   int
	channels map[string][]Record
	acks     map[string][]string // record id -> actors
}

// NewMemoryStore creates a store trimming each channel to maxLen records.
func NewMemoryStore(maxLen int) *MemoryStore {
	return &MemoryStore{
		maxLen:   maxLen,
		channels: make(map[string][]Record),
		acks:     make(map[string][]string),
	}
}

// Append stores the record, dropping the oldest when the channel is full.
func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := append(s.channels[rec.Channel], rec)
	if len(recs) > s.maxLen {
		recs = recs[len(recs)-s.maxLen:]
	}
	s.channels[rec.Channel] = recs
	return nil
}

// Recent returns the newest records for the channel, oldest first.
func (s *MemoryStore) Recent(_ context.Context, channel string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.channels[channel]
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	out := make([]Record, len(recs))
	copy(out, recs)
	return out, nil
}

// Acknowledge records the actor against the record id.
func (s *MemoryStore) Acknowledge(_ context.Context, recordID, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks[recordID] = append(s.acks[recordID], actor)
	return nil
}

// AcknowledgedBy returns the actors that acknowledged the record.
func (s *MemoryStore) AcknowledgedBy(recordID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.acks[recordID]))
	copy(out, s.acks[recordID])
	return out
}
