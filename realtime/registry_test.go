package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nullSink struct{}

func (nullSink) Push(string, []byte) error { return nil }

func TestRegistry_RegisterReturnsJoinedOnFirstSession(t *testing.T) {
	reg := NewRegistry()

	sess1, joined := reg.Register(PresenceEntry{Subscriber: "u1", Channel: "proj-7"}, nullSink{})
	require.NotNil(t, sess1)
	assert.True(t, joined, "first session should report joined")
	assert.NotEmpty(t, sess1.ID)

	sess2, joined := reg.Register(PresenceEntry{Subscriber: "u1", Channel: "proj-7"}, nullSink{})
	require.NotNil(t, sess2)
	assert.False(t, joined, "second tab must not report joined again")
	assert.NotEqual(t, sess1.ID, sess2.ID, "each connection gets its own session id")
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	sess, _ := reg.Register(PresenceEntry{Subscriber: "u1"}, nullSink{})

	removed, left := reg.Unregister(sess.ID)
	require.NotNil(t, removed)
	assert.True(t, left)

	// Second teardown path (failed push racing explicit disconnect).
	removed, left = reg.Unregister(sess.ID)
	assert.Nil(t, removed)
	assert.False(t, left, "repeated unregister must not report left again")

	removed, left = reg.Unregister("never-existed")
	assert.Nil(t, removed)
	assert.False(t, left)
}

func TestRegistry_PresenceUniqueAcrossTabs(t *testing.T) {
	reg := NewRegistry()

	var ids []string
	for i := 0; i < 3; i++ {
		sess, _ := reg.Register(PresenceEntry{Subscriber: "u1", DisplayName: "Avery", Channel: "proj-7"}, nullSink{})
		ids = append(ids, sess.ID)
	}

	snap := reg.Snapshot("proj-7")
	require.Len(t, snap, 1, "one presence entry regardless of open tabs")
	assert.Equal(t, "u1", snap[0].Subscriber)

	// Closing all but one keeps the entry.
	for _, id := range ids[:2] {
		_, left := reg.Unregister(id)
		assert.False(t, left)
	}
	assert.Len(t, reg.Snapshot("proj-7"), 1)

	// Closing the last one removes it, exactly once.
	_, left := reg.Unregister(ids[2])
	assert.True(t, left)
	assert.Empty(t, reg.Snapshot("proj-7"))
}

func TestRegistry_SessionsForMatchesChannel(t *testing.T) {
	reg := NewRegistry()
	reg.Register(PresenceEntry{Subscriber: "u1", Channel: "proj-7"}, nullSink{})
	reg.Register(PresenceEntry{Subscriber: "u2", Channel: "proj-7"}, nullSink{})
	reg.Register(PresenceEntry{Subscriber: "u3", Channel: "proj-9"}, nullSink{})
	reg.Register(PresenceEntry{Subscriber: "u4"}, nullSink{})

	assert.Len(t, reg.SessionsFor("proj-7"), 2)
	assert.Len(t, reg.SessionsFor("proj-9"), 1)
	assert.Len(t, reg.SessionsFor(""), 4, "global scope selects every session")
	assert.Empty(t, reg.SessionsFor("proj-404"))
}

func TestRegistry_SnapshotIsPointInTimeCopy(t *testing.T) {
	reg := NewRegistry()
	sess, _ := reg.Register(PresenceEntry{Subscriber: "u1", Channel: "proj-7"}, nullSink{})

	sessions := reg.SessionsFor("proj-7")
	require.Len(t, sessions, 1)

	reg.Unregister(sess.ID)

	// The snapshot taken before the unregister is unaffected.
	assert.Len(t, sessions, 1)
	assert.Empty(t, reg.SessionsFor("proj-7"))
}

func TestRegistry_ConcurrentRegisterUnregister(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sub := fmt.Sprintf("u%d", n%10)
			sess, _ := reg.Register(PresenceEntry{Subscriber: sub, Channel: "proj-7"}, nullSink{})
			reg.SessionsFor("proj-7")
			reg.Snapshot("proj-7")
			reg.Unregister(sess.ID)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, reg.Len())
	assert.Empty(t, reg.Snapshot(""))
}
