package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/hub/realtime"
)

// fakeConn delivers scripted frames and fails with io.EOF once closed.
type fakeConn struct {
	frames chan Frame
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan Frame, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Recv() (Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		return Frame{}, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// scriptedDialer runs through its script, then keeps failing.
type scriptedDialer struct {
	mu     sync.Mutex
	script []func() (Conn, error)
	calls  int
}

func (d *scriptedDialer) Dial(context.Context, Params) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i < len(d.script) {
		return d.script[i]()
	}
	return nil, errors.New("dial failed")
}

func (d *scriptedDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func failDial() func() (Conn, error) {
	return func() (Conn, error) { return nil, errors.New("dial failed") }
}

func connDial(c *fakeConn) func() (Conn, error) {
	return func() (Conn, error) { return c, nil }
}

// delayRecorder captures scheduled backoff delays and fires them instantly.
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *delayRecorder) after(d time.Duration) <-chan time.Time {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (r *delayRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}

func waitForState(t *testing.T, r *Reconnector, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.State() == want
	}, 2*time.Second, time.Millisecond, "expected state %s, got %s", want, r.State())
}

func TestReconnector_GivesUpAtCeiling(t *testing.T) {
	dialer := &scriptedDialer{}
	rec := &delayRecorder{}
	r := New(Config{
		Dialer: dialer,
		Params: Params{Subscriber: "u1"},
		after:  rec.after,
	})
	defer r.Stop()

	r.Start()
	waitForState(t, r, StateGivenUp)

	assert.Equal(t, 5, dialer.dials(), "the default ceiling allows exactly 5 attempts")
	assert.Len(t, rec.recorded(), 4, "the 5th failure must not schedule a 6th attempt")
	assert.Equal(t, 5, r.Attempts())
	assert.Error(t, r.LastError())
}

func TestReconnector_BackoffMonotonicAndCapped(t *testing.T) {
	dialer := &scriptedDialer{}
	rec := &delayRecorder{}
	r := New(Config{
		Dialer:    dialer,
		Params:    Params{Subscriber: "u1"},
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  300 * time.Millisecond,
		after:     rec.after,
	})
	defer r.Stop()

	r.Start()
	waitForState(t, r, StateGivenUp)

	delays := rec.recorded()
	require.Len(t, delays, 4)
	for i := 1; i < len(delays); i++ {
		assert.GreaterOrEqual(t, delays[i], delays[i-1], "delays must be non-decreasing")
	}
	for _, d := range delays {
		assert.LessOrEqual(t, d, 300*time.Millisecond, "delays must never exceed the cap")
	}
	assert.Equal(t, 100*time.Millisecond, delays[0])
	assert.Equal(t, 300*time.Millisecond, delays[3])
}

func TestReconnector_SuccessAfterFailuresResetsAttempts(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{script: []func() (Conn, error){
		failDial(), failDial(), failDial(), connDial(conn),
	}}
	rec := &delayRecorder{}
	r := New(Config{
		Dialer: dialer,
		Params: Params{Subscriber: "u1"},
		after:  rec.after,
	})
	defer r.Stop()

	r.Start()
	waitForState(t, r, StateOpen)

	assert.Equal(t, 4, dialer.dials())
	assert.Zero(t, r.Attempts(), "attempt count resets on successful open")
	assert.NoError(t, r.LastError())
}

func TestReconnector_TerminalOpenErrorIsNotRetried(t *testing.T) {
	dialer := &scriptedDialer{script: []func() (Conn, error){
		func() (Conn, error) { return nil, &TerminalError{StatusCode: 400} },
	}}
	rec := &delayRecorder{}
	r := New(Config{
		Dialer: dialer,
		Params: Params{Subscriber: ""},
		after:  rec.after,
	})
	defer r.Stop()

	r.Start()
	waitForState(t, r, StateGivenUp)

	assert.Equal(t, 1, dialer.dials(), "a request that always fails the same way is never retried")
	assert.Empty(t, rec.recorded())
	assert.True(t, IsTerminal(r.LastError()))
}

func TestReconnector_DispatchesFramesAndSwallowsHeartbeats(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{script: []func() (Conn, error){connDial(conn)}}

	var mu sync.Mutex
	var got []Frame
	r := New(Config{
		Dialer: dialer,
		Params: Params{Subscriber: "u1"},
		OnFrame: func(f Frame) {
			mu.Lock()
			got = append(got, f)
			mu.Unlock()
		},
	})
	defer r.Stop()

	r.Start()
	waitForState(t, r, StateOpen)

	conn.frames <- Frame{Kind: realtime.KindHeartbeat, Data: []byte(`{}`)}
	conn.frames <- Frame{Kind: realtime.KindMessage, Data: []byte(`{"text":"hi"}`)}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, realtime.KindMessage, got[0].Kind, "heartbeats only feed the watchdog")
}

func TestReconnector_WatchdogForcesReconnectOnSilence(t *testing.T) {
	conn := newFakeConn() // never sends a frame
	dialer := &scriptedDialer{script: []func() (Conn, error){connDial(conn)}}
	rec := &delayRecorder{}
	r := New(Config{
		Dialer:         dialer,
		Params:         Params{Subscriber: "u1"},
		MaxAttempts:    1,
		HeartbeatGrace: 20 * time.Millisecond,
		after:          rec.after,
	})
	defer r.Stop()

	r.Start()
	waitForState(t, r, StateGivenUp)

	select {
	case <-conn.closed:
	default:
		t.Fatal("watchdog should have closed the silent connection")
	}
	assert.ErrorIs(t, r.LastError(), io.EOF)
}

func TestReconnector_HeartbeatsKeepConnectionAlive(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{script: []func() (Conn, error){connDial(conn)}}
	r := New(Config{
		Dialer:         dialer,
		Params:         Params{Subscriber: "u1"},
		HeartbeatGrace: 60 * time.Millisecond,
	})
	defer r.Stop()

	r.Start()
	waitForState(t, r, StateOpen)

	// Feed heartbeats well inside the grace window; the connection must
	// outlive several windows' worth of wall time.
	deadline := time.After(200 * time.Millisecond)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			conn.frames <- Frame{Kind: realtime.KindHeartbeat, Data: []byte(`{}`)}
		case <-deadline:
			assert.Equal(t, StateOpen, r.State())
			return
		}
	}
}

func TestReconnector_StopMakesMachineInert(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{script: []func() (Conn, error){connDial(conn)}}
	r := New(Config{
		Dialer: dialer,
		Params: Params{Subscriber: "u1"},
	})

	r.Start()
	waitForState(t, r, StateOpen)

	r.Stop()
	assert.Equal(t, StateStopped, r.State())

	dials := dialer.dials()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateStopped, r.State(), "nothing leaves the stopped state")
	assert.Equal(t, dials, dialer.dials(), "no reconnect after stop")
}

func TestReconnector_StopCancelsPendingRetry(t *testing.T) {
	dialer := &scriptedDialer{}
	never := func(time.Duration) <-chan time.Time {
		return make(chan time.Time) // a retry timer that never fires
	}
	r := New(Config{
		Dialer: dialer,
		Params: Params{Subscriber: "u1"},
		after:  never,
	})

	r.Start()
	waitForState(t, r, StateRetrying)

	r.Stop()
	assert.Equal(t, StateStopped, r.State())
	assert.Equal(t, 1, dialer.dials())
}
