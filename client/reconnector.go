package client

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/edupulse/hub/realtime"
)

// State is the reconnector's connection state.
type State int

const (
	// StateConnecting means an open attempt is in flight.
	StateConnecting State = iota
	// StateOpen means the stream is live and frames are being dispatched.
	StateOpen
	// StateRetrying means the last attempt failed and a reconnect is
	// scheduled after the current backoff delay.
	StateRetrying
	// StateGivenUp means the retry ceiling was hit or the open failure was
	// terminal; no further automatic attempts will be made.
	StateGivenUp
	// StateStopped means Stop was called; the machine is permanently inert.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRetrying:
		return "retrying"
	case StateGivenUp:
		return "given_up"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	defaultBaseDelay      = 1 * time.Second
	defaultMaxDelay       = 30 * time.Second
	defaultMaxAttempts    = 5
	defaultHeartbeatGrace = 90 * time.Second
)

// Config configures a Reconnector. Dialer and Params are required; zero
// values elsewhere take the defaults noted on each field.
type Config struct {
	Dialer Dialer
	Params Params

	// BaseDelay is the first backoff delay (default 1s); subsequent delays
	// double up to MaxDelay (default 30s).
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxAttempts is the consecutive-failure ceiling (default 5).
	MaxAttempts int
	// HeartbeatGrace is how long the stream may stay silent before the
	// connection is treated as dead (default 90s, three heartbeat periods).
	HeartbeatGrace time.Duration

	// OnFrame receives every frame except heartbeats, which only feed the
	// liveness watchdog.
	OnFrame func(Frame)
	// OnStateChange observes transitions; err is non-nil for transitions
	// caused by a failure.
	OnStateChange func(s State, err error)

	// after schedules the backoff wait; tests override it.
	after func(d time.Duration) <-chan time.Time
}

// Reconnector keeps one subscriber's stream open. Create with New, drive
// with Start, end with Stop. A stopped or given-up Reconnector is not
// reusable; callers wanting a manual retry build a fresh one.
type Reconnector struct {
	cfg Config
	bo  *backoff.ExponentialBackOff

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    State
	attempts int
	lastErr  error
	conn     Conn
	started  bool
}

// New creates a Reconnector. It does not connect until Start.
func New(cfg Config) *Reconnector {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.HeartbeatGrace <= 0 {
		cfg.HeartbeatGrace = defaultHeartbeatGrace
	}
	if cfg.after == nil {
		cfg.after = time.After
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = cfg.MaxDelay
	bo.MaxElapsedTime = 0

	ctx, cancel := context.WithCancel(context.Background())
	return &Reconnector{
		cfg:    cfg,
		bo:     bo,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateConnecting,
	}
}

// Start launches the connection loop. Calling it more than once is a no-op.
func (r *Reconnector) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	go r.run()
}

// Stop cancels any open connection and any pending reconnect timer. The
// machine transitions to StateStopped and never moves again; this is the
// only exit from StateGivenUp.
func (r *Reconnector) Stop() {
	r.cancel()

	r.mu.Lock()
	conn := r.conn
	started := r.started
	r.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	r.setState(StateStopped, nil)
	if started {
		<-r.done
	}
}

// State returns the current connection state.
func (r *Reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attempts returns the consecutive-failure count; it resets to zero on
// every successful open.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// LastError returns the error behind the most recent failed transition.
func (r *Reconnector) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Reconnector) run() {
	defer close(r.done)

	for {
		if r.ctx.Err() != nil {
			r.setState(StateStopped, nil)
			return
		}
		r.setState(StateConnecting, nil)

		conn, err := r.cfg.Dialer.Dial(r.ctx, r.cfg.Params)
		if err != nil {
			if r.ctx.Err() != nil {
				r.setState(StateStopped, nil)
				return
			}
			var terminal *TerminalError
			if errors.As(err, &terminal) {
				r.recordFailure(err)
				r.setState(StateGivenUp, err)
				return
			}
			if !r.backoff(err) {
				return
			}
			continue
		}

		r.mu.Lock()
		r.conn = conn
		r.attempts = 0
		r.lastErr = nil
		r.mu.Unlock()
		r.bo.Reset()
		r.setState(StateOpen, nil)

		err = r.readLoop(conn)
		conn.Close()
		r.mu.Lock()
		r.conn = nil
		r.mu.Unlock()

		if r.ctx.Err() != nil {
			r.setState(StateStopped, nil)
			return
		}
		if !r.backoff(err) {
			return
		}
	}
}

// readLoop dispatches frames until the connection fails. A watchdog closes
// the connection when nothing at all arrives within the grace window,
// covering transports that stop delivering without ever reporting an error.
func (r *Reconnector) readLoop(conn Conn) error {
	watchdog := time.AfterFunc(r.cfg.HeartbeatGrace, func() {
		log.Printf("No frame within %s, forcing reconnect", r.cfg.HeartbeatGrace)
		conn.Close()
	})
	defer watchdog.Stop()

	for {
		frame, err := conn.Recv()
		if err != nil {
			return err
		}
		watchdog.Reset(r.cfg.HeartbeatGrace)

		if frame.Kind == realtime.KindHeartbeat {
			continue
		}
		if r.cfg.OnFrame != nil {
			r.cfg.OnFrame(frame)
		}
	}
}

// backoff records the failure and waits out the next delay. It returns
// false when the machine is done (ceiling hit or stopped).
func (r *Reconnector) backoff(cause error) bool {
	attempts := r.recordFailure(cause)
	if attempts >= r.cfg.MaxAttempts {
		r.setState(StateGivenUp, cause)
		return false
	}

	delay := r.bo.NextBackOff()
	r.setState(StateRetrying, cause)

	select {
	case <-r.cfg.after(delay):
		return true
	case <-r.ctx.Done():
		r.setState(StateStopped, nil)
		return false
	}
}

func (r *Reconnector) recordFailure(cause error) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	r.lastErr = cause
	return r.attempts
}

// setState applies a transition unless the machine is already stopped;
// nothing leaves StateStopped.
func (r *Reconnector) setState(s State, err error) {
	r.mu.Lock()
	if r.state == StateStopped || r.state == s {
		r.mu.Unlock()
		return
	}
	r.state = s
	cb := r.cfg.OnStateChange
	r.mu.Unlock()

	if cb != nil {
		cb(s, err)
	}
}
