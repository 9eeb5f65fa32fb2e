package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeClock records scheduled timers; tests fire them explicitly.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{clock: c, d: d, f: f}
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// pending returns the durations of timers neither fired nor stopped.
func (c *fakeClock) pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *fakeClock) hasPending(d time.Duration) bool {
	for _, p := range c.pending() {
		if p == d {
			return true
		}
	}
	return false
}

// fire runs the oldest pending timer with duration d on the calling goroutine.
func (c *fakeClock) fire(t *testing.T, d time.Duration) {
	t.Helper()

	c.mu.Lock()
	var target *fakeTimer
	for _, tm := range c.timers {
		if !tm.stopped && !tm.fired && tm.d == d {
			target = tm
			break
		}
	}
	if target == nil {
		pending := c.pendingLocked()
		c.mu.Unlock()
		t.Fatalf("no pending timer with duration %v (pending: %v)", d, pending)
		return
	}
	target.fired = true
	c.mu.Unlock()

	target.f()
}

func (c *fakeClock) pendingLocked() []time.Duration {
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.d)
		}
	}
	return out
}

// fakeConn is an in-memory transport.
type fakeConn struct {
	inbound chan []byte
	done    chan struct{}

	mu           sync.Mutex
	written      [][]byte
	readCode     int
	clientClosed bool
	closeCode    int
	doneOnce     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.done:
		c.mu.Lock()
		code := c.readCode
		c.mu.Unlock()
		return nil, &websocket.CloseError{Code: code}
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.done:
		return errors.New("write on closed connection")
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, append([]byte(nil), data...))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	if !c.clientClosed {
		c.clientClosed = true
		c.closeCode = code
		if c.readCode == 0 {
			c.readCode = code
		}
	}
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
	return nil
}

// push delivers a server frame.
func (c *fakeConn) push(frame string) {
	c.inbound <- []byte(frame)
}

// serverClose simulates the server dropping the socket with code.
func (c *fakeConn) serverClose(code int) {
	c.mu.Lock()
	c.readCode = code
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *fakeConn) frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

// closedByClient returns whether Close was called and with which code.
func (c *fakeConn) closedByClient() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientClosed, c.closeCode
}

// fakeDialer hands out fakeConns.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
	dials int
	err   error
	block chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	d.urls = append(d.urls, url)
	block := d.block
	err := d.err
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) connCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// stateRecorder collects transitions delivered to a listener.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

// eventRecorder is an EventSink that remembers what it received.
type eventRecorder struct {
	mu     sync.Mutex
	events []InboundEvent
	states []State
	mgr    *Manager
}

func (r *eventRecorder) OnEvent(e InboundEvent) {
	var s State
	if r.mgr != nil {
		s = r.mgr.State()
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *eventRecorder) received() []InboundEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]InboundEvent(nil), r.events...)
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
