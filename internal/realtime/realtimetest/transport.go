// Package realtimetest provides an in-memory realtime transport that lets
// tests inject events without any request having been made.
package realtimetest

import (
	"context"
	"sync"
	"time"

	"github.com/docsales/realstate-docgen-front-sub000/internal/realtime"
)

// Transport hands out in-memory connections.
type Transport struct {
	mu      sync.Mutex
	conns   map[realtime.Namespace]*Conn
	dials   map[realtime.Namespace]int
	dialErr error
}

func NewTransport() *Transport {
	return &Transport{
		conns: make(map[realtime.Namespace]*Conn),
		dials: make(map[realtime.Namespace]int),
	}
}

// FailDials makes every later Dial return err until called with nil.
func (t *Transport) FailDials(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialErr = err
}

func (t *Transport) Dial(_ context.Context, ns realtime.Namespace) (realtime.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials[ns]++
	if t.dialErr != nil {
		return nil, t.dialErr
	}
	c := &Conn{ch: make(chan realtime.Event, 16)}
	t.conns[ns] = c
	return c, nil
}

// Dials counts Dial calls for ns, including failed ones.
func (t *Transport) Dials(ns realtime.Namespace) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials[ns]
}

// Conn returns the most recently dialled connection for ns.
func (t *Transport) Conn(ns realtime.Namespace) *Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[ns]
}

// Emit pushes ev on the live connection for ns. It reports false when there
// is no open connection.
func (t *Transport) Emit(ns realtime.Namespace, ev realtime.Event) bool {
	c := t.Conn(ns)
	if c == nil {
		return false
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	return c.send(ev)
}

// Drop simulates the transport losing the connection for ns.
func (t *Transport) Drop(ns realtime.Namespace) {
	if c := t.Conn(ns); c != nil {
		_ = c.Close()
	}
}

// Conn is an in-memory connection.
type Conn struct {
	mu     sync.Mutex
	ch     chan realtime.Event
	closed bool
}

func (c *Conn) Events() <-chan realtime.Event {
	return c.ch
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	return nil
}

// Closed reports whether the connection has been closed.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) send(ev realtime.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.ch <- ev
	return true
}
