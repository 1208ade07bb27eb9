package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

const defaultSubscriberCapacity = 64

// ErrManagerClosed is wrapped by SocketUnavailableError after Close.
var ErrManagerClosed = errors.New("realtime manager closed")

// Manager owns at most one live connection per namespace. The connection is
// dialled by the first Acquire and torn down when the last handle is released.
type Manager struct {
	transport Transport
	logger    *slog.Logger
	metrics   *Metrics
	capacity  int
	threshold int
	cooldown  time.Duration

	mu         sync.Mutex
	closed     bool
	namespaces map[Namespace]*namespaceState
}

type namespaceState struct {
	mu      sync.Mutex
	current *sharedConn
	breaker *CircuitBreaker
}

type sharedConn struct {
	conn Conn
	subs map[*subscriber]struct{}
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithSubscriberCapacity overrides the buffered channel size per handle.
func WithSubscriberCapacity(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithCircuitBreaker configures the per-namespace dial breaker.
func WithCircuitBreaker(threshold int, cooldown time.Duration) Option {
	return func(m *Manager) {
		m.threshold = threshold
		m.cooldown = cooldown
	}
}

func NewManager(transport Transport, opts ...Option) *Manager {
	m := &Manager{
		transport:  transport,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		capacity:   defaultSubscriberCapacity,
		namespaces: make(map[Namespace]*namespaceState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) state(ns Namespace) (*namespaceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	st, ok := m.namespaces[ns]
	if !ok {
		st = &namespaceState{breaker: NewCircuitBreaker(m.threshold, m.cooldown)}
		m.namespaces[ns] = st
	}
	return st, nil
}

// Acquire attaches a new handle to the namespace connection, dialling it if
// needed. Failures are reported as *SocketUnavailableError.
func (m *Manager) Acquire(ctx context.Context, ns Namespace) (*Handle, error) {
	if m.transport == nil {
		return nil, &SocketUnavailableError{Namespace: ns, Err: errors.New("no transport configured")}
	}
	st, err := m.state(ns)
	if err != nil {
		return nil, &SocketUnavailableError{Namespace: ns, Err: err}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current == nil {
		if !st.breaker.Allow() {
			m.metrics.incDialFailure(ns)
			return nil, &SocketUnavailableError{Namespace: ns, Err: ErrCircuitOpen}
		}
		conn, err := m.transport.Dial(ctx, ns)
		if err != nil {
			m.metrics.incDialFailure(ns)
			if st.breaker.RecordFailure() {
				m.logger.WarnContext(ctx, "realtime circuit opened",
					"namespace", ns,
					"error", err,
				)
			}
			return nil, &SocketUnavailableError{Namespace: ns, Err: err}
		}
		st.breaker.RecordSuccess()
		sc := &sharedConn{conn: conn, subs: make(map[*subscriber]struct{})}
		st.current = sc
		m.metrics.setConnected(ns, true)
		m.logger.InfoContext(ctx, "realtime connection opened", "namespace", ns)
		go m.pump(ns, st, sc)
	}

	sc := st.current
	sub := newSubscriber(m.capacity)
	sc.subs[sub] = struct{}{}
	m.metrics.setSubscribers(ns, len(sc.subs))

	return &Handle{
		ns:     ns,
		events: sub.ch,
		release: func() {
			m.release(ns, st, sc, sub)
		},
	}, nil
}

func (m *Manager) release(ns Namespace, st *namespaceState, sc *sharedConn, sub *subscriber) {
	st.mu.Lock()
	if st.current != sc {
		st.mu.Unlock()
		sub.close()
		return
	}
	delete(sc.subs, sub)
	sub.close()
	m.metrics.setSubscribers(ns, len(sc.subs))
	if len(sc.subs) > 0 {
		st.mu.Unlock()
		return
	}
	st.current = nil
	st.mu.Unlock()

	m.metrics.setConnected(ns, false)
	if err := sc.conn.Close(); err != nil {
		m.logger.Warn("closing realtime connection failed", "namespace", ns, "error", err)
	}
	m.logger.Info("realtime connection closed", "namespace", ns)
}

// pump fans events out to every attached handle.
func (m *Manager) pump(ns Namespace, st *namespaceState, sc *sharedConn) {
	for ev := range sc.conn.Events() {
		st.mu.Lock()
		if st.current != sc {
			st.mu.Unlock()
			continue
		}
		subs := make([]*subscriber, 0, len(sc.subs))
		for sub := range sc.subs {
			subs = append(subs, sub)
		}
		st.mu.Unlock()

		for _, sub := range subs {
			if sub.deliver(ev) {
				m.metrics.incDropped(ns)
				m.logger.Warn("realtime subscriber overflow, event dropped",
					"namespace", ns,
					"event", ev.Name,
				)
			}
		}
	}

	st.mu.Lock()
	if st.current != sc {
		st.mu.Unlock()
		return
	}
	st.current = nil
	for sub := range sc.subs {
		sub.close()
	}
	sc.subs = nil
	st.mu.Unlock()

	m.metrics.setConnected(ns, false)
	m.metrics.setSubscribers(ns, 0)
	m.logger.Warn("realtime connection lost", "namespace", ns)
}

// RefCount returns the number of handles attached to the namespace.
func (m *Manager) RefCount(ns Namespace) int {
	m.mu.Lock()
	st, ok := m.namespaces[ns]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.current == nil {
		return 0
	}
	return len(st.current.subs)
}

// Close tears down every connection. Later Acquire calls fail.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	states := make(map[Namespace]*namespaceState, len(m.namespaces))
	for ns, st := range m.namespaces {
		states[ns] = st
	}
	m.mu.Unlock()

	var errs []error
	for ns, st := range states {
		st.mu.Lock()
		sc := st.current
		st.current = nil
		if sc != nil {
			for sub := range sc.subs {
				sub.close()
			}
		}
		st.mu.Unlock()
		if sc != nil {
			m.metrics.setConnected(ns, false)
			if err := sc.conn.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Handle is one consumer's attachment to a shared connection.
type Handle struct {
	ns      Namespace
	events  <-chan Event
	release func()
	once    sync.Once
}

// Events is closed when the handle is released or the connection is lost.
func (h *Handle) Events() <-chan Event {
	return h.events
}

func (h *Handle) Namespace() Namespace {
	return h.ns
}

// Release detaches the handle. It is safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(h.release)
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func newSubscriber(capacity int) *subscriber {
	return &subscriber{ch: make(chan Event, capacity)}
}

// deliver enqueues ev, dropping the oldest queued event when full. It
// reports whether something was dropped. Reconnect notices are kept over
// ordinary events.
func (s *subscriber) deliver(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	dropped := false
	for {
		select {
		case s.ch <- ev:
			return dropped
		default:
		}
		select {
		case oldest := <-s.ch:
			if oldest.Name == EventReconnected && ev.Name != EventReconnected {
				s.ch <- oldest
				return true
			}
			dropped = true
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
