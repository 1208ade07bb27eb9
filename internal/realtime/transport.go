package realtime

import "context"

// Transport dials one duplex connection for a namespace.
type Transport interface {
	Dial(ctx context.Context, ns Namespace) (Conn, error)
}

// Conn delivers inbound events. Events is closed when the connection ends
// for good, either through Close or because the transport gave up.
type Conn interface {
	Events() <-chan Event
	Close() error
}
