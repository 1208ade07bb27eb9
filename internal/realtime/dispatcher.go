package realtime

import (
	"context"
	"log/slog"
)

// HandlerFunc handles one named event.
type HandlerFunc func(ctx context.Context, ev Event) error

// Dispatcher routes events to per-name handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	fallback HandlerFunc
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher with an optional fallback handler.
func NewDispatcher(logger *slog.Logger, fallback HandlerFunc) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		fallback: fallback,
		logger:   logger,
	}
}

// Register adds a handler for a specific event name.
func (d *Dispatcher) Register(name string, h HandlerFunc) {
	d.handlers[name] = h
}

// Dispatch routes ev to its handler. Unknown events are logged and skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	h, ok := d.handlers[ev.Name]
	if !ok {
		if d.fallback != nil {
			return d.fallback(ctx, ev)
		}
		d.logger.DebugContext(ctx, "no handler for event, skipping",
			"event", ev.Name,
			"event_id", ev.ID,
		)
		return nil
	}
	return h(ctx, ev)
}

// Consume dispatches events from h until the connection closes or ctx is
// done. It reports whether the connection was lost.
func (d *Dispatcher) Consume(ctx context.Context, h *Handle) (lost bool) {
	events := h.Events()
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return true
			}
			if err := d.Dispatch(ctx, ev); err != nil {
				d.logger.WarnContext(ctx, "event handler failed",
					"namespace", h.Namespace(),
					"event", ev.Name,
					"error", err,
				)
			}
		}
	}
}
