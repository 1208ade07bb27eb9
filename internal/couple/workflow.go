package couple

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports"
	"github.com/docsales/realstate-docgen-front-sub000/internal/realtime"
	dErrors "github.com/docsales/realstate-docgen-front-sub000/pkg/domain-errors"
)

const defaultRetryInterval = 15 * time.Second

// Workflow owns one Tracker per (deal, couple) and feeds them events from
// the couple validation namespace.
type Workflow struct {
	starter       ports.CoupleValidationStarter
	manager       *realtime.Manager
	timeout       time.Duration
	retryInterval time.Duration
	metrics       *Metrics
	logger        *slog.Logger
	now           func() time.Time

	mu       sync.RWMutex
	trackers map[key]*Tracker
}

type Option func(*Workflow)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

// WithManager enables result delivery over the realtime connection.
func WithManager(m *realtime.Manager) Option {
	return func(w *Workflow) {
		w.manager = m
	}
}

func WithStartTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithRetryInterval sets the wait between attempts to reach the realtime
// connection.
func WithRetryInterval(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.retryInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		w.now = now
	}
}

func New(starter ports.CoupleValidationStarter, opts ...Option) (*Workflow, error) {
	if starter == nil {
		return nil, fmt.Errorf("couple validation starter is required")
	}
	w := &Workflow{
		starter:       starter,
		timeout:       DefaultStartTimeout,
		retryInterval: defaultRetryInterval,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           time.Now,
		trackers:      make(map[key]*Tracker),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start creates the couple's tracker on first use and triggers validation.
func (w *Workflow) Start(ctx context.Context, req ports.CoupleValidationRequest) (State, error) {
	if err := validateRequest(req); err != nil {
		return State{}, err
	}
	t := w.tracker(req.DealID, req.CoupleID, true)
	state, err := t.Start(ctx, req.TitularPersonID, req.SpousePersonID)
	if err != nil {
		w.logger.WarnContext(ctx, "couple validation start failed",
			"deal_id", req.DealID,
			"couple_id", req.CoupleID,
			"error", err,
		)
		if ports.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
			return state, dErrors.Wrap(err, dErrors.CodeUnavailable, "couple validation service unavailable")
		}
		var de *dErrors.Error
		if errors.As(err, &de) {
			return state, err
		}
		return state, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start couple validation")
	}
	return state, nil
}

func validateRequest(req ports.CoupleValidationRequest) error {
	switch {
	case strings.TrimSpace(req.DealID) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "deal id is required")
	case strings.TrimSpace(req.CoupleID) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "couple id is required")
	case strings.TrimSpace(req.TitularPersonID) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "titular person id is required")
	case strings.TrimSpace(req.SpousePersonID) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "spouse person id is required")
	}
	return nil
}

// State returns the couple's validation state. Couples never started report
// NoResult.
func (w *Workflow) State(dealID, coupleID string) State {
	if t := w.tracker(dealID, coupleID, false); t != nil {
		return t.State()
	}
	return State{DealID: dealID, CoupleID: coupleID, Status: StatusNoResult}
}

// Remove destroys the couple's state once its pairing is gone. It reports
// whether state existed.
func (w *Workflow) Remove(dealID, coupleID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := key{dealID: dealID, coupleID: coupleID}
	if _, ok := w.trackers[k]; !ok {
		return false
	}
	delete(w.trackers, k)
	w.metrics.setTracked(len(w.trackers))
	return true
}

func (w *Workflow) tracker(dealID, coupleID string, create bool) *Tracker {
	k := key{dealID: dealID, coupleID: coupleID}
	w.mu.RLock()
	t, ok := w.trackers[k]
	w.mu.RUnlock()
	if ok || !create {
		return t
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.trackers[k]; ok {
		return t
	}
	t = newTracker(dealID, coupleID, w)
	w.trackers[k] = t
	w.metrics.setTracked(len(w.trackers))
	return t
}

// HandleEvent offers ev to every tracker; each applies only its own events.
func (w *Workflow) HandleEvent(ctx context.Context, ev realtime.Event) error {
	w.mu.RLock()
	trackers := make([]*Tracker, 0, len(w.trackers))
	for _, t := range w.trackers {
		trackers = append(trackers, t)
	}
	w.mu.RUnlock()

	applied := false
	for _, t := range trackers {
		ok, err := t.HandleEvent(ctx, ev)
		if err != nil {
			return err
		}
		applied = applied || ok
	}
	if !applied {
		w.logger.DebugContext(ctx, "couple validation event matched no tracked couple",
			"event", ev.Name,
			"deal_id", ev.DealID,
			"couple_id", ev.CoupleID,
		)
	}
	return nil
}

// Run consumes the couple validation namespace until ctx is done,
// reconnecting after connection loss.
func (w *Workflow) Run(ctx context.Context) error {
	if w.manager == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	dispatcher := realtime.NewDispatcher(w.logger, nil)
	dispatcher.Register(realtime.EventCoupleValidationStarted, w.HandleEvent)
	dispatcher.Register(realtime.EventCoupleValidationCompleted, w.HandleEvent)
	dispatcher.Register(realtime.EventCoupleValidationError, w.HandleEvent)

	for {
		h, err := w.manager.Acquire(ctx, realtime.NamespaceCoupleValidation)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, realtime.ErrManagerClosed) {
				return err
			}
			w.logger.WarnContext(ctx, "couple validation channel unavailable",
				"error", err,
			)
			timer := time.NewTimer(w.retryInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}

		lost := dispatcher.Consume(ctx, h)
		h.Release()
		if !lost {
			return ctx.Err()
		}
		w.logger.WarnContext(ctx, "couple validation connection lost, reconnecting")
	}
}
