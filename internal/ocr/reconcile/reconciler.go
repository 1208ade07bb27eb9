// Package reconcile keeps descriptor state converged with the OCR service.
//
// Updates arrive on two paths: push events from the shared realtime
// connection and point-in-time status queries. Both feed the registry merge
// rule, so duplicates and races between the paths are harmless.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/registry"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/metrics"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports"
	"github.com/docsales/realstate-docgen-front-sub000/internal/realtime"
)

const (
	DefaultSettleDelay      = 2 * time.Second
	DefaultQueryTimeout     = 8 * time.Second
	DefaultPullOnlyInterval = 15 * time.Second
	DefaultQueriesPerSecond = 5

	maxConcurrentQueries = 4
)

// Registry is the subset of the descriptor registry the reconciler reads and
// merges into.
type Registry interface {
	List(dealID string) []*models.Descriptor
	ListByStatus(statuses ...models.Status) []*models.Descriptor
	Reconcile(ctx context.Context, u models.StatusUpdate) (registry.Outcome, *models.Descriptor)
}

// Reprocessor forces re-extraction for a set of remote ids.
type Reprocessor interface {
	Reprocess(ctx context.Context, remoteIDs []string) (*ports.BatchResult, error)
}

// PollSummary counts the results of one pull pass.
type PollSummary struct {
	Queried   int
	Applied   int
	Transient int
	Failed    int
}

// RefreshSummary describes a manual refresh.
type RefreshSummary struct {
	Reprocess *ports.BatchResult
	Poll      PollSummary
}

// Reconciler consumes the OCR namespace and runs the pull fallback.
type Reconciler struct {
	registry    Registry
	querier     ports.StatusQuerier
	reprocessor Reprocessor
	manager     *realtime.Manager

	settleDelay      time.Duration
	queryTimeout     time.Duration
	pullOnlyInterval time.Duration
	limiter          *rate.Limiter

	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer

	pullOnly   atomic.Bool
	recovering atomic.Bool
	wg         sync.WaitGroup
}

type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithManager enables the push path. Without a manager the reconciler is
// pull-only.
func WithManager(m *realtime.Manager) Option {
	return func(r *Reconciler) {
		r.manager = m
	}
}

func WithSettleDelay(d time.Duration) Option {
	return func(r *Reconciler) {
		if d >= 0 {
			r.settleDelay = d
		}
	}
}

func WithQueryTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.queryTimeout = d
		}
	}
}

// WithPullOnlyInterval sets how often in-flight descriptors are polled while
// the push path is unavailable.
func WithPullOnlyInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.pullOnlyInterval = d
		}
	}
}

// WithQueryRate paces status queries. A non-positive rps disables pacing.
func WithQueryRate(rps float64) Option {
	return func(r *Reconciler) {
		if rps <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func New(reg Registry, querier ports.StatusQuerier, reprocessor Reprocessor, opts ...Option) (*Reconciler, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if querier == nil {
		return nil, fmt.Errorf("status querier is required")
	}
	if reprocessor == nil {
		return nil, fmt.Errorf("reprocessor is required")
	}
	r := &Reconciler{
		registry:         reg,
		querier:          querier,
		reprocessor:      reprocessor,
		settleDelay:      DefaultSettleDelay,
		queryTimeout:     DefaultQueryTimeout,
		pullOnlyInterval: DefaultPullOnlyInterval,
		limiter:          rate.NewLimiter(rate.Limit(DefaultQueriesPerSecond), DefaultQueriesPerSecond),
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:           otel.Tracer("github.com/docsales/realstate-docgen-front-sub000/internal/ocr/reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// PullOnly reports whether the push path is currently unavailable.
func (r *Reconciler) PullOnly() bool {
	return r.pullOnly.Load()
}

// Apply merges one update into the registry and records the outcome.
func (r *Reconciler) Apply(ctx context.Context, u models.StatusUpdate) registry.Outcome {
	outcome, d := r.registry.Reconcile(ctx, u)
	r.metrics.IncrementStatusUpdate(string(u.Source), string(outcome))
	if outcome == registry.OutcomeUnknown {
		r.logger.DebugContext(ctx, "status update for unknown document",
			"remote_id", u.RemoteID,
			"source", u.Source,
		)
		return outcome
	}
	if outcome == registry.OutcomeApplied && d.Status.IsTerminal() {
		r.logger.InfoContext(ctx, "document processing settled",
			"local_id", d.LocalID,
			"remote_id", u.RemoteID,
			"status", d.Status,
			"source", u.Source,
		)
	}
	return outcome
}

// Run consumes the OCR namespace until ctx is done. Whenever the push path is
// unavailable it polls in-flight descriptors instead, and after every
// (re)connection it polls once to catch events sent while disconnected.
func (r *Reconciler) Run(ctx context.Context) error {
	defer r.wg.Wait()
	if r.manager == nil {
		r.setPullOnly(ctx, true, errors.New("no realtime transport configured"))
		for {
			if err := r.pullOnce(ctx); err != nil {
				return err
			}
		}
	}

	dispatcher := r.dispatcher(ctx)
	for {
		h, err := r.manager.Acquire(ctx, realtime.NamespaceOCR)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, realtime.ErrManagerClosed) {
				return err
			}
			r.setPullOnly(ctx, true, err)
			if err := r.pullOnce(ctx); err != nil {
				return err
			}
			continue
		}

		r.setPullOnly(ctx, false, nil)
		r.Recover(ctx)
		lost := dispatcher.Consume(ctx, h)
		h.Release()
		if !lost {
			return ctx.Err()
		}
		r.logger.WarnContext(ctx, "ocr realtime connection lost, reconnecting")
	}
}

func (r *Reconciler) dispatcher(ctx context.Context) *realtime.Dispatcher {
	d := realtime.NewDispatcher(r.logger, nil)
	d.Register(realtime.EventOCRCompleted, r.HandleEvent)
	d.Register(realtime.EventOCRError, r.HandleEvent)
	d.Register(realtime.EventReconnected, func(context.Context, realtime.Event) error {
		r.recoverAsync(ctx)
		return nil
	})
	return d
}

func (r *Reconciler) setPullOnly(ctx context.Context, degraded bool, cause error) {
	if r.pullOnly.Swap(degraded) == degraded {
		return
	}
	r.metrics.SetPullOnly(degraded)
	if degraded {
		r.logger.WarnContext(ctx, "ocr push path unavailable, continuing pull-only",
			"error", cause,
		)
		return
	}
	r.logger.InfoContext(ctx, "ocr push path connected")
}

// pullOnce waits one pull-only interval and polls in-flight descriptors.
func (r *Reconciler) pullOnce(ctx context.Context) error {
	timer := time.NewTimer(r.pullOnlyInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	r.Recover(ctx)
	return nil
}

// recoverAsync runs Recover in the background unless one is already running,
// so event consumption is never blocked by polling.
func (r *Reconciler) recoverAsync(ctx context.Context) {
	if !r.recovering.CompareAndSwap(false, true) {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.recovering.Store(false)
		r.Recover(ctx)
	}()
}

// Recover polls every in-flight descriptor that already has a remote id.
func (r *Reconciler) Recover(ctx context.Context) PollSummary {
	return r.Poll(ctx, inFlight(r.registry.ListByStatus(models.StatusUploading, models.StatusProcessing)))
}

// Refresh is the manual refresh of a deal: force reprocessing of its in-flight
// documents, give the service a moment, then query each one.
func (r *Reconciler) Refresh(ctx context.Context, dealID string) (RefreshSummary, error) {
	ctx, span := r.tracer.Start(ctx, "ocr.refresh", trace.WithAttributes(attribute.String("deal_id", dealID)))
	defer span.End()

	pending := inFlight(r.registry.List(dealID))
	if len(pending) == 0 {
		return RefreshSummary{}, nil
	}
	remoteIDs := make([]string, 0, len(pending))
	for _, d := range pending {
		remoteIDs = append(remoteIDs, d.RemoteID)
	}

	var summary RefreshSummary
	res, err := r.reprocessor.Reprocess(ctx, remoteIDs)
	if err != nil {
		if !ports.IsTransient(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "reprocess failed")
			return summary, err
		}
		r.metrics.IncrementTransientError("batch_reprocess")
		r.logger.WarnContext(ctx, "batch reprocess failed, polling anyway",
			"deal_id", dealID,
			"error", err,
		)
	}
	summary.Reprocess = res

	if r.settleDelay > 0 {
		timer := time.NewTimer(r.settleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return summary, ctx.Err()
		case <-timer.C:
		}
	}

	summary.Poll = r.Poll(ctx, pending)
	return summary, nil
}

// Poll queries each descriptor's status with a silent timeout and merges the
// results. Transient failures are counted and absorbed.
func (r *Reconciler) Poll(ctx context.Context, ds []*models.Descriptor) PollSummary {
	var (
		mu      sync.Mutex
		summary PollSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)
	for _, d := range ds {
		if d.RemoteID == "" {
			continue
		}
		g.Go(func() error {
			res := r.query(gctx, d)
			mu.Lock()
			defer mu.Unlock()
			summary.Queried++
			switch res {
			case queryApplied:
				summary.Applied++
			case queryTransient:
				summary.Transient++
			case queryFailed:
				summary.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()
	return summary
}

// PullOne is the cached-upload hook: the service already holds the result, so
// one query lands it without waiting for a push event.
func (r *Reconciler) PullOne(ctx context.Context, d *models.Descriptor) {
	r.Poll(ctx, []*models.Descriptor{d})
}

type queryResult int

const (
	queryUnchanged queryResult = iota
	queryApplied
	queryTransient
	queryFailed
)

func (r *Reconciler) query(ctx context.Context, d *models.Descriptor) queryResult {
	ctx, span := r.tracer.Start(ctx, "ocr.query_status", trace.WithAttributes(
		attribute.String("local_id", string(d.LocalID)),
		attribute.String("remote_id", d.RemoteID),
	))
	defer span.End()

	if err := r.limiter.Wait(ctx); err != nil {
		return queryTransient
	}
	res, err := r.querier.QueryStatus(ctx, d.RemoteID, ports.QueryOptions{
		Timeout:       r.queryTimeout,
		SilentTimeout: true,
	})
	if err != nil {
		span.RecordError(err)
		if ports.IsTransient(err) {
			r.metrics.IncrementStatusQuery("transient")
			r.metrics.IncrementTransientError("query_status")
			r.logger.DebugContext(ctx, "status query failed transiently",
				"local_id", d.LocalID,
				"remote_id", d.RemoteID,
				"error", err,
			)
			return queryTransient
		}
		span.SetStatus(codes.Error, "status query failed")
		r.metrics.IncrementStatusQuery("failed")
		r.logger.WarnContext(ctx, "status query failed",
			"local_id", d.LocalID,
			"remote_id", d.RemoteID,
			"error", err,
		)
		return queryFailed
	}
	r.metrics.IncrementStatusQuery("ok")

	outcome := r.Apply(ctx, res.Update(d.RemoteID, models.SourcePull))
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if outcome == registry.OutcomeApplied || outcome == registry.OutcomeRefreshed {
		return queryApplied
	}
	return queryUnchanged
}

func inFlight(ds []*models.Descriptor) []*models.Descriptor {
	out := make([]*models.Descriptor, 0, len(ds))
	for _, d := range ds {
		if d.Status.InFlight() && d.RemoteID != "" {
			out = append(out, d)
		}
	}
	return out
}
