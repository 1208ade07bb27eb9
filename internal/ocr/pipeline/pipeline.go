// Package pipeline submits idle document descriptors to the OCR service.
//
// Descriptors are taken in chunks. Members of a chunk are submitted
// concurrently; the next chunk starts only after every member of the previous
// one has settled.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/metrics"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/platform/strings"
)

// DefaultChunkSize is the maximum number of concurrent submissions.
const DefaultChunkSize = 3

var errPayloadUnavailable = errors.New("document payload unavailable, add the file again")

// Registry is the subset of the descriptor registry the pipeline drives.
type Registry interface {
	ListByStatus(statuses ...models.Status) []*models.Descriptor
	Claim(ctx context.Context, localID models.LocalID) (*models.Descriptor, error)
	MarkUploaded(ctx context.Context, localID models.LocalID, remoteID, processingHash string) (*models.Descriptor, error)
	MarkFailed(ctx context.Context, localID models.LocalID, message string) (*models.Descriptor, error)
}

// UploadHook runs after a successful upload the service answered from cache.
type UploadHook func(ctx context.Context, d *models.Descriptor)

// Summary counts what one SubmitPending pass did.
type Summary struct {
	Submitted int
	Failed    int
	Skipped   int
}

// Pipeline is safe for concurrent use; overlapping passes never submit the
// same descriptor twice.
type Pipeline struct {
	registry    Registry
	uploader    ports.Uploader
	reprocessor ports.Reprocessor
	chunkSize   int
	onCached    UploadHook
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer

	mu        sync.Mutex
	inFlight  map[models.LocalID]struct{}
	attempted map[models.LocalID]struct{}

	notify chan struct{}
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func WithChunkSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

// WithCachedUploadHook sets the hook run for uploads answered from cache.
func WithCachedUploadHook(hook UploadHook) Option {
	return func(p *Pipeline) {
		p.onCached = hook
	}
}

func New(registry Registry, uploader ports.Uploader, reprocessor ports.Reprocessor, opts ...Option) (*Pipeline, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	if reprocessor == nil {
		return nil, fmt.Errorf("reprocessor is required")
	}
	p := &Pipeline{
		registry:    registry,
		uploader:    uploader,
		reprocessor: reprocessor,
		chunkSize:   DefaultChunkSize,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:      otel.Tracer("github.com/docsales/realstate-docgen-front-sub000/internal/ocr/pipeline"),
		inFlight:    make(map[models.LocalID]struct{}),
		attempted:   make(map[models.LocalID]struct{}),
		notify:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Notify wakes Run. It never blocks.
func (p *Pipeline) Notify() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Run drains idle descriptors whenever Notify is called, until ctx is done.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.notify:
		}
		summary := p.SubmitPending(ctx)
		if summary.Submitted+summary.Failed > 0 {
			p.logger.InfoContext(ctx, "submission pass finished",
				"submitted", summary.Submitted,
				"failed", summary.Failed,
				"skipped", summary.Skipped,
			)
		}
	}
}

// Forget clears the attempted guard so a retried descriptor is eligible again.
func (p *Pipeline) Forget(localID models.LocalID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempted, localID)
}

// SubmitPending submits every eligible idle descriptor and returns once all
// of them have settled or ctx is done.
func (p *Pipeline) SubmitPending(ctx context.Context) Summary {
	pending := p.reserve(p.registry.ListByStatus(models.StatusIdle))

	var summary Summary
	var mu sync.Mutex
	for start := 0; start < len(pending); start += p.chunkSize {
		end := min(start+p.chunkSize, len(pending))
		chunk := pending[start:end]

		if ctx.Err() != nil {
			p.release(pending[start:]...)
			summary.Skipped += len(pending) - start
			break
		}

		var g errgroup.Group
		for _, d := range chunk {
			g.Go(func() error {
				defer p.release(d)
				outcome := p.submit(ctx, d)
				mu.Lock()
				switch outcome {
				case outcomeSubmitted:
					summary.Submitted++
				case outcomeFailed:
					summary.Failed++
				default:
					summary.Skipped++
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}
	return summary
}

// reserve marks eligible descriptors in-flight and returns them.
func (p *Pipeline) reserve(candidates []*models.Descriptor) []*models.Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.Descriptor, 0, len(candidates))
	for _, d := range candidates {
		if _, busy := p.inFlight[d.LocalID]; busy {
			continue
		}
		if _, done := p.attempted[d.LocalID]; done {
			continue
		}
		p.inFlight[d.LocalID] = struct{}{}
		out = append(out, d)
	}
	return out
}

func (p *Pipeline) release(ds ...*models.Descriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range ds {
		delete(p.inFlight, d.LocalID)
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSubmitted
	outcomeFailed
)

func (p *Pipeline) submit(ctx context.Context, d *models.Descriptor) outcome {
	ctx, span := p.tracer.Start(ctx, "ocr.submit", trace.WithAttributes(
		attribute.String("local_id", string(d.LocalID)),
		attribute.String("deal_id", d.DealID),
	))
	defer span.End()

	claimed, err := p.registry.Claim(ctx, d.LocalID)
	if err != nil {
		p.logger.DebugContext(ctx, "descriptor no longer idle, skipping",
			"local_id", d.LocalID,
			"error", err,
		)
		return outcomeSkipped
	}
	p.mu.Lock()
	p.attempted[d.LocalID] = struct{}{}
	p.mu.Unlock()

	p.metrics.IncrementUploadsInFlight()
	defer p.metrics.DecrementUploadsInFlight()

	if claimed.RemoteID != "" {
		return p.resubmit(ctx, span, claimed)
	}
	if len(claimed.Content) == 0 {
		span.SetStatus(codes.Error, "payload unavailable")
		p.fail(ctx, claimed.LocalID, errPayloadUnavailable)
		return outcomeFailed
	}

	start := time.Now()
	res, err := p.uploader.Upload(ctx, claimed.Content, ports.UploadMetadata{
		DealID:       claimed.DealID,
		LocalID:      claimed.LocalID,
		DeclaredType: claimed.DeclaredType,
		Category:     claimed.Category,
		PersonID:     claimed.PersonID,
		FileName:     claimed.FileName,
		ContentType:  claimed.ContentType,
	})
	if err == nil {
		switch {
		case !res.Success:
			err = errors.New("upload rejected by ocr service")
		case res.RemoteID == "":
			err = errors.New("upload acknowledged without a remote id")
		}
	}
	if err != nil {
		p.metrics.ObserveUpload("failed", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		p.fail(ctx, claimed.LocalID, err)
		return outcomeFailed
	}

	uploaded, err := p.registry.MarkUploaded(ctx, claimed.LocalID, res.RemoteID, res.ProcessingHash)
	if err != nil {
		p.metrics.ObserveUpload("failed", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "record upload failed")
		p.logger.ErrorContext(ctx, "failed to record upload",
			"local_id", claimed.LocalID,
			"remote_id", res.RemoteID,
			"error", err,
		)
		p.fail(ctx, claimed.LocalID, err)
		return outcomeFailed
	}
	span.SetAttributes(attribute.String("remote_id", res.RemoteID), attribute.Bool("cached", res.Cached))

	if res.Cached {
		p.metrics.ObserveUpload("cached", start)
		if p.onCached != nil {
			p.onCached(ctx, uploaded)
		}
	} else {
		p.metrics.ObserveUpload("success", start)
	}
	p.logger.InfoContext(ctx, "document uploaded",
		"local_id", claimed.LocalID,
		"remote_id", res.RemoteID,
		"cached", res.Cached,
	)
	return outcomeSubmitted
}

// resubmit handles a retried descriptor the service already holds: it asks
// for reprocessing instead of uploading a second copy.
func (p *Pipeline) resubmit(ctx context.Context, span trace.Span, d *models.Descriptor) outcome {
	start := time.Now()
	span.SetAttributes(attribute.String("remote_id", d.RemoteID), attribute.Bool("reprocess", true))

	if _, err := p.reprocessor.BatchReprocess(ctx, []string{d.RemoteID}); err != nil {
		p.metrics.ObserveUpload("failed", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "reprocess failed")
		p.fail(ctx, d.LocalID, err)
		return outcomeFailed
	}
	if _, err := p.registry.MarkUploaded(ctx, d.LocalID, d.RemoteID, ""); err != nil {
		p.logger.ErrorContext(ctx, "failed to record reprocess",
			"local_id", d.LocalID,
			"remote_id", d.RemoteID,
			"error", err,
		)
		p.fail(ctx, d.LocalID, err)
		return outcomeFailed
	}
	p.metrics.ObserveUpload("reprocessed", start)
	p.metrics.AddReprocessed(1)
	return outcomeSubmitted
}

// fail records the error on the descriptor and clears the attempted guard so
// a later retry can submit it again.
func (p *Pipeline) fail(ctx context.Context, localID models.LocalID, cause error) {
	p.Forget(localID)
	if _, err := p.registry.MarkFailed(ctx, localID, cause.Error()); err != nil {
		p.logger.WarnContext(ctx, "failed to mark descriptor as failed",
			"local_id", localID,
			"error", err,
		)
	}
	p.logger.WarnContext(ctx, "document submission failed",
		"local_id", localID,
		"error", cause,
	)
}

// Reprocess asks the service to re-run extraction for remoteIDs. Used by
// manual refresh and reconnect recovery.
func (p *Pipeline) Reprocess(ctx context.Context, remoteIDs []string) (*ports.BatchResult, error) {
	ids := strings.DedupeAndTrim(remoteIDs)
	if len(ids) == 0 {
		return &ports.BatchResult{}, nil
	}
	ctx, span := p.tracer.Start(ctx, "ocr.reprocess", trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	res, err := p.reprocessor.BatchReprocess(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch reprocess failed")
		return nil, fmt.Errorf("batch reprocess: %w", err)
	}
	p.metrics.AddReprocessed(len(ids))
	return res, nil
}
