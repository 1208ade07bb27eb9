// Package registry holds every document descriptor added during a session and
// enforces the descriptor state machine. All inbound status facts, from either
// the push or the pull path, are merged here.
package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	dErrors "github.com/docsales/realstate-docgen-front-sub000/pkg/domain-errors"
)

// Checkpointer persists descriptor snapshots so a restarted process can resume
// reconciliation.
type Checkpointer interface {
	Save(ctx context.Context, d *models.Descriptor) error
	LoadDeal(ctx context.Context, dealID string) ([]*models.Descriptor, error)
}

// NewDescriptor carries the fields a caller supplies when adding an artifact.
type NewDescriptor struct {
	LocalID     models.LocalID
	DealID      string
	Type        models.DocumentType
	Category    models.Category
	PersonID    string
	FileName    string
	ContentType string
	Content     []byte
}

// Registry is safe for concurrent use. Reads return clones.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[models.LocalID]*models.Descriptor
	order       []models.LocalID
	ids         *IDMap
	checkpoint  Checkpointer
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithCheckpointer(c Checkpointer) Option {
	return func(r *Registry) {
		r.checkpoint = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		descriptors: make(map[models.LocalID]*models.Descriptor),
		ids:         NewIDMap(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IDs exposes the bidirectional identifier map.
func (r *Registry) IDs() *IDMap {
	return r.ids
}

// Add registers a new idle descriptor.
func (r *Registry) Add(ctx context.Context, in NewDescriptor) (*models.Descriptor, error) {
	if err := validateNew(in); err != nil {
		return nil, err
	}
	localID := in.LocalID
	if localID == "" {
		localID = models.LocalID(uuid.NewString())
	}

	now := r.now()
	d := &models.Descriptor{
		LocalID:      localID,
		DealID:       in.DealID,
		DeclaredType: normalizeType(in.Type),
		Category:     in.Category,
		PersonID:     in.PersonID,
		Status:       models.StatusIdle,
		FileName:     in.FileName,
		ContentType:  in.ContentType,
		Content:      in.Content,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.mu.Lock()
	if _, exists := r.descriptors[localID]; exists {
		r.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("descriptor %s already exists", localID))
	}
	r.descriptors[localID] = d
	r.order = append(r.order, localID)
	snapshot := d.Clone()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	return snapshot, nil
}

func validateNew(in NewDescriptor) error {
	if strings.TrimSpace(in.DealID) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "deal id is required")
	}
	if strings.TrimSpace(string(in.Type)) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "document type is required")
	}
	if !in.Category.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid category: "+string(in.Category))
	}
	if (in.Category == models.CategoryBuyer || in.Category == models.CategorySeller) && in.PersonID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "person id is required for party documents")
	}
	return nil
}

func normalizeType(t models.DocumentType) models.DocumentType {
	return models.DocumentType(strings.ToUpper(strings.TrimSpace(string(t))))
}

// Get returns a copy of the descriptor.
func (r *Registry) Get(localID models.LocalID) (*models.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[localID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrDescriptorNotFound, localID)
	}
	return d.Clone(), nil
}

// List returns the deal's descriptors in insertion order. An empty dealID
// lists everything.
func (r *Registry) List(dealID string) []*models.Descriptor {
	return r.filter(func(d *models.Descriptor) bool {
		return dealID == "" || d.DealID == dealID
	})
}

// ListByStatus returns descriptors currently in any of statuses.
func (r *Registry) ListByStatus(statuses ...models.Status) []*models.Descriptor {
	return r.filter(func(d *models.Descriptor) bool {
		for _, s := range statuses {
			if d.Status == s {
				return true
			}
		}
		return false
	})
}

// ListByPerson returns the deal's descriptors linked to personID.
func (r *Registry) ListByPerson(dealID, personID string) []*models.Descriptor {
	return r.filter(func(d *models.Descriptor) bool {
		return d.DealID == dealID && d.PersonID == personID
	})
}

func (r *Registry) filter(keep func(*models.Descriptor) bool) []*models.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Descriptor, 0, len(r.order))
	for _, id := range r.order {
		if d := r.descriptors[id]; keep(d) {
			out = append(out, d.Clone())
		}
	}
	return out
}

// Claim moves an idle descriptor to uploading and returns it, payload included.
func (r *Registry) Claim(ctx context.Context, localID models.LocalID) (*models.Descriptor, error) {
	return r.mutate(ctx, localID, func(d *models.Descriptor, now time.Time) error {
		return d.Transition(models.StatusUploading, now)
	})
}

// MarkUploaded records the remote id and moves uploading -> processing. A
// descriptor that a faster push event already advanced keeps its status.
func (r *Registry) MarkUploaded(ctx context.Context, localID models.LocalID, remoteID, processingHash string) (*models.Descriptor, error) {
	d, err := r.mutate(ctx, localID, func(d *models.Descriptor, now time.Time) error {
		if err := d.AssignRemoteID(remoteID); err != nil {
			return err
		}
		if processingHash != "" {
			d.ProcessingHash = processingHash
		}
		if d.Status == models.StatusUploading {
			return d.Transition(models.StatusProcessing, now)
		}
		d.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.ids.Record(localID, remoteID)
	return d, nil
}

// MarkFailed moves an in-flight descriptor to error.
func (r *Registry) MarkFailed(ctx context.Context, localID models.LocalID, message string) (*models.Descriptor, error) {
	return r.mutate(ctx, localID, func(d *models.Descriptor, now time.Time) error {
		if err := d.Transition(models.StatusError, now); err != nil {
			return err
		}
		d.ErrorMessage = message
		return nil
	})
}

// Retry is the explicit error -> idle edge. Extraction results are cleared;
// the remote id, if any, is kept.
func (r *Registry) Retry(ctx context.Context, localID models.LocalID) (*models.Descriptor, error) {
	return r.mutate(ctx, localID, func(d *models.Descriptor, now time.Time) error {
		if err := d.Transition(models.StatusIdle, now); err != nil {
			return err
		}
		d.ErrorMessage = ""
		d.Mismatch = nil
		d.Validated = models.ValidationUnknown
		return nil
	})
}

// LinkType adds t to the descriptor's satisfied types and aliases the linked
// record's remote id to it. Linked ids are kept on the descriptor so Restore
// can alias them again.
func (r *Registry) LinkType(ctx context.Context, localID models.LocalID, t models.DocumentType, linkedRemoteID string) (*models.Descriptor, error) {
	d, err := r.mutate(ctx, localID, func(d *models.Descriptor, now time.Time) error {
		if d.RemoteID == "" {
			return &models.PersistenceNotReadyError{LocalID: localID}
		}
		d.AddType(normalizeType(t))
		if linkedRemoteID != "" && !slices.Contains(d.LinkedRemoteIDs, linkedRemoteID) {
			d.LinkedRemoteIDs = append(d.LinkedRemoteIDs, linkedRemoteID)
		}
		d.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if linkedRemoteID != "" {
		r.ids.Alias(linkedRemoteID, localID)
	}
	return d, nil
}

// Reconcile merges an inbound status fact. The remote id is resolved through
// the id map, falling back to using it as the local id.
func (r *Registry) Reconcile(ctx context.Context, u models.StatusUpdate) (Outcome, *models.Descriptor) {
	localID := r.ids.Resolve(u.RemoteID)

	r.mu.Lock()
	d, ok := r.descriptors[localID]
	if !ok {
		r.mu.Unlock()
		return OutcomeUnknown, nil
	}
	outcome := merge(d, u, r.now())
	snapshot := d.Clone()
	r.mu.Unlock()

	if outcome == OutcomeApplied || outcome == OutcomeRefreshed {
		r.persist(ctx, snapshot)
		r.logger.DebugContext(ctx, "status update merged",
			"local_id", localID,
			"remote_id", u.RemoteID,
			"status", snapshot.Status,
			"source", u.Source,
			"outcome", outcome,
		)
	}
	return outcome, snapshot
}

// Restore reloads a deal's descriptors from the checkpointer. Payloads are
// not checkpointed: descriptors caught mid-upload are failed, and idle ones
// that were never sent are dropped.
func (r *Registry) Restore(ctx context.Context, dealID string) (int, error) {
	if r.checkpoint == nil {
		return 0, nil
	}
	loaded, err := r.checkpoint.LoadDeal(ctx, dealID)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint for deal %s: %w", dealID, err)
	}

	var interrupted []*models.Descriptor
	restored, discarded := 0, 0
	r.mu.Lock()
	for _, d := range loaded {
		if _, exists := r.descriptors[d.LocalID]; exists {
			continue
		}
		// Never sent and the payload is gone: nothing left to submit.
		if d.Status == models.StatusIdle && d.RemoteID == "" {
			discarded++
			continue
		}
		if d.Status == models.StatusUploading {
			d.Status = models.StatusError
			d.ErrorMessage = "upload interrupted"
			d.UpdatedAt = r.now()
			interrupted = append(interrupted, d.Clone())
		}
		r.descriptors[d.LocalID] = d
		r.order = append(r.order, d.LocalID)
		if d.RemoteID != "" {
			r.ids.Record(d.LocalID, d.RemoteID)
		}
		for _, linked := range d.LinkedRemoteIDs {
			r.ids.Alias(linked, d.LocalID)
		}
		restored++
	}
	r.mu.Unlock()

	for _, d := range interrupted {
		r.persist(ctx, d)
	}
	r.logger.InfoContext(ctx, "descriptors restored",
		"deal_id", dealID,
		"restored", restored,
		"interrupted", len(interrupted),
		"discarded", discarded,
	)
	return restored, nil
}

func (r *Registry) mutate(ctx context.Context, localID models.LocalID, fn func(*models.Descriptor, time.Time) error) (*models.Descriptor, error) {
	r.mu.Lock()
	d, ok := r.descriptors[localID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", models.ErrDescriptorNotFound, localID)
	}
	if err := fn(d, r.now()); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	snapshot := d.Clone()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	return snapshot, nil
}

// persist is best effort: the in-memory registry stays authoritative.
func (r *Registry) persist(ctx context.Context, d *models.Descriptor) {
	if r.checkpoint == nil {
		return
	}
	if err := r.checkpoint.Save(ctx, d); err != nil {
		r.logger.WarnContext(ctx, "descriptor checkpoint failed",
			"local_id", d.LocalID,
			"deal_id", d.DealID,
			"error", err,
		)
	}
}
