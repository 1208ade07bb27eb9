// Package service orchestrates descriptor operations that span the registry
// and the OCR service: adding, retrying and linking documents.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/registry"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports"
	"github.com/docsales/realstate-docgen-front-sub000/internal/requirements"
	dErrors "github.com/docsales/realstate-docgen-front-sub000/pkg/domain-errors"
)

// Submitter is the part of the submission pipeline the service signals.
type Submitter interface {
	Notify()
	Forget(localID models.LocalID)
}

type Service struct {
	registry  *registry.Registry
	linker    ports.Linker
	submitter Submitter
	logger    *slog.Logger

	restored sync.Map
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(reg *registry.Registry, linker ports.Linker, submitter Submitter, opts ...Option) (*Service, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if linker == nil {
		return nil, fmt.Errorf("linker is required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	s := &Service{
		registry:  reg,
		linker:    linker,
		submitter: submitter,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// restore loads a deal's checkpointed descriptors the first time the deal is
// touched. Failures are logged and retried on the next access.
func (s *Service) restore(ctx context.Context, dealID string) {
	if dealID == "" {
		return
	}
	if _, done := s.restored.LoadOrStore(dealID, struct{}{}); done {
		return
	}
	n, err := s.registry.Restore(ctx, dealID)
	if err != nil {
		s.restored.Delete(dealID)
		s.logger.WarnContext(ctx, "failed to restore deal documents",
			"deal_id", dealID,
			"error", err,
		)
		return
	}
	if n > 0 {
		s.submitter.Notify()
	}
}

// Add registers a document and wakes the submission pipeline.
func (s *Service) Add(ctx context.Context, in registry.NewDescriptor) (*models.Descriptor, error) {
	if len(in.Content) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document content is required")
	}
	s.restore(ctx, in.DealID)
	d, err := s.registry.Add(ctx, in)
	if err != nil {
		return nil, translate(err)
	}
	s.submitter.Notify()
	s.logger.InfoContext(ctx, "document added",
		"local_id", d.LocalID,
		"deal_id", d.DealID,
		"type", d.DeclaredType,
	)
	return d, nil
}

func (s *Service) Get(localID models.LocalID) (*models.Descriptor, error) {
	d, err := s.registry.Get(localID)
	if err != nil {
		return nil, translate(err)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, dealID string) []*models.Descriptor {
	s.restore(ctx, dealID)
	return s.registry.List(dealID)
}

// Retry resets a failed document to idle and resubmits it.
func (s *Service) Retry(ctx context.Context, localID models.LocalID) (*models.Descriptor, error) {
	d, err := s.registry.Retry(ctx, localID)
	if err != nil {
		return nil, translate(err)
	}
	s.submitter.Forget(localID)
	s.submitter.Notify()
	s.logger.InfoContext(ctx, "document retry requested", "local_id", localID)
	return d, nil
}

// Link makes an already persisted document also satisfy requirement type t.
// The OCR service creates a record sharing the extracted data; the descriptor
// keeps its original types.
func (s *Service) Link(ctx context.Context, localID models.LocalID, t models.DocumentType) (*models.Descriptor, error) {
	t = models.DocumentType(strings.ToUpper(strings.TrimSpace(string(t))))
	if t == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document type is required")
	}
	d, err := s.registry.Get(localID)
	if err != nil {
		return nil, translate(err)
	}
	if d.RemoteID == "" {
		return nil, translate(&models.PersistenceNotReadyError{LocalID: localID})
	}
	if d.Satisfies(t) {
		return d, nil
	}

	res, err := s.linker.LinkExistingDocument(ctx, d.RemoteID, t)
	if err != nil {
		if ports.IsTransient(err) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "ocr service unavailable, try again")
		}
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to link document")
	}
	if !res.Success {
		return nil, dErrors.New(dErrors.CodeUnprocessable, "ocr service refused to link document")
	}

	linked, err := s.registry.LinkType(ctx, localID, t, res.NewRemoteID)
	if err != nil {
		return nil, translate(err)
	}
	s.logger.InfoContext(ctx, "document linked to additional type",
		"local_id", localID,
		"remote_id", d.RemoteID,
		"linked_remote_id", res.NewRemoteID,
		"type", t,
	)
	return linked, nil
}

// Fulfillment reports which requirements a person has covered.
func (s *Service) Fulfillment(dealID, personID string, role requirements.Applicability, reqs []requirements.Requirement) (*registry.Fulfillment, error) {
	if strings.TrimSpace(personID) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "person id is required")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid role: "+string(role))
	}
	return s.registry.Fulfillment(dealID, personID, role, reqs), nil
}

// translate attaches domain codes to registry errors. Typed errors stay
// reachable through errors.As.
func translate(err error) error {
	var (
		notReady   *models.PersistenceNotReadyError
		transition *models.TransitionError
		conflict   *models.RemoteIDConflictError
	)
	switch {
	case errors.Is(err, models.ErrDescriptorNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "document not found")
	case errors.As(err, &notReady):
		return dErrors.Wrap(err, dErrors.CodeConflict, "document has not been uploaded yet, try again shortly")
	case errors.As(err, &transition):
		return dErrors.Wrap(err, dErrors.CodeConflict, fmt.Sprintf("document is %s", transition.From))
	case errors.As(err, &conflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "document already persisted under another id")
	}
	return err
}
