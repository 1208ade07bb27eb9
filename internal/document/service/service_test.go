package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/registry"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/store"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports/mocks"
	"github.com/docsales/realstate-docgen-front-sub000/internal/requirements"
	dErrors "github.com/docsales/realstate-docgen-front-sub000/pkg/domain-errors"
)

type recordingSubmitter struct {
	mu        sync.Mutex
	notified  int
	forgotten []models.LocalID
}

func (r *recordingSubmitter) Notify() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified++
}

func (r *recordingSubmitter) Forget(localID models.LocalID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgotten = append(r.forgotten, localID)
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	linker    *mocks.MockLinker
	registry  *registry.Registry
	submitter *recordingSubmitter
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.linker = mocks.NewMockLinker(s.ctrl)
	s.registry = registry.New()
	s.submitter = &recordingSubmitter{}
	svc, err := New(s.registry, s.linker, s.submitter)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) add(localID models.LocalID) *models.Descriptor {
	d, err := s.service.Add(s.ctx, registry.NewDescriptor{
		LocalID:  localID,
		DealID:   "deal-1",
		Type:     "RG",
		Category: models.CategorySeller,
		PersonID: "p1",
		Content:  []byte("scan"),
	})
	s.Require().NoError(err)
	return d
}

func (s *ServiceSuite) persist(localID models.LocalID, remoteID string) {
	_, err := s.registry.Claim(s.ctx, localID)
	s.Require().NoError(err)
	_, err = s.registry.MarkUploaded(s.ctx, localID, remoteID, "")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestNew() {
	_, err := New(nil, s.linker, s.submitter)
	s.ErrorContains(err, "registry is required")
	_, err = New(s.registry, nil, s.submitter)
	s.ErrorContains(err, "linker is required")
	_, err = New(s.registry, s.linker, nil)
	s.ErrorContains(err, "submitter is required")
}

func (s *ServiceSuite) TestAdd() {
	s.Run("wakes the pipeline", func() {
		d := s.add("l1")
		s.Equal(models.StatusIdle, d.Status)
		s.Equal(1, s.submitter.notified)
	})

	s.Run("empty content is rejected", func() {
		_, err := s.service.Add(s.ctx, registry.NewDescriptor{DealID: "deal-1", Type: "RG", Category: models.CategoryProperty})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("duplicate local id conflicts", func() {
		_, err := s.service.Add(s.ctx, registry.NewDescriptor{LocalID: "l1", DealID: "deal-1", Type: "RG", Category: models.CategoryProperty, Content: []byte("x")})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestGetUnknown() {
	_, err := s.service.Get("missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.ErrorIs(err, models.ErrDescriptorNotFound)
}

func (s *ServiceSuite) TestRetry() {
	s.add("l1")

	s.Run("only failed documents can be retried", func() {
		_, err := s.service.Retry(s.ctx, "l1")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		var te *models.TransitionError
		s.ErrorAs(err, &te)
	})

	s.Run("failed document returns to idle and is resubmitted", func() {
		_, err := s.registry.Claim(s.ctx, "l1")
		s.Require().NoError(err)
		_, err = s.registry.MarkFailed(s.ctx, "l1", "timeout")
		s.Require().NoError(err)

		d, err := s.service.Retry(s.ctx, "l1")
		s.Require().NoError(err)
		s.Equal(models.StatusIdle, d.Status)
		s.Empty(d.ErrorMessage)
		s.Equal([]models.LocalID{"l1"}, s.submitter.forgotten)
		s.Equal(2, s.submitter.notified)
	})
}

func (s *ServiceSuite) TestLink() {
	s.add("l1")

	s.Run("before upload the precondition is reported as retryable", func() {
		_, err := s.service.Link(s.ctx, "l1", "CPF")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		var pe *models.PersistenceNotReadyError
		s.Require().ErrorAs(err, &pe)
		s.True(pe.Retryable())
	})

	s.persist("l1", "R1")

	s.Run("links and keeps the original type", func() {
		s.linker.EXPECT().
			LinkExistingDocument(gomock.Any(), "R1", models.DocumentType("CPF")).
			Return(&ports.LinkResult{Success: true, NewRemoteID: "R2"}, nil)

		d, err := s.service.Link(s.ctx, "l1", " cpf ")
		s.Require().NoError(err)
		s.True(d.Satisfies("CPF"))
		s.True(d.Satisfies("RG"))

		local, ok := s.registry.IDs().Local("R2")
		s.True(ok)
		s.Equal(models.LocalID("l1"), local)
	})

	s.Run("already satisfied type is a no-op", func() {
		d, err := s.service.Link(s.ctx, "l1", "RG")
		s.Require().NoError(err)
		s.Equal([]models.DocumentType{"CPF"}, d.AdditionalTypes)
	})

	s.Run("transient failure is unavailable", func() {
		s.linker.EXPECT().
			LinkExistingDocument(gomock.Any(), "R1", models.DocumentType("CNH")).
			Return(nil, &ports.TransientNetworkError{Op: "link", Err: errors.New("reset")})
		_, err := s.service.Link(s.ctx, "l1", "CNH")
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("refused link is unprocessable", func() {
		s.linker.EXPECT().
			LinkExistingDocument(gomock.Any(), "R1", models.DocumentType("CNH")).
			Return(&ports.LinkResult{Success: false}, nil)
		_, err := s.service.Link(s.ctx, "l1", "CNH")
		s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable))
	})

	s.Run("empty type", func() {
		_, err := s.service.Link(s.ctx, "l1", "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestFulfillment() {
	reqs := []requirements.Requirement{{ID: "RG", Mandatory: true}}

	s.Run("requires a person", func() {
		_, err := s.service.Fulfillment("deal-1", "", requirements.ApplicabilityAny, reqs)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
	s.Run("rejects unknown roles", func() {
		_, err := s.service.Fulfillment("deal-1", "p1", "cousin", reqs)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
	s.Run("reports missing mandatory documents", func() {
		report, err := s.service.Fulfillment("deal-1", "p1", requirements.ApplicabilityAny, reqs)
		s.Require().NoError(err)
		s.Equal(1, report.MissingMandatory)
	})
}

func (s *ServiceSuite) TestListRestoresCheckpointedDealOnce() {
	cp := store.NewInMemory()
	before := registry.New(registry.WithCheckpointer(cp))
	_, err := before.Add(s.ctx, registry.NewDescriptor{LocalID: "l1", DealID: "deal-1", Type: "RG", Category: models.CategoryProperty, Content: []byte("x")})
	s.Require().NoError(err)
	_, err = before.Claim(s.ctx, "l1")
	s.Require().NoError(err)
	_, err = before.MarkUploaded(s.ctx, "l1", "R1", "")
	s.Require().NoError(err)

	after := registry.New(registry.WithCheckpointer(cp))
	svc, err := New(after, s.linker, s.submitter)
	s.Require().NoError(err)

	docs := svc.List(s.ctx, "deal-1")
	s.Require().Len(docs, 1)
	s.Equal(models.StatusProcessing, docs[0].Status)
	s.Equal(1, s.submitter.notified)

	s.Len(svc.List(s.ctx, "deal-1"), 1)
	s.Equal(1, s.submitter.notified, "a deal is restored only once")
}
