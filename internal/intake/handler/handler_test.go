package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/docsales/realstate-docgen-front-sub000/internal/couple"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/registry"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/service"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports/mocks"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/reconcile"
	"github.com/docsales/realstate-docgen-front-sub000/internal/realtime"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/platform/middleware/requestid"
)

type nopSubmitter struct{}

func (nopSubmitter) Notify()               {}
func (nopSubmitter) Forget(models.LocalID) {}

type stubRefresher struct {
	dealID  string
	summary reconcile.RefreshSummary
	err     error
}

func (s *stubRefresher) Refresh(_ context.Context, dealID string) (reconcile.RefreshSummary, error) {
	s.dealID = dealID
	return s.summary, s.err
}

// =============================================================================
// Intake Handler Test Suite
// =============================================================================
// Justification: these tests pin the HTTP contract (routes, status codes,
// error envelopes) over the real registry, service and couple workflow.

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	linker    *mocks.MockLinker
	starter   *mocks.MockCoupleValidationStarter
	registry  *registry.Registry
	refresher *stubRefresher
	couples   *couple.Workflow
	router    http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.linker = mocks.NewMockLinker(s.ctrl)
	s.starter = mocks.NewMockCoupleValidationStarter(s.ctrl)
	s.registry = registry.New()
	s.refresher = &stubRefresher{}

	docs, err := service.New(s.registry, s.linker, nopSubmitter{})
	s.Require().NoError(err)
	couples, err := couple.New(s.starter)
	s.Require().NoError(err)
	s.couples = couples

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(docs, s.refresher, couples, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) upload(dealID string, fields map[string]string, file []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		s.Require().NoError(mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile("file", "rg.pdf")
		s.Require().NoError(err)
		_, err = part.Write(file)
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/deals/"+dealID+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](s *HandlerSuite, w *httptest.ResponseRecorder) T {
	var out T
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&out))
	return out
}

func (s *HandlerSuite) persisted(localID models.LocalID, remoteID string) {
	_, err := s.registry.Claim(context.Background(), localID)
	s.Require().NoError(err)
	_, err = s.registry.MarkUploaded(context.Background(), localID, remoteID, "")
	s.Require().NoError(err)
}

// =============================================================================
// Documents
// =============================================================================

func (s *HandlerSuite) TestAddAndListDocuments() {
	w := s.upload("deal-1", map[string]string{"type": "rg", "category": "seller", "personId": "p1", "localId": "l1"}, []byte("%PDF"))
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.NotEmpty(w.Header().Get(requestid.Header))

	created := decode[map[string]any](s, w)
	s.Equal("l1", created["localId"])
	s.Equal("RG", created["type"])
	s.Equal("idle", created["status"])
	s.Nil(created["validated"])

	w = s.do(http.MethodGet, "/deals/deal-1/documents", "")
	s.Equal(http.StatusOK, w.Code)
	list := decode[struct {
		Documents []models.Descriptor `json:"documents"`
	}](s, w)
	s.Require().Len(list.Documents, 1)
	s.Equal("rg.pdf", list.Documents[0].FileName)

	s.Run("missing file", func() {
		w := s.upload("deal-1", map[string]string{"type": "RG", "category": "seller", "personId": "p1"}, nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("party document without person", func() {
		w := s.upload("deal-1", map[string]string{"type": "RG", "category": "buyer"}, []byte("x"))
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("invalid_input", decode[map[string]string](s, w)["error"])
	})

	s.Run("duplicate local id", func() {
		w := s.upload("deal-1", map[string]string{"type": "RG", "category": "property", "localId": "l1"}, []byte("x"))
		s.Equal(http.StatusConflict, w.Code)
	})
}

func (s *HandlerSuite) TestRefresh() {
	s.refresher.summary = reconcile.RefreshSummary{
		Reprocess: &ports.BatchResult{Processed: 2, StillProcessing: 1},
		Poll:      reconcile.PollSummary{Queried: 2, Applied: 1, Transient: 1},
	}
	w := s.do(http.MethodPost, "/deals/deal-7/documents/refresh", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("deal-7", s.refresher.dealID)
	s.Equal(refreshResponse{Reprocessed: 2, StillProcessing: 1, Queried: 2, Updated: 1, Transient: 1}, decode[refreshResponse](s, w))

	s.Run("transient failure is 503", func() {
		s.refresher.err = &ports.TransientNetworkError{Op: "batch_reprocess", Err: errors.New("reset")}
		w := s.do(http.MethodPost, "/deals/deal-7/documents/refresh", "")
		s.Equal(http.StatusServiceUnavailable, w.Code)
	})
}

func (s *HandlerSuite) TestRetry() {
	s.Run("unknown document", func() {
		w := s.do(http.MethodPost, "/documents/nope/retry", "")
		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("failed document", func() {
		s.Require().Equal(http.StatusCreated, s.upload("deal-1", map[string]string{"type": "RG", "category": "property", "localId": "l1"}, []byte("x")).Code)
		_, err := s.registry.Claim(context.Background(), "l1")
		s.Require().NoError(err)
		_, err = s.registry.MarkFailed(context.Background(), "l1", "boom")
		s.Require().NoError(err)

		w := s.do(http.MethodPost, "/documents/l1/retry", "")
		s.Require().Equal(http.StatusOK, w.Code)
		s.Equal("idle", decode[map[string]any](s, w)["status"])
	})

	s.Run("idle document cannot be retried", func() {
		w := s.do(http.MethodPost, "/documents/l1/retry", "")
		s.Equal(http.StatusConflict, w.Code)
	})
}

func (s *HandlerSuite) TestLink() {
	s.Require().Equal(http.StatusCreated, s.upload("deal-1", map[string]string{"type": "RG", "category": "seller", "personId": "p1", "localId": "l1"}, []byte("x")).Code)

	s.Run("not yet persisted", func() {
		w := s.do(http.MethodPost, "/documents/l1/links", `{"type":"CPF"}`)
		s.Equal(http.StatusConflict, w.Code)
		s.Equal("2", w.Header().Get("Retry-After"))
	})

	s.Run("unknown body field", func() {
		w := s.do(http.MethodPost, "/documents/l1/links", `{"kind":"CPF"}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("linked", func() {
		s.persisted("l1", "R1")
		s.linker.EXPECT().
			LinkExistingDocument(gomock.Any(), "R1", models.DocumentType("CPF")).
			Return(&ports.LinkResult{Success: true, NewRemoteID: "R2"}, nil)

		w := s.do(http.MethodPost, "/documents/l1/links", `{"type":"CPF"}`)
		s.Require().Equal(http.StatusOK, w.Code)
		d := decode[models.Descriptor](s, w)
		s.Equal([]models.DocumentType{"CPF"}, d.AdditionalTypes)
	})
}

// =============================================================================
// Requirements
// =============================================================================

func (s *HandlerSuite) TestChecklist() {
	body := `{"combinations":[
		{"sellerId":"s1","buyerId":"b1","sellerDocuments":[{"id":"RG","name":"RG","mandatory":false}],"complexity":"BAIXA","estimatedDays":3},
		{"sellerId":"s2","buyerId":"b1","sellerDocuments":[{"id":"RG","name":"RG","mandatory":true}],"complexity":"ALTA","estimatedDays":10}
	]}`
	w := s.do(http.MethodPost, "/deals/deal-1/checklist", body)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var got struct {
		Seller  []map[string]any `json:"seller"`
		Summary map[string]any   `json:"summary"`
	}
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&got))
	s.Require().Len(got.Seller, 1)
	s.Equal(true, got.Seller[0]["mandatory"])
	s.Equal("ALTA", got.Summary["complexidadeMaxima"])
	s.Equal(float64(10), got.Summary["prazoEstimadoDias"])
	s.NotEmpty(got.Summary["dataEstimadaConclusao"])

	s.Run("empty combinations are unprocessable", func() {
		w := s.do(http.MethodPost, "/deals/deal-1/checklist", `{"combinations":[]}`)
		s.Equal(http.StatusUnprocessableEntity, w.Code)
	})
}

func (s *HandlerSuite) TestFulfillment() {
	w := s.do(http.MethodPost, "/deals/deal-1/fulfillment", `{"personId":"p1","role":"spouse","requirements":[
		{"id":"RG","mandatory":true},
		{"id":"HOLERITE","mandatory":true,"applicability":"titular"}
	]}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	report := decode[registry.Fulfillment](s, w)
	s.Len(report.Requirements, 1)
	s.Equal(1, report.MissingMandatory)
	s.False(report.Complete)

	s.Run("invalid role", func() {
		w := s.do(http.MethodPost, "/deals/deal-1/fulfillment", `{"personId":"p1","role":"other","requirements":[]}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

// =============================================================================
// Couple Validation
// =============================================================================

func (s *HandlerSuite) TestCoupleValidation() {
	s.Run("state before any start", func() {
		w := s.do(http.MethodGet, "/deals/deal-1/couples/C1/validation", "")
		s.Require().Equal(http.StatusOK, w.Code)
		s.Equal(couple.StatusNoResult, decode[couple.State](s, w).Status)
	})

	s.Run("start acknowledges", func() {
		s.starter.EXPECT().
			StartCoupleValidation(gomock.Any(), ports.CoupleValidationRequest{
				DealID: "deal-1", CoupleID: "C1", TitularPersonID: "p1", SpousePersonID: "p2",
			}).
			Return(nil)
		w := s.do(http.MethodPost, "/deals/deal-1/couples/C1/validation", `{"titularPersonId":"p1","spousePersonId":"p2"}`)
		s.Require().Equal(http.StatusAccepted, w.Code)
		state := decode[couple.State](s, w)
		s.Equal(couple.StatusInProgress, state.Status)
		s.Equal(1, state.Attempts)
	})

	s.Run("result delivered by event is visible", func() {
		s.Require().NoError(s.couples.HandleEvent(context.Background(), realtime.Event{
			Name: realtime.EventCoupleValidationCompleted, DealID: "deal-1", CoupleID: "C1",
			Data: json.RawMessage(`{"isValid":true,"problems":[]}`),
		}))
		w := s.do(http.MethodGet, "/deals/deal-1/couples/C1/validation", "")
		state := decode[couple.State](s, w)
		s.Equal(couple.StatusResolved, state.Status)
		s.True(state.Result.Valid)
	})

	s.Run("missing spouse", func() {
		w := s.do(http.MethodPost, "/deals/deal-1/couples/C1/validation", `{"titularPersonId":"p1"}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("remove destroys state", func() {
		s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/deals/deal-1/couples/C1", "").Code)
		s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/deals/deal-1/couples/C1", "").Code)
	})
}

func (s *HandlerSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, w.Code)
}
