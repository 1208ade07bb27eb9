// Package handler exposes document intake, OCR reconciliation, requirement
// consolidation and couple validation over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/docsales/realstate-docgen-front-sub000/internal/couple"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/registry"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/reconcile"
	"github.com/docsales/realstate-docgen-front-sub000/internal/requirements"
	dErrors "github.com/docsales/realstate-docgen-front-sub000/pkg/domain-errors"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/platform/httputil"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/platform/middleware/requestid"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/platform/middleware/requesttime"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/requestcontext"
)

const maxUploadBytes = 20 << 20

// DocumentService defines the descriptor operations.
type DocumentService interface {
	Add(ctx context.Context, in registry.NewDescriptor) (*models.Descriptor, error)
	List(ctx context.Context, dealID string) []*models.Descriptor
	Retry(ctx context.Context, localID models.LocalID) (*models.Descriptor, error)
	Link(ctx context.Context, localID models.LocalID, t models.DocumentType) (*models.Descriptor, error)
	Fulfillment(dealID, personID string, role requirements.Applicability, reqs []requirements.Requirement) (*registry.Fulfillment, error)
}

// Refresher runs a manual status refresh for a deal.
type Refresher interface {
	Refresh(ctx context.Context, dealID string) (reconcile.RefreshSummary, error)
}

// CoupleWorkflow defines the couple validation operations.
type CoupleWorkflow interface {
	Start(ctx context.Context, req ports.CoupleValidationRequest) (couple.State, error)
	State(dealID, coupleID string) couple.State
	Remove(dealID, coupleID string) bool
}

// Handler handles intake endpoints.
type Handler struct {
	documents DocumentService
	refresher Refresher
	couples   CoupleWorkflow
	logger    *slog.Logger
}

// New creates a new intake Handler.
func New(documents DocumentService, refresher Refresher, couples CoupleWorkflow, logger *slog.Logger) *Handler {
	return &Handler{
		documents: documents,
		refresher: refresher,
		couples:   couples,
		logger:    logger,
	}
}

// Register registers the intake routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	intake := chi.NewRouter()
	intake.Use(chimw.Recoverer)
	intake.Use(requestid.Middleware)
	intake.Use(requesttime.Middleware)
	intake.Use(chimw.Timeout(30 * time.Second))

	intake.Get("/health", h.handleHealth)
	intake.Route("/deals/{dealID}", func(r chi.Router) {
		r.Use(dealContext)
		r.Post("/documents", h.handleAddDocument)
		r.Get("/documents", h.handleListDocuments)
		r.Post("/documents/refresh", h.handleRefresh)
		r.Post("/checklist", h.handleChecklist)
		r.Post("/fulfillment", h.handleFulfillment)
		r.Post("/couples/{coupleID}/validation", h.handleStartCoupleValidation)
		r.Get("/couples/{coupleID}/validation", h.handleGetCoupleValidation)
		r.Delete("/couples/{coupleID}", h.handleRemoveCouple)
	})
	intake.Post("/documents/{localID}/retry", h.handleRetry)
	intake.Post("/documents/{localID}/links", h.handleLink)

	r.Mount("/", intake)
}

func dealContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithDealID(r.Context(), chi.URLParam(r, "dealID"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"deal_id", requestcontext.DealID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

// =============================================================================
// Documents
// =============================================================================

func (h *Handler) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.fail(ctx, w, "invalid upload form", dErrors.Wrap(err, dErrors.CodeBadRequest, "multipart form with a file is required"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(ctx, w, "missing upload file", dErrors.Wrap(err, dErrors.CodeBadRequest, "file is required"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		h.fail(ctx, w, "failed to read upload", dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable file"))
		return
	}

	contentType := header.Header.Get("Content-Type")
	d, err := h.documents.Add(ctx, registry.NewDescriptor{
		LocalID:     models.LocalID(strings.TrimSpace(r.FormValue("localId"))),
		DealID:      requestcontext.DealID(ctx),
		Type:        models.DocumentType(r.FormValue("type")),
		Category:    models.Category(strings.TrimSpace(r.FormValue("category"))),
		PersonID:    strings.TrimSpace(r.FormValue("personId")),
		FileName:    header.Filename,
		ContentType: contentType,
		Content:     content,
	})
	if err != nil {
		h.fail(ctx, w, "failed to add document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs := h.documents.List(ctx, requestcontext.DealID(ctx))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.refresher.Refresh(ctx, requestcontext.DealID(ctx))
	if err != nil {
		if ports.IsTransient(err) {
			err = dErrors.Wrap(err, dErrors.CodeUnavailable, "ocr service unavailable, try again")
		}
		h.fail(ctx, w, "manual refresh failed", err)
		return
	}
	resp := refreshResponse{
		Queried:   summary.Poll.Queried,
		Updated:   summary.Poll.Applied,
		Transient: summary.Poll.Transient,
		Failed:    summary.Poll.Failed,
	}
	if summary.Reprocess != nil {
		resp.Reprocessed = summary.Reprocess.Processed
		resp.StillProcessing = summary.Reprocess.StillProcessing
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type refreshResponse struct {
	Reprocessed     int `json:"reprocessed"`
	StillProcessing int `json:"stillProcessing"`
	Queried         int `json:"queried"`
	Updated         int `json:"updated"`
	Transient       int `json:"transient"`
	Failed          int `json:"failed"`
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.documents.Retry(ctx, models.LocalID(chi.URLParam(r, "localID")))
	if err != nil {
		h.fail(ctx, w, "retry failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

type linkRequest struct {
	Type string `json:"type"`
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[linkRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid link request", err)
		return
	}
	d, err := h.documents.Link(ctx, models.LocalID(chi.URLParam(r, "localID")), models.DocumentType(req.Type))
	if err != nil {
		var notReady *models.PersistenceNotReadyError
		if errors.As(err, &notReady) {
			w.Header().Set("Retry-After", "2")
		}
		h.fail(ctx, w, "link failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

// =============================================================================
// Requirements
// =============================================================================

type checklistRequest struct {
	Combinations []requirements.Combination `json:"combinations"`
}

func (h *Handler) handleChecklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[checklistRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid checklist request", err)
		return
	}
	checklist, err := requirements.Consolidate(req.Combinations, requestcontext.Now(ctx))
	if err != nil {
		var empty *requirements.EmptyChecklistInputError
		if errors.As(err, &empty) {
			err = dErrors.Wrap(err, dErrors.CodeUnprocessable, "deal has no requirement combinations configured")
		}
		h.fail(ctx, w, "checklist consolidation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, checklist)
}

type fulfillmentRequest struct {
	PersonID     string                     `json:"personId"`
	Role         requirements.Applicability `json:"role"`
	Requirements []requirements.Requirement `json:"requirements"`
}

func (h *Handler) handleFulfillment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[fulfillmentRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid fulfillment request", err)
		return
	}
	report, err := h.documents.Fulfillment(requestcontext.DealID(ctx), req.PersonID, req.Role, req.Requirements)
	if err != nil {
		h.fail(ctx, w, "fulfillment report failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// =============================================================================
// Couple Validation
// =============================================================================

type coupleValidationRequest struct {
	TitularPersonID string `json:"titularPersonId"`
	SpousePersonID  string `json:"spousePersonId"`
}

func (h *Handler) handleStartCoupleValidation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[coupleValidationRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid couple validation request", err)
		return
	}
	state, err := h.couples.Start(ctx, ports.CoupleValidationRequest{
		DealID:          requestcontext.DealID(ctx),
		CoupleID:        chi.URLParam(r, "coupleID"),
		TitularPersonID: req.TitularPersonID,
		SpousePersonID:  req.SpousePersonID,
	})
	if err != nil {
		h.fail(ctx, w, "couple validation start failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, state)
}

func (h *Handler) handleGetCoupleValidation(w http.ResponseWriter, r *http.Request) {
	state := h.couples.State(requestcontext.DealID(r.Context()), chi.URLParam(r, "coupleID"))
	httputil.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) handleRemoveCouple(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	coupleID := chi.URLParam(r, "coupleID")
	if !h.couples.Remove(requestcontext.DealID(ctx), coupleID) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("couple %s has no validation state", coupleID)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
