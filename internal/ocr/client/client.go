// Package client is the HTTP adapter for the external OCR extraction service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports"
	dErrors "github.com/docsales/realstate-docgen-front-sub000/pkg/domain-errors"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/payload"
)

var _ ports.Client = (*Client)(nil)

// Default configuration values.
const (
	DefaultRequestTimeout    = 30 * time.Second
	DefaultStatusTimeout     = 8 * time.Second
	DefaultValidationTimeout = 5 * time.Second
)

// maxResponseBytes caps decoded response bodies; extracted data trees can be
// large but never this large.
const maxResponseBytes = 8 << 20

// Config holds configuration for the OCR service client.
type Config struct {
	BaseURL    string
	SigningKey string
	Issuer     string
	Audience   string

	// RequestTimeout bounds upload, reprocess and link calls.
	RequestTimeout time.Duration

	// StatusTimeout is the default per-query timeout for QueryStatus.
	StatusTimeout time.Duration

	// ValidationTimeout bounds the couple validation acknowledgment.
	ValidationTimeout time.Duration
}

// Client calls the OCR service over HTTP/JSON.
type Client struct {
	http    *http.Client
	baseURL string
	signer  *TokenSigner
	cfg     Config
	logger  *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ocr base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse ocr base url: %w", err)
	}
	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("ocr signing key is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = DefaultStatusTimeout
	}
	if cfg.ValidationTimeout <= 0 {
		cfg.ValidationTimeout = DefaultValidationTimeout
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "docgen-intake"
	}
	if cfg.Audience == "" {
		cfg.Audience = "ocr-service"
	}

	c := &Client{
		http:    &http.Client{},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		signer:  NewTokenSigner(cfg.SigningKey, cfg.Issuer, cfg.Audience),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c, nil
}

type uploadResponse struct {
	Success        bool   `json:"success"`
	DocumentID     string `json:"documentId"`
	ProcessingHash string `json:"processingHash"`
	Cached         bool   `json:"cached"`
}

// Upload posts the payload as multipart form data.
func (c *Client) Upload(ctx context.Context, content []byte, meta ports.UploadMetadata) (*ports.UploadResult, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := map[string]string{
		"dealId":       meta.DealID,
		"clientId":     string(meta.LocalID),
		"documentType": string(meta.DeclaredType),
		"category":     string(meta.Category),
		"personId":     meta.PersonID,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := form.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	fileName := meta.FileName
	if fileName == "" {
		fileName = string(meta.LocalID)
	}
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("close multipart form: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var out uploadResponse
	if err := c.do(ctx, "upload", http.MethodPost, "/documents", form.FormDataContentType(), &body, &out); err != nil {
		return nil, err
	}
	if out.Success && out.DocumentID == "" {
		return nil, fmt.Errorf("upload acknowledged without document id")
	}
	return &ports.UploadResult{
		Success:        out.Success,
		RemoteID:       out.DocumentID,
		ProcessingHash: out.ProcessingHash,
		Cached:         out.Cached,
	}, nil
}

type statusResponse struct {
	Status         string        `json:"status"`
	ExtractedData  payload.Value `json:"extractedData"`
	ErrorMessage   string        `json:"errorMessage"`
	ProcessingHash string        `json:"processingHash"`
}

// QueryStatus fetches the current state of one remote document. With
// SilentTimeout a deadline hit reports processing instead of failing.
func (c *Client) QueryStatus(ctx context.Context, remoteID string, opts ports.QueryOptions) (*ports.StatusResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.StatusTimeout
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out statusResponse
	err := c.do(qctx, "query status", http.MethodGet, "/documents/"+url.PathEscape(remoteID)+"/status", "", nil, &out)
	if err != nil {
		if opts.SilentTimeout && ctx.Err() == nil && errors.Is(qctx.Err(), context.DeadlineExceeded) {
			c.logger.DebugContext(ctx, "status query timed out silently", "remote_id", remoteID)
			return &ports.StatusResult{Status: models.StatusProcessing}, nil
		}
		return nil, err
	}

	status := models.Status(strings.ToLower(out.Status))
	switch status {
	case models.StatusProcessing, models.StatusCompleted, models.StatusError:
	default:
		return nil, fmt.Errorf("unexpected status %q for document %s", out.Status, remoteID)
	}
	return &ports.StatusResult{
		Status:         status,
		ExtractedData:  out.ExtractedData,
		ErrorMessage:   out.ErrorMessage,
		ProcessingHash: out.ProcessingHash,
	}, nil
}

type reprocessRequest struct {
	DocumentIDs []string `json:"documentIds"`
}

type reprocessResponse struct {
	Processed       int `json:"processed"`
	Errors          int `json:"errors"`
	StillProcessing int `json:"stillProcessing"`
}

func (c *Client) BatchReprocess(ctx context.Context, remoteIDs []string) (*ports.BatchResult, error) {
	if len(remoteIDs) == 0 {
		return &ports.BatchResult{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var out reprocessResponse
	if err := c.doJSON(ctx, "batch reprocess", http.MethodPost, "/documents/reprocess", reprocessRequest{DocumentIDs: remoteIDs}, &out); err != nil {
		return nil, err
	}
	return &ports.BatchResult{
		Processed:       out.Processed,
		Errors:          out.Errors,
		StillProcessing: out.StillProcessing,
	}, nil
}

type linkRequest struct {
	DocumentType string `json:"documentType"`
}

type linkResponse struct {
	Success       bool   `json:"success"`
	NewDocumentID string `json:"newDocumentId"`
}

func (c *Client) LinkExistingDocument(ctx context.Context, sourceRemoteID string, newType models.DocumentType) (*ports.LinkResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var out linkResponse
	path := "/documents/" + url.PathEscape(sourceRemoteID) + "/links"
	if err := c.doJSON(ctx, "link document", http.MethodPost, path, linkRequest{DocumentType: string(newType)}, &out); err != nil {
		return nil, err
	}
	return &ports.LinkResult{Success: out.Success, NewRemoteID: out.NewDocumentID}, nil
}

type coupleValidationRequest struct {
	DealID          string `json:"dealId"`
	CoupleID        string `json:"coupleId"`
	TitularPersonID string `json:"titularPersonId"`
	SpousePersonID  string `json:"spousePersonId"`
}

// StartCoupleValidation only waits for the acknowledgment. It is not retried.
func (c *Client) StartCoupleValidation(ctx context.Context, req ports.CoupleValidationRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ValidationTimeout)
	defer cancel()

	return c.doJSON(ctx, "start couple validation", http.MethodPost, "/couples/validation", coupleValidationRequest{
		DealID:          req.DealID,
		CoupleID:        req.CoupleID,
		TitularPersonID: req.TitularPersonID,
		SpousePersonID:  req.SpousePersonID,
	}, nil)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}
	return c.do(ctx, op, method, path, "application/json", bytes.NewReader(body), out)
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	token, err := c.signer.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ports.TransientNetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(ctx, op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) statusError(ctx context.Context, op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	c.logger.DebugContext(ctx, "ocr service error response",
		"op", op,
		"status", resp.StatusCode,
		"body", msg,
	)

	cause := fmt.Errorf("ocr service %s: status %d: %s", op, resp.StatusCode, msg)
	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusRequestTimeout:
		return &ports.TransientNetworkError{Op: op, Err: cause}
	case resp.StatusCode == http.StatusNotFound:
		return dErrors.Wrap(cause, dErrors.CodeNotFound, "document not found in ocr service")
	case resp.StatusCode == http.StatusConflict:
		return dErrors.Wrap(cause, dErrors.CodeConflict, "ocr service rejected the request as a conflict")
	default:
		return dErrors.Wrap(cause, dErrors.CodeUnprocessable, "ocr service rejected the request")
	}
}
