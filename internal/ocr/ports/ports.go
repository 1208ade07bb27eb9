// Package ports defines the external OCR service operations consumed by the
// submission pipeline, the reconciler and the couple validation workflow.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/payload"
)

// UploadMetadata accompanies an uploaded payload.
type UploadMetadata struct {
	DealID       string
	LocalID      models.LocalID
	DeclaredType models.DocumentType
	Category     models.Category
	PersonID     string
	FileName     string
	ContentType  string
}

// UploadResult is the service's acknowledgment of an upload. Cached is set
// when the service recognised the payload and extraction is already done.
type UploadResult struct {
	Success        bool
	RemoteID       string
	ProcessingHash string
	Cached         bool
}

// QueryOptions tune a point-in-time status query. With SilentTimeout a
// timeout reports processing instead of failing.
type QueryOptions struct {
	Timeout       time.Duration
	SilentTimeout bool
}

// StatusResult is the service's view of one remote document.
type StatusResult struct {
	Status         models.Status
	ExtractedData  payload.Value
	ErrorMessage   string
	ProcessingHash string
}

// Update converts the result into a registry status update.
func (r *StatusResult) Update(remoteID string, source models.UpdateSource) models.StatusUpdate {
	return models.StatusUpdate{
		RemoteID:       remoteID,
		Status:         r.Status,
		ExtractedData:  r.ExtractedData,
		ErrorMessage:   r.ErrorMessage,
		ProcessingHash: r.ProcessingHash,
		Source:         source,
	}
}

// BatchResult carries counts only.
type BatchResult struct {
	Processed       int
	Errors          int
	StillProcessing int
}

// LinkResult identifies the record created by a link.
type LinkResult struct {
	Success     bool
	NewRemoteID string
}

// CoupleValidationRequest starts a joint spouse-document consistency check.
type CoupleValidationRequest struct {
	DealID          string
	CoupleID        string
	TitularPersonID string
	SpousePersonID  string
}

// Uploader submits document payloads.
type Uploader interface {
	Upload(ctx context.Context, content []byte, meta UploadMetadata) (*UploadResult, error)
}

// StatusQuerier answers point-in-time status queries per remote id.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, remoteID string, opts QueryOptions) (*StatusResult, error)
}

// Reprocessor forces the service to re-run extraction.
type Reprocessor interface {
	BatchReprocess(ctx context.Context, remoteIDs []string) (*BatchResult, error)
}

// Linker creates a new record sharing an existing record's extracted data.
type Linker interface {
	LinkExistingDocument(ctx context.Context, sourceRemoteID string, newType models.DocumentType) (*LinkResult, error)
}

// CoupleValidationStarter acknowledges a couple validation request. The
// result is delivered later on the real-time channel.
type CoupleValidationStarter interface {
	StartCoupleValidation(ctx context.Context, req CoupleValidationRequest) error
}

// Client is the full external OCR service surface.
type Client interface {
	Uploader
	StatusQuerier
	Reprocessor
	Linker
	CoupleValidationStarter
}

// TransientNetworkError wraps failures the reconciliation machinery absorbs
// and retries: timeouts, connection resets, 5xx responses.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error during %s: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// Retryable is always true.
func (e *TransientNetworkError) Retryable() bool { return true }

// IsTransient reports whether err is, or wraps, a TransientNetworkError.
func IsTransient(err error) bool {
	var te *TransientNetworkError
	return errors.As(err, &te)
}
