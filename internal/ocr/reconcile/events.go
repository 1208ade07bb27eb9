package reconcile

import (
	"context"
	"fmt"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/internal/realtime"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/payload"
)

// ocrEventBody is the body of ocr_completed and ocr_error events.
type ocrEventBody struct {
	DocumentID     string        `json:"documentId"`
	ExtractedData  payload.Value `json:"extractedData"`
	Error          string        `json:"error"`
	ErrorMessage   string        `json:"errorMessage"`
	ProcessingHash string        `json:"processingHash"`
}

// HandleEvent merges an ocr_completed or ocr_error push event.
func (r *Reconciler) HandleEvent(ctx context.Context, ev realtime.Event) error {
	u, err := updateFromEvent(ev)
	if err != nil {
		return err
	}
	r.Apply(ctx, u)
	return nil
}

func updateFromEvent(ev realtime.Event) (models.StatusUpdate, error) {
	var body ocrEventBody
	if err := ev.Decode(&body); err != nil {
		return models.StatusUpdate{}, err
	}
	remoteID := ev.RemoteID
	if remoteID == "" {
		remoteID = body.DocumentID
	}
	if remoteID == "" {
		return models.StatusUpdate{}, fmt.Errorf("%s event without document id", ev.Name)
	}

	u := models.StatusUpdate{
		RemoteID:       remoteID,
		ExtractedData:  body.ExtractedData,
		ProcessingHash: body.ProcessingHash,
		Source:         models.SourcePush,
	}
	switch ev.Name {
	case realtime.EventOCRCompleted:
		u.Status = models.StatusCompleted
	case realtime.EventOCRError:
		u.Status = models.StatusError
		u.ErrorMessage = body.ErrorMessage
		if u.ErrorMessage == "" {
			u.ErrorMessage = body.Error
		}
		if u.ErrorMessage == "" {
			u.ErrorMessage = "document processing failed"
		}
	default:
		return models.StatusUpdate{}, fmt.Errorf("unexpected ocr event %q", ev.Name)
	}
	return u, nil
}
