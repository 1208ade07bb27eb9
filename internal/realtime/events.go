// Package realtime owns the shared duplex connections that deliver status
// events from the OCR service. One connection exists per namespace and is
// reference-counted across consumers.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Namespace selects the logical domain a connection serves.
type Namespace string

const (
	NamespaceOCR              Namespace = "ocr"
	NamespacePreview          Namespace = "preview"
	NamespaceCoupleValidation Namespace = "couple_validation"
)

// Inbound event names.
const (
	EventOCRCompleted              = "ocr_completed"
	EventOCRError                  = "ocr_error"
	EventCoupleValidationStarted   = "couple_validation_started"
	EventCoupleValidationCompleted = "couple_validation_completed"
	EventCoupleValidationError     = "couple_validation_error"

	// EventReconnected is emitted by transports after the connection was
	// re-established; events sent while it was down may be lost.
	EventReconnected = "reconnected"
)

// Event is the envelope of every inbound message. Data carries the
// event-specific body.
type Event struct {
	ID         string          `json:"eventId,omitempty"`
	Name       string          `json:"event"`
	DealID     string          `json:"dealId,omitempty"`
	CoupleID   string          `json:"coupleId,omitempty"`
	RemoteID   string          `json:"documentId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	ReceivedAt time.Time       `json:"-"`
}

// DecodeEvent parses and normalizes a wire message.
func DecodeEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("decode realtime event: %w", err)
	}
	ev.Name = strings.ToLower(strings.TrimSpace(ev.Name))
	ev.DealID = strings.TrimSpace(ev.DealID)
	ev.CoupleID = strings.TrimSpace(ev.CoupleID)
	ev.RemoteID = strings.TrimSpace(ev.RemoteID)
	if ev.Name == "" {
		return Event{}, errors.New("decode realtime event: missing event name")
	}
	ev.ReceivedAt = time.Now()
	return ev, nil
}

// Decode unmarshals the event body into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s body: %w", e.Name, err)
	}
	return nil
}
