package models

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/docsales/realstate-docgen-front-sub000/pkg/payload"
)

// LocalID is generated client-side and stable for the session.
type LocalID string

// DocumentType names a requirement slot (e.g. "RG", "CPF", "MATRICULA").
type DocumentType string

// Category groups descriptors by contract party.
type Category string

const (
	CategoryBuyer    Category = "buyer"
	CategorySeller   Category = "seller"
	CategoryProperty Category = "property"
	CategoryProposal Category = "proposal"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryBuyer, CategorySeller, CategoryProperty, CategoryProposal:
		return true
	}
	return false
}

// Validation is a tri-state flag: unknown until the extraction says otherwise.
type Validation int8

const (
	ValidationUnknown Validation = iota
	ValidationValid
	ValidationInvalid
)

// ValidationOf converts a boolean verdict.
func ValidationOf(valid bool) Validation {
	if valid {
		return ValidationValid
	}
	return ValidationInvalid
}

func (v Validation) MarshalJSON() ([]byte, error) {
	switch v {
	case ValidationValid:
		return []byte("true"), nil
	case ValidationInvalid:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (v *Validation) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	if b == nil {
		*v = ValidationUnknown
		return nil
	}
	*v = ValidationOf(*b)
	return nil
}

// Descriptor is the session-held record of one uploaded artifact.
type Descriptor struct {
	LocalID         LocalID                  `json:"localId"`
	RemoteID        string                   `json:"remoteId,omitempty"`
	DealID          string                   `json:"dealId"`
	DeclaredType    DocumentType             `json:"type"`
	AdditionalTypes []DocumentType           `json:"additionalTypes,omitempty"`
	LinkedRemoteIDs []string                 `json:"linkedRemoteIds,omitempty"`
	Category        Category                 `json:"category"`
	PersonID        string                   `json:"personId,omitempty"`
	Status          Status                   `json:"status"`
	Validated       Validation               `json:"validated"`
	ExtractedData   payload.Value            `json:"extractedData"`
	ErrorMessage    string                   `json:"errorMessage,omitempty"`
	ProcessingHash  string                   `json:"processingHash,omitempty"`
	Mismatch        *ValidationMismatchError `json:"mismatch,omitempty"`
	FileName        string                   `json:"fileName,omitempty"`
	ContentType     string                   `json:"contentType,omitempty"`
	Content         []byte                   `json:"-"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

// Satisfies reports whether the descriptor covers requirement type t, either
// through its declared type or one of its additional satisfied types.
func (d *Descriptor) Satisfies(t DocumentType) bool {
	if d.DeclaredType == t {
		return true
	}
	return slices.Contains(d.AdditionalTypes, t)
}

// AddType records t as an additional satisfied type. It reports false when t
// was already covered.
func (d *Descriptor) AddType(t DocumentType) bool {
	if d.Satisfies(t) {
		return false
	}
	d.AdditionalTypes = append(d.AdditionalTypes, t)
	return true
}

// Transition moves the descriptor to next if the state machine allows it.
func (d *Descriptor) Transition(next Status, now time.Time) error {
	if !d.Status.CanTransitionTo(next) {
		return &TransitionError{LocalID: d.LocalID, From: d.Status, To: next}
	}
	d.Status = next
	d.UpdatedAt = now
	return nil
}

// AssignRemoteID sets the server identifier. It may only be set once.
func (d *Descriptor) AssignRemoteID(remoteID string) error {
	if d.RemoteID != "" && d.RemoteID != remoteID {
		return &RemoteIDConflictError{LocalID: d.LocalID, Existing: d.RemoteID, Incoming: remoteID}
	}
	d.RemoteID = remoteID
	return nil
}

// Clone returns a copy that shares no mutable slices with d.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	c.AdditionalTypes = slices.Clone(d.AdditionalTypes)
	c.LinkedRemoteIDs = slices.Clone(d.LinkedRemoteIDs)
	if d.Mismatch != nil {
		m := *d.Mismatch
		c.Mismatch = &m
	}
	return &c
}
