package registry

import (
	"strings"
	"time"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/payload"
)

// Outcome describes what an inbound StatusUpdate did to the registry.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnknown   Outcome = "unknown"
)

var (
	detectedTypeKeys = []string{"tipoDocumento", "detectedType", "documentType"}
	validityKeys     = []string{"isValid", "valid", "documentoValido"}
)

// merge applies u to d when it is a legal forward step from d's current
// status. Same-status updates only refresh auxiliary fields. Idle descriptors
// accept nothing: after a retry, late events from the previous run must not
// undo it. The one edge outside the transition table is uploading ->
// completed, taken when the push event beats the upload response.
func merge(d *models.Descriptor, u models.StatusUpdate, now time.Time) Outcome {
	if !u.Status.IsValid() || u.Status == models.StatusIdle || u.Status == models.StatusUploading {
		return OutcomeIgnored
	}
	if u.Status == d.Status {
		if refresh(d, u) {
			d.UpdatedAt = now
			return OutcomeRefreshed
		}
		return OutcomeIgnored
	}
	if !d.Status.CanTransitionTo(u.Status) && !earlyCompletion(d.Status, u.Status) {
		return OutcomeIgnored
	}

	d.Status = u.Status
	refresh(d, u)
	d.UpdatedAt = now
	return OutcomeApplied
}

func earlyCompletion(current, next models.Status) bool {
	return current == models.StatusUploading && next == models.StatusCompleted
}

// refresh copies auxiliary fields carried by u and reports whether anything
// changed. It never changes the status.
func refresh(d *models.Descriptor, u models.StatusUpdate) bool {
	changed := false
	if u.ProcessingHash != "" && u.ProcessingHash != d.ProcessingHash {
		d.ProcessingHash = u.ProcessingHash
		changed = true
	}
	switch d.Status {
	case models.StatusCompleted:
		if !u.ExtractedData.IsNull() && !u.ExtractedData.Equal(d.ExtractedData) {
			d.ExtractedData = u.ExtractedData
			changed = true
		}
		if d.ErrorMessage != "" {
			d.ErrorMessage = ""
			changed = true
		}
		if assess(d) {
			changed = true
		}
	case models.StatusError:
		if u.ErrorMessage != "" && u.ErrorMessage != d.ErrorMessage {
			d.ErrorMessage = u.ErrorMessage
			changed = true
		}
	}
	return changed
}

// assess derives the validation flag and type mismatch from extracted data.
func assess(d *models.Descriptor) bool {
	validation := models.ValidationValid
	var mismatch *models.ValidationMismatchError

	if detected, ok := d.ExtractedData.FindString(detectedTypeKeys...); ok {
		observed := models.DocumentType(strings.ToUpper(strings.TrimSpace(detected)))
		if !d.Satisfies(observed) {
			validation = models.ValidationInvalid
			mismatch = &models.ValidationMismatchError{
				LocalID:  d.LocalID,
				Expected: d.DeclaredType,
				Observed: observed,
			}
		}
	}
	if mismatch == nil {
		if flag, ok := findBool(d.ExtractedData, validityKeys...); ok {
			validation = models.ValidationOf(flag)
		}
	}

	changed := d.Validated != validation || !sameMismatch(d.Mismatch, mismatch)
	d.Validated = validation
	d.Mismatch = mismatch
	return changed
}

func findBool(v payload.Value, keys ...string) (bool, bool) {
	for _, k := range keys {
		if node, ok := v.Lookup(k); ok {
			if b, ok := node.Truthy(); ok {
				return b, true
			}
		}
	}
	return false, false
}

func sameMismatch(a, b *models.ValidationMismatchError) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Expected == b.Expected && a.Observed == b.Observed
}
