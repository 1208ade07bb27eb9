// Package couple tracks joint validation of a titular person and their spouse.
// The start request only acknowledges; results arrive later as realtime
// events correlated by deal id and couple id.
package couple

import (
	"slices"
	"time"
)

// Status is the validation state of one couple.
type Status string

const (
	StatusNoResult   Status = "no_result"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// Problem is one itemized finding of a couple validation.
type Problem struct {
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation,omitempty"`
}

// Result is the verdict carried by a completed validation.
type Result struct {
	Valid    bool      `json:"valid"`
	Problems []Problem `json:"problems"`
}

// State is a snapshot of one couple's validation.
type State struct {
	DealID          string    `json:"dealId"`
	CoupleID        string    `json:"coupleId"`
	TitularPersonID string    `json:"titularPersonId,omitempty"`
	SpousePersonID  string    `json:"spousePersonId,omitempty"`
	Status          Status    `json:"status"`
	Result          *Result   `json:"result,omitempty"`
	LastError       string    `json:"lastError,omitempty"`
	Attempts        int       `json:"attempts"`
	UpdatedAt       time.Time `json:"updatedAt,omitzero"`
}

func (s State) clone() State {
	if s.Result != nil {
		r := *s.Result
		r.Problems = slices.Clone(s.Result.Problems)
		s.Result = &r
	}
	return s
}

type key struct {
	dealID   string
	coupleID string
}
