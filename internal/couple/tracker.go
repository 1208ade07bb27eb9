package couple

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports"
	"github.com/docsales/realstate-docgen-front-sub000/internal/realtime"
)

// DefaultStartTimeout bounds the start call. It is never retried.
const DefaultStartTimeout = 5 * time.Second

// Tracker runs the state machine of one couple:
// NoResult -start-> InProgress -completed-> Resolved, and InProgress -error->
// NoResult with the error retained. Start is allowed from any state.
type Tracker struct {
	mu      sync.Mutex
	state   State
	starter ports.CoupleValidationStarter
	timeout time.Duration
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func newTracker(dealID, coupleID string, w *Workflow) *Tracker {
	return &Tracker{
		state: State{
			DealID:   dealID,
			CoupleID: coupleID,
			Status:   StatusNoResult,
		},
		starter: w.starter,
		timeout: w.timeout,
		metrics: w.metrics,
		logger:  w.logger,
		now:     w.now,
	}
}

// State returns a snapshot.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

// Start asks the OCR service to validate the couple. The state moves to
// InProgress before the call so events racing the acknowledgment apply.
func (t *Tracker) Start(ctx context.Context, titularPersonID, spousePersonID string) (State, error) {
	t.mu.Lock()
	t.state.Attempts++
	t.state.LastError = ""
	t.state.Result = nil
	t.state.Status = StatusInProgress
	t.state.TitularPersonID = titularPersonID
	t.state.SpousePersonID = spousePersonID
	t.state.UpdatedAt = t.now()
	attempt := t.state.Attempts
	req := ports.CoupleValidationRequest{
		DealID:          t.state.DealID,
		CoupleID:        t.state.CoupleID,
		TitularPersonID: titularPersonID,
		SpousePersonID:  spousePersonID,
	}
	t.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	err := t.starter.StartCoupleValidation(callCtx, req)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.metrics.incStart("failed")
		// A newer attempt or a faster event owns the state now.
		if t.state.Attempts == attempt && t.state.Status == StatusInProgress {
			t.state.Status = StatusNoResult
			t.state.LastError = err.Error()
			t.state.UpdatedAt = t.now()
		}
		return t.state.clone(), fmt.Errorf("start couple validation: %w", err)
	}
	t.metrics.incStart("acknowledged")
	t.logger.InfoContext(ctx, "couple validation started",
		"deal_id", req.DealID,
		"couple_id", req.CoupleID,
		"attempt", attempt,
	)
	return t.state.clone(), nil
}

type eventBody struct {
	DealID       string    `json:"dealId"`
	CoupleID     string    `json:"coupleId"`
	IsValid      *bool     `json:"isValid"`
	Valid        *bool     `json:"valid"`
	Problems     []Problem `json:"problems"`
	Issues       []Problem `json:"issues"`
	Error        string    `json:"error"`
	ErrorMessage string    `json:"errorMessage"`
}

// HandleEvent applies ev if it carries this tracker's deal and couple ids.
// Results only land on a validation in progress. It reports whether the
// event was applied.
func (t *Tracker) HandleEvent(ctx context.Context, ev realtime.Event) (bool, error) {
	var body eventBody
	if err := ev.Decode(&body); err != nil {
		return false, err
	}
	dealID, coupleID := ev.DealID, ev.CoupleID
	if dealID == "" {
		dealID = body.DealID
	}
	if coupleID == "" {
		coupleID = body.CoupleID
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if dealID != t.state.DealID || coupleID != t.state.CoupleID {
		return false, nil
	}

	switch ev.Name {
	case realtime.EventCoupleValidationStarted:
		// Only Start enters InProgress; a started event that trails its
		// error must not reopen the attempt.
		if t.state.Status != StatusInProgress {
			return false, nil
		}
	case realtime.EventCoupleValidationCompleted:
		if t.state.Status != StatusInProgress {
			return false, nil
		}
		valid := false
		switch {
		case body.IsValid != nil:
			valid = *body.IsValid
		case body.Valid != nil:
			valid = *body.Valid
		}
		problems := body.Problems
		if problems == nil {
			problems = body.Issues
		}
		if problems == nil {
			problems = []Problem{}
		}
		t.state.Status = StatusResolved
		t.state.Result = &Result{Valid: valid, Problems: problems}
		t.state.LastError = ""
	case realtime.EventCoupleValidationError:
		if t.state.Status != StatusInProgress {
			return false, nil
		}
		msg := body.Error
		if msg == "" {
			msg = body.ErrorMessage
		}
		if msg == "" {
			msg = "couple validation failed"
		}
		t.state.Status = StatusNoResult
		t.state.Result = nil
		t.state.LastError = msg
	default:
		return false, nil
	}
	t.state.UpdatedAt = t.now()
	t.metrics.incEvent(ev.Name)
	t.logger.DebugContext(ctx, "couple validation event applied",
		"deal_id", dealID,
		"couple_id", coupleID,
		"event", ev.Name,
		"status", t.state.Status,
	)
	return true, nil
}
