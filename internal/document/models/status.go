package models

import "fmt"

// Status is the processing state of a descriptor.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var transitions = map[Status][]Status{
	StatusIdle:       {StatusUploading},
	StatusUploading:  {StatusProcessing, StatusError},
	StatusProcessing: {StatusCompleted, StatusError},
	StatusError:      {StatusIdle},
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusIdle, StatusUploading, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
// error -> idle is the explicit retry edge.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true for completed and error.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// InFlight is true while the external service still owes a result.
func (s Status) InFlight() bool {
	return s == StatusUploading || s == StatusProcessing
}

// TransitionError reports an illegal status change.
type TransitionError struct {
	LocalID LocalID
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("descriptor %s: illegal transition %s -> %s", e.LocalID, e.From, e.To)
}
