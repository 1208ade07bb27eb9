package models

import "github.com/docsales/realstate-docgen-front-sub000/pkg/payload"

// UpdateSource tells which delivery path produced a StatusUpdate.
type UpdateSource string

const (
	SourcePush UpdateSource = "push"
	SourcePull UpdateSource = "pull"
)

// StatusUpdate is an inbound fact about a remote document, keyed by remote id.
type StatusUpdate struct {
	RemoteID       string
	Status         Status
	ExtractedData  payload.Value
	ErrorMessage   string
	ProcessingHash string
	Source         UpdateSource
}
