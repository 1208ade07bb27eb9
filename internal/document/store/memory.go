// Package store persists descriptor checkpoints for the registry.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/platform/sentinel"
)

// InMemory keeps checkpoints for the lifetime of the process.
type InMemory struct {
	mu          sync.RWMutex
	descriptors map[models.LocalID]*models.Descriptor
}

func NewInMemory() *InMemory {
	return &InMemory{descriptors: make(map[models.LocalID]*models.Descriptor)}
}

// Save stores a snapshot unless a newer one is already present.
func (s *InMemory) Save(_ context.Context, d *models.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.descriptors[d.LocalID]; ok && existing.UpdatedAt.After(d.UpdatedAt) {
		return nil
	}
	snapshot := d.Clone()
	snapshot.Content = nil
	s.descriptors[d.LocalID] = snapshot
	return nil
}

// Get returns one checkpoint.
func (s *InMemory) Get(_ context.Context, localID models.LocalID) (*models.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.descriptors[localID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return d.Clone(), nil
}

// LoadDeal returns the deal's checkpoints ordered by creation time.
func (s *InMemory) LoadDeal(_ context.Context, dealID string) ([]*models.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Descriptor
	for _, d := range s.descriptors {
		if d.DealID == dealID {
			out = append(out, d.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].LocalID < out[j].LocalID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
