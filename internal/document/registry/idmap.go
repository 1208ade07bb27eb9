package registry

import (
	"sync"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
)

// IDMap is the bidirectional local<->remote identifier map. A local id has one
// primary remote id; linked records add extra remote aliases pointing back to
// the same local id.
type IDMap struct {
	mu       sync.RWMutex
	toRemote map[models.LocalID]string
	toLocal  map[string]models.LocalID
}

func NewIDMap() *IDMap {
	return &IDMap{
		toRemote: make(map[models.LocalID]string),
		toLocal:  make(map[string]models.LocalID),
	}
}

// Record stores the primary mapping in both directions.
func (m *IDMap) Record(local models.LocalID, remote string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toRemote[local] = remote
	m.toLocal[remote] = local
}

// Alias maps an additional remote id back to local without touching the
// primary remote id.
func (m *IDMap) Alias(remote string, local models.LocalID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toLocal[remote] = local
}

// Remote returns the primary remote id of local.
func (m *IDMap) Remote(local models.LocalID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	remote, ok := m.toRemote[local]
	return remote, ok
}

// Local returns the local id mapped to remote.
func (m *IDMap) Local(remote string) (models.LocalID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	local, ok := m.toLocal[remote]
	return local, ok
}

// Resolve maps remote to its local id, falling back to the remote id itself
// for records whose local and remote ids coincide.
func (m *IDMap) Resolve(remote string) models.LocalID {
	if local, ok := m.Local(remote); ok {
		return local
	}
	return models.LocalID(remote)
}
