package registry

import (
	"sort"
	"sync"
	"time"

	"gamedash/internal/models"
)

// MemoryRegistry is the in-process Registry implementation. All accessors
// return copies so callers can never mutate stored records directly.
type MemoryRegistry struct {
	mu         sync.RWMutex
	byInternal map[int64]*models.ServerRecord
	byExternal map[string]*models.ServerRecord
	nextID     int64
}

// NewMemory returns an empty in-memory registry.
func NewMemory() *MemoryRegistry {
	return &MemoryRegistry{
		byInternal: make(map[int64]*models.ServerRecord),
		byExternal: make(map[string]*models.ServerRecord),
		nextID:     1,
	}
}

// Upsert creates or merges a record for the reported server.
func (m *MemoryRegistry) Upsert(ownerID int64, remote models.RemoteServer) (*models.ServerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byExternal[remote.Identifier]
	if ok {
		if rec.OwnerID != ownerID {
			return nil, ErrOwnerMismatch
		}
		rec.ApplyRemote(remote)
		return rec.Copy(), nil
	}

	rec = &models.ServerRecord{
		ID:         m.nextID,
		ExternalID: remote.Identifier,
		OwnerID:    ownerID,
		CreatedAt:  time.Now().UTC(),
	}
	rec.ApplyRemote(remote)
	m.nextID++
	m.byInternal[rec.ID] = rec
	m.byExternal[rec.ExternalID] = rec
	return rec.Copy(), nil
}

// ByInternalID returns the record with the given internal id.
func (m *MemoryRegistry) ByInternalID(id int64) (*models.ServerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byInternal[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Copy(), nil
}

// ByExternalID returns the record with the given orchestrator identifier.
func (m *MemoryRegistry) ByExternalID(externalID string) (*models.ServerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byExternal[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Copy(), nil
}

// ListByOwner returns all records owned by the user, ordered by internal id.
func (m *MemoryRegistry) ListByOwner(ownerID int64) ([]*models.ServerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*models.ServerRecord, 0)
	for _, rec := range m.byInternal {
		if rec.OwnerID == ownerID {
			records = append(records, rec.Copy())
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// SetPowerState updates a record's power state.
func (m *MemoryRegistry) SetPowerState(internalID int64, state models.PowerState) (*models.ServerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byInternal[internalID]
	if !ok {
		return nil, ErrNotFound
	}
	rec.PowerState = state
	return rec.Copy(), nil
}
