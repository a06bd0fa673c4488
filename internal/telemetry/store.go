// Package telemetry stores bounded per-server resource-usage history and
// collects fresh samples from the orchestrator.
package telemetry

import (
	"sync"

	"gamedash/internal/models"
)

// HistoryLimit caps the retained samples per server. The history backs
// recent-usage charts, not long-term analytics; oldest samples are evicted
// first once the cap is exceeded.
const HistoryLimit = 100

// Store keeps usage samples keyed by server internal id. The reference to a
// server record is non-owning: marking a record removed does not drop its
// samples, and the store accepts samples for removed servers (callers are
// expected to stop polling them instead).
type Store interface {
	// Record appends a sample and applies the capacity rule, returning the
	// stored sample.
	Record(sample models.UsageSample) (*models.UsageSample, error)

	// History returns the retained samples for a server, oldest first.
	History(serverID int64) ([]*models.UsageSample, error)

	// Latest returns the most recent sample, or nil when none is recorded.
	Latest(serverID int64) (*models.UsageSample, error)
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	samples map[int64][]models.UsageSample
}

// NewMemoryStore returns an empty in-memory telemetry store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{samples: make(map[int64][]models.UsageSample)}
}

// Record appends a sample for its server and evicts from the front once the
// history exceeds HistoryLimit.
func (s *MemoryStore) Record(sample models.UsageSample) (*models.UsageSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.samples[sample.ServerID], sample)
	if overflow := len(history) - HistoryLimit; overflow > 0 {
		history = append(history[:0], history[overflow:]...)
	}
	s.samples[sample.ServerID] = history
	return sample.Copy(), nil
}

// History returns the retained samples for a server, oldest first.
func (s *MemoryStore) History(serverID int64) ([]*models.UsageSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.samples[serverID]
	out := make([]*models.UsageSample, 0, len(history))
	for i := range history {
		out = append(out, history[i].Copy())
	}
	return out, nil
}

// Latest returns the most recent sample, or nil when none is recorded.
func (s *MemoryStore) Latest(serverID int64) (*models.UsageSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.samples[serverID]
	if len(history) == 0 {
		return nil, nil
	}
	return history[len(history)-1].Copy(), nil
}
