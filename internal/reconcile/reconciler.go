// Package reconcile merges orchestrator-reported server batches into the
// local registry. The orchestrator is the system of record; reconciliation
// makes the registry agree with whatever it reported last, marking anything
// it stopped reporting as removed instead of deleting it.
package reconcile

import (
	"context"
	"sync"

	"gamedash/internal/models"
	"gamedash/internal/orchestrator"
	"gamedash/internal/registry"

	"github.com/rs/zerolog/log"
)

// ServerLister is the orchestrator surface the reconciler depends on.
type ServerLister interface {
	ListServers(ctx context.Context, credential string) ([]models.RemoteServer, error)
	GetServer(ctx context.Context, credential, externalID string) (*models.RemoteServer, error)
}

var _ ServerLister = (*orchestrator.Client)(nil)

// ItemFailure reports one batch entry that could not be merged. A malformed
// entry never aborts the rest of the batch.
type ItemFailure struct {
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
}

// Result is the outcome of one reconciliation pass: the owner's full record
// set after the merge plus any per-item failures. Records is deliberately a
// superset of what the pass touched; it includes records marked removed in
// earlier passes so one call yields the complete dashboard view, removed
// servers included.
type Result struct {
	Records  []*models.ServerRecord `json:"servers"`
	Failures []ItemFailure          `json:"failures,omitempty"`
}

// Reconciler drives reconciliation passes against a registry. Passes for the
// same owner are serialized with a per-owner mutex so concurrent polls cannot
// interleave partial merges; passes for different owners run independently.
type Reconciler struct {
	client ServerLister
	reg    registry.Registry

	mu     sync.Mutex
	owners map[int64]*sync.Mutex
}

// New builds a reconciler over the given orchestrator client and registry.
func New(client ServerLister, reg registry.Registry) *Reconciler {
	return &Reconciler{
		client: client,
		reg:    reg,
		owners: make(map[int64]*sync.Mutex),
	}
}

func (r *Reconciler) ownerLock(ownerID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.owners[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		r.owners[ownerID] = lock
	}
	return lock
}

// SyncOwner fetches the owner's servers from the orchestrator and merges the
// batch into the registry. A transport failure of the list call aborts the
// pass with no local changes.
func (r *Reconciler) SyncOwner(ctx context.Context, ownerID int64, credential string) (*Result, error) {
	lock := r.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	remotes, err := r.client.ListServers(ctx, credential)
	if err != nil {
		return nil, err
	}
	return r.merge(ownerID, remotes)
}

// SyncServer reconciles a single server by external id. The record is created
// or updated in place; servers registered to another owner are reported as
// not found rather than leaking their existence.
func (r *Reconciler) SyncServer(ctx context.Context, ownerID int64, credential, externalID string) (*models.ServerRecord, error) {
	lock := r.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	remote, err := r.client.GetServer(ctx, credential, externalID)
	if err != nil {
		return nil, err
	}
	rec, err := r.reg.Upsert(ownerID, *remote)
	if err == registry.ErrOwnerMismatch {
		return nil, registry.ErrNotFound
	}
	return rec, err
}

// merge applies one reported batch for an owner. Entries are processed in
// iteration order, so a duplicated external id resolves to the later entry.
// External ids previously known for the owner but absent from the batch are
// marked removed; an id that reappears later revives the same record in
// place, keeping its internal id and telemetry linkage.
func (r *Reconciler) merge(ownerID int64, remotes []models.RemoteServer) (*Result, error) {
	known, err := r.reg.ListByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	seen := make(map[string]bool, len(remotes))

	for _, remote := range remotes {
		if remote.Identifier == "" {
			result.Failures = append(result.Failures, ItemFailure{
				Reason: "reported server has no identifier",
			})
			continue
		}
		if _, err := r.reg.Upsert(ownerID, remote); err != nil {
			log.Warn().Err(err).
				Str("external_id", remote.Identifier).
				Int64("owner_id", ownerID).
				Msg("Skipping unmergeable server in batch")
			result.Failures = append(result.Failures, ItemFailure{
				ExternalID: remote.Identifier,
				Reason:     err.Error(),
			})
			continue
		}
		seen[remote.Identifier] = true
	}

	// Servers deleted directly through the orchestrator stop appearing in the
	// batch; their local records transition to the terminal removed state.
	for _, rec := range known {
		if seen[rec.ExternalID] || rec.PowerState == models.StateRemoved {
			continue
		}
		if _, err := r.reg.SetPowerState(rec.ID, models.StateRemoved); err != nil {
			result.Failures = append(result.Failures, ItemFailure{
				ExternalID: rec.ExternalID,
				Reason:     err.Error(),
			})
		}
	}

	result.Records, err = r.reg.ListByOwner(ownerID)
	if err != nil {
		return nil, err
	}
	return result, nil
}
