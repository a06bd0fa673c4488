// Package registry defines the local source of truth for server records.
// The orchestrator owns server existence; the registry owns record identity:
// internal ids are assigned here on first sight of an external id and never
// change, and records are never physically deleted.
package registry

import (
	"errors"

	"gamedash/internal/models"
)

// ErrNotFound is returned when no record matches the requested id.
var ErrNotFound = errors.New("server record not found")

// ErrOwnerMismatch is returned when an upsert targets an external id that is
// already registered to a different user. Owner ids are immutable after
// creation, so such a merge is refused outright.
var ErrOwnerMismatch = errors.New("server record belongs to another user")

// Registry stores server records keyed by external id. Implementations must
// guarantee that a read never observes a partially applied update.
type Registry interface {
	// Upsert creates a record for an unseen external id or overwrites the
	// orchestrator-sourced fields of the existing one. Internal id, owner id
	// and creation time are never altered by a merge.
	Upsert(ownerID int64, remote models.RemoteServer) (*models.ServerRecord, error)

	// ByInternalID returns the record with the given internal id.
	ByInternalID(id int64) (*models.ServerRecord, error)

	// ByExternalID returns the record with the given orchestrator identifier.
	ByExternalID(externalID string) (*models.ServerRecord, error)

	// ListByOwner returns all records owned by the given user, ordered by
	// internal id.
	ListByOwner(ownerID int64) ([]*models.ServerRecord, error)

	// SetPowerState updates a record's power state.
	SetPowerState(internalID int64, state models.PowerState) (*models.ServerRecord, error)
}
