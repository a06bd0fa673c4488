package reconcile

import (
	"context"
	"errors"
	"testing"

	"gamedash/internal/models"
	"gamedash/internal/orchestrator"
	"gamedash/internal/registry"
)

type fakeLister struct {
	servers []models.RemoteServer
	err     error
}

func (f *fakeLister) ListServers(_ context.Context, _ string) ([]models.RemoteServer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.servers, nil
}

func (f *fakeLister) GetServer(_ context.Context, _, externalID string) (*models.RemoteServer, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.servers {
		if s.Identifier == externalID {
			return &s, nil
		}
	}
	return nil, &orchestrator.TransportError{Status: 404, Body: "not found"}
}

func remote(id, status string) models.RemoteServer {
	return models.RemoteServer{Identifier: id, Name: "srv-" + id, Status: status}
}

func findRecord(t *testing.T, records []*models.ServerRecord, externalID string) *models.ServerRecord {
	t.Helper()
	for _, rec := range records {
		if rec.ExternalID == externalID {
			return rec
		}
	}
	t.Fatalf("no record for %q in %+v", externalID, records)
	return nil
}

func TestSyncOwnerCreatesRecords(t *testing.T) {
	lister := &fakeLister{servers: []models.RemoteServer{remote("a1", "running")}}
	reg := registry.NewMemory()
	r := New(lister, reg)

	result, err := r.SyncOwner(context.Background(), 7, "key")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(result.Records) != 1 || len(result.Failures) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	rec := findRecord(t, result.Records, "a1")
	if rec.OwnerID != 7 {
		t.Fatalf("owner is %d, expected 7", rec.OwnerID)
	}
	if rec.PowerState != models.StateRunning {
		t.Fatalf("power state is %s, expected running", rec.PowerState)
	}
}

func TestMissingServersAreMarkedRemoved(t *testing.T) {
	lister := &fakeLister{servers: []models.RemoteServer{remote("a1", "running")}}
	reg := registry.NewMemory()
	r := New(lister, reg)

	if _, err := r.SyncOwner(context.Background(), 7, "key"); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	lister.servers = nil
	result, err := r.SyncOwner(context.Background(), 7, "key")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	rec := findRecord(t, result.Records, "a1")
	if rec.PowerState != models.StateRemoved {
		t.Fatalf("expected removed, got %s", rec.PowerState)
	}

	// Stays removed across further empty passes.
	result, err = r.SyncOwner(context.Background(), 7, "key")
	if err != nil {
		t.Fatalf("third sync: %v", err)
	}
	if findRecord(t, result.Records, "a1").PowerState != models.StateRemoved {
		t.Fatal("removed state did not persist")
	}
}

func TestReappearingServerRevivesSameRecord(t *testing.T) {
	lister := &fakeLister{servers: []models.RemoteServer{remote("a1", "running")}}
	reg := registry.NewMemory()
	r := New(lister, reg)

	first, err := r.SyncOwner(context.Background(), 7, "key")
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	originalID := findRecord(t, first.Records, "a1").ID

	lister.servers = nil
	if _, err := r.SyncOwner(context.Background(), 7, "key"); err != nil {
		t.Fatalf("removal sync: %v", err)
	}

	lister.servers = []models.RemoteServer{remote("a1", "offline")}
	revived, err := r.SyncOwner(context.Background(), 7, "key")
	if err != nil {
		t.Fatalf("revival sync: %v", err)
	}

	rec := findRecord(t, revived.Records, "a1")
	if rec.ID != originalID {
		t.Fatalf("revival changed internal id: %d -> %d", originalID, rec.ID)
	}
	if rec.PowerState != models.StateOffline {
		t.Fatalf("expected offline after revival, got %s", rec.PowerState)
	}
}

func TestRecordsIncludeUntouchedRemoved(t *testing.T) {
	lister := &fakeLister{servers: []models.RemoteServer{remote("a1", "running"), remote("b2", "running")}}
	reg := registry.NewMemory()
	r := New(lister, reg)

	if _, err := r.SyncOwner(context.Background(), 7, "key"); err != nil {
		t.Fatalf("seed sync: %v", err)
	}

	lister.servers = []models.RemoteServer{remote("a1", "running")}
	if _, err := r.SyncOwner(context.Background(), 7, "key"); err != nil {
		t.Fatalf("removal sync: %v", err)
	}

	// A later pass that never touches b2 still reports it, so a single call
	// yields the full dashboard view including removed servers.
	result, err := r.SyncOwner(context.Background(), 7, "key")
	if err != nil {
		t.Fatalf("third sync: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected full record set, got %d records", len(result.Records))
	}
	if findRecord(t, result.Records, "b2").PowerState != models.StateRemoved {
		t.Fatal("untouched removed record missing or revived")
	}
}

func TestDuplicateExternalIDLaterEntryWins(t *testing.T) {
	first := remote("a1", "offline")
	second := remote("a1", "running")
	second.Name = "later entry"
	lister := &fakeLister{servers: []models.RemoteServer{first, second}}
	reg := registry.NewMemory()
	r := New(lister, reg)

	result, err := r.SyncOwner(context.Background(), 7, "key")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected a single record, got %d", len(result.Records))
	}
	rec := result.Records[0]
	if rec.Name != "later entry" || rec.PowerState != models.StateRunning {
		t.Fatalf("later entry did not win: %+v", rec)
	}
}

func TestMalformedEntryDoesNotAbortBatch(t *testing.T) {
	lister := &fakeLister{servers: []models.RemoteServer{
		remote("a1", "running"),
		{Identifier: "", Name: "broken"},
		remote("b2", "offline"),
	}}
	reg := registry.NewMemory()
	r := New(lister, reg)

	result, err := r.SyncOwner(context.Background(), 7, "key")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected both valid servers, got %d", len(result.Records))
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected one failure, got %+v", result.Failures)
	}
	findRecord(t, result.Records, "a1")
	findRecord(t, result.Records, "b2")
}

func TestListFailureLeavesRegistryUntouched(t *testing.T) {
	lister := &fakeLister{servers: []models.RemoteServer{remote("a1", "running")}}
	reg := registry.NewMemory()
	r := New(lister, reg)

	if _, err := r.SyncOwner(context.Background(), 7, "key"); err != nil {
		t.Fatalf("seed sync: %v", err)
	}

	lister.err = &orchestrator.TransportError{Status: 500, Body: "boom"}
	if _, err := r.SyncOwner(context.Background(), 7, "key"); err == nil {
		t.Fatal("expected transport error to propagate")
	}

	rec, err := reg.ByExternalID("a1")
	if err != nil {
		t.Fatalf("record vanished: %v", err)
	}
	if rec.PowerState != models.StateRunning {
		t.Fatalf("failed pass mutated state: %s", rec.PowerState)
	}
}

func TestSyncServerOwnershipGuard(t *testing.T) {
	lister := &fakeLister{servers: []models.RemoteServer{remote("a1", "running")}}
	reg := registry.NewMemory()
	r := New(lister, reg)

	if _, err := r.SyncServer(context.Background(), 7, "key", "a1"); err != nil {
		t.Fatalf("owner sync: %v", err)
	}

	// Another user resolving the same external id must see not-found, not an
	// owner swap.
	if _, err := r.SyncServer(context.Background(), 8, "key", "a1"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rec, _ := reg.ByExternalID("a1")
	if rec.OwnerID != 7 {
		t.Fatalf("owner changed to %d", rec.OwnerID)
	}
}

func TestOwnersReconcileIndependently(t *testing.T) {
	lister := &fakeLister{servers: []models.RemoteServer{remote("a1", "running")}}
	reg := registry.NewMemory()
	r := New(lister, reg)

	if _, err := r.SyncOwner(context.Background(), 7, "key7"); err != nil {
		t.Fatalf("owner 7: %v", err)
	}

	lister.servers = []models.RemoteServer{remote("b2", "running")}
	if _, err := r.SyncOwner(context.Background(), 9, "key9"); err != nil {
		t.Fatalf("owner 9: %v", err)
	}

	// Owner 9's pass must not mark owner 7's server removed.
	rec, _ := reg.ByExternalID("a1")
	if rec.PowerState != models.StateRunning {
		t.Fatalf("cross-owner removal: %s", rec.PowerState)
	}
}
