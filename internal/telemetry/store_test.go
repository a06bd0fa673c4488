package telemetry

import (
	"testing"
	"time"

	"gamedash/internal/models"
)

func sampleAt(serverID int64, n int) models.UsageSample {
	return models.UsageSample{
		ServerID:    serverID,
		SampledAt:   time.Unix(int64(1700000000+n), 0).UTC(),
		CPUPercent:  float64(n),
		MemoryBytes: int64(n) * 1024,
		DiskBytes:   int64(n) * 2048,
		State:       "running",
	}
}

func TestRecordAndLatest(t *testing.T) {
	store := NewMemoryStore()

	if latest, err := store.Latest(3); err != nil || latest != nil {
		t.Fatalf("expected no sample, got %+v err=%v", latest, err)
	}

	stored, err := store.Record(sampleAt(3, 1))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if stored.ServerID != 3 || stored.CPUPercent != 1 {
		t.Fatalf("unexpected stored sample: %+v", stored)
	}

	latest, err := store.Latest(3)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || !latest.SampledAt.Equal(stored.SampledAt) {
		t.Fatalf("latest mismatch: %+v", latest)
	}
}

func TestHistoryCapEvictsOldestFirst(t *testing.T) {
	store := NewMemoryStore()

	for n := 0; n < HistoryLimit+1; n++ {
		if _, err := store.Record(sampleAt(3, n)); err != nil {
			t.Fatalf("record %d: %v", n, err)
		}
	}

	history, err := store.History(3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != HistoryLimit {
		t.Fatalf("expected %d samples, got %d", HistoryLimit, len(history))
	}
	// Sample 0 is the oldest of the 101 and must be gone.
	if history[0].CPUPercent != 1 {
		t.Fatalf("oldest retained sample is %v, expected 1", history[0].CPUPercent)
	}
	if history[len(history)-1].CPUPercent != float64(HistoryLimit) {
		t.Fatalf("newest sample is %v, expected %d", history[len(history)-1].CPUPercent, HistoryLimit)
	}
	for i := 1; i < len(history); i++ {
		if history[i].SampledAt.Before(history[i-1].SampledAt) {
			t.Fatal("history not ordered oldest first")
		}
	}
}

func TestHistoriesAreIndependentPerServer(t *testing.T) {
	store := NewMemoryStore()

	store.Record(sampleAt(1, 1))
	store.Record(sampleAt(2, 2))
	store.Record(sampleAt(2, 3))

	one, _ := store.History(1)
	two, _ := store.History(2)
	if len(one) != 1 || len(two) != 2 {
		t.Fatalf("cross-server contamination: %d and %d", len(one), len(two))
	}
}
