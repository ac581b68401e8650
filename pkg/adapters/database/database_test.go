package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/flexscale/flexscale/pkg/adapters/database/sqlite"
	"github.com/flexscale/flexscale/pkg/ports"
	"github.com/flexscale/flexscale/pkg/types"
)

func TestGormSQLiteStorage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "flexscale_gorm.db")

	storage, err := NewDatabase(DatabaseConfig{Type: "sqlite", Database: dbPath})
	if err != nil {
		t.Fatalf("Failed to create GORM sqlite storage: %v", err)
	}
	defer storage.Close()

	testStorage(t, storage)
}

func TestRawSQLiteStorage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "flexscale_raw.db")

	storage, err := sqlite.NewSQLiteAdapter(dbPath)
	if err != nil {
		t.Fatalf("Failed to create raw sqlite storage: %v", err)
	}
	defer storage.Close()

	testStorage(t, storage)
}

// Both adapters must satisfy the same contract.
func testStorage(t *testing.T, storage ports.Database) {
	functionID := "messaging:echo"
	now := time.Now().UTC().Truncate(time.Second)

	// Registry
	sizing := types.FunctionSizing{ProvisionedMemMB: 2048, FunctionMemMB: 1024, CallerMemMB: 1024}
	if err := storage.UpsertSizing(functionID, sizing); err != nil {
		t.Fatalf("Failed to upsert sizing: %v", err)
	}
	sizing.FunctionMemMB = 2048
	if err := storage.UpsertSizing(functionID, sizing); err != nil {
		t.Fatalf("Failed to update sizing: %v", err)
	}

	got, err := storage.GetSizing(functionID)
	if err != nil {
		t.Fatalf("Failed to get sizing: %v", err)
	}
	if got == nil || *got != sizing {
		t.Errorf("Expected sizing %+v, got %+v", sizing, got)
	}

	missing, err := storage.GetSizing("unknown")
	if err != nil {
		t.Fatalf("Failed to get missing sizing: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unregistered function, got %+v", missing)
	}

	ids, err := storage.ListFunctionIDs()
	if err != nil {
		t.Fatalf("Failed to list functions: %v", err)
	}
	if len(ids) != 1 || ids[0] != functionID {
		t.Errorf("Expected [%s], got %v", functionID, ids)
	}

	// Scaling state: absent on first cycle, then read-modify-write.
	state, err := storage.GetState(functionID)
	if err != nil {
		t.Fatalf("Failed to get state: %v", err)
	}
	if state != nil {
		t.Errorf("Expected no state before first cycle, got %+v", state)
	}

	record := ports.StateRecord{
		FunctionID:   functionID,
		State:        types.ScalingState{Activity: 0.25, Waiting: 0.01},
		CurrentScale: 0,
		LastRescale:  now,
	}
	if err := storage.UpsertState(record); err != nil {
		t.Fatalf("Failed to upsert state: %v", err)
	}
	record.State.Activity = 0.5
	record.CurrentScale = 1
	record.LastRescale = now.Add(time.Minute)
	if err := storage.UpsertState(record); err != nil {
		t.Fatalf("Failed to update state: %v", err)
	}

	state, err = storage.GetState(functionID)
	if err != nil {
		t.Fatalf("Failed to get state: %v", err)
	}
	if state == nil {
		t.Fatal("Expected state after upsert")
	}
	if state.State.Activity != 0.5 || state.CurrentScale != 1 {
		t.Errorf("Unexpected state %+v", state)
	}
	if !state.LastRescale.Equal(record.LastRescale) {
		t.Errorf("Expected lastRescale %v, got %v", record.LastRescale, state.LastRescale)
	}

	// Sample buffer: drained exactly once, only up to the cutoff.
	if err := storage.InsertSamples(functionID, []float64{1.0, 0.5, 2.0}, now); err != nil {
		t.Fatalf("Failed to insert samples: %v", err)
	}
	if err := storage.InsertSamples(functionID, []float64{9.0}, now.Add(time.Hour)); err != nil {
		t.Fatalf("Failed to insert late sample: %v", err)
	}

	count, err := storage.CountPendingSamples(functionID)
	if err != nil {
		t.Fatalf("Failed to count samples: %v", err)
	}
	if count != 4 {
		t.Errorf("Expected 4 pending samples, got %d", count)
	}

	drained, err := storage.DrainSamples(functionID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Failed to drain samples: %v", err)
	}
	if len(drained) != 3 {
		t.Errorf("Expected 3 drained samples, got %v", drained)
	}

	drained, err = storage.DrainSamples(functionID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Failed to re-drain samples: %v", err)
	}
	if len(drained) != 0 {
		t.Errorf("Expected empty re-drain, got %v", drained)
	}

	purged, err := storage.DeleteSamplesBefore(now.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("Failed to purge samples: %v", err)
	}
	if purged != 1 {
		t.Errorf("Expected 1 purged sample, got %d", purged)
	}

	// Leases: exclusive while live, reentrant for the owner, stealable
	// after expiry.
	leaseKey := "rescale/" + functionID
	acquired, err := storage.AcquireLease(leaseKey, "owner-a", time.Minute, now)
	if err != nil {
		t.Fatalf("Failed to acquire lease: %v", err)
	}
	if !acquired {
		t.Fatal("Expected fresh lease acquisition")
	}

	acquired, err = storage.AcquireLease(leaseKey, "owner-b", time.Minute, now)
	if err != nil {
		t.Fatalf("Failed lease contention check: %v", err)
	}
	if acquired {
		t.Error("Lease acquired by second owner while live")
	}

	acquired, err = storage.AcquireLease(leaseKey, "owner-a", time.Minute, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("Failed lease renewal: %v", err)
	}
	if !acquired {
		t.Error("Owner could not renew its own lease")
	}

	acquired, err = storage.AcquireLease(leaseKey, "owner-b", time.Minute, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Failed expired lease takeover: %v", err)
	}
	if !acquired {
		t.Error("Expired lease could not be taken over")
	}

	if err := storage.ReleaseLease(leaseKey, "owner-b"); err != nil {
		t.Fatalf("Failed to release lease: %v", err)
	}
	acquired, err = storage.AcquireLease(leaseKey, "owner-a", time.Minute, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Failed post-release acquisition: %v", err)
	}
	if !acquired {
		t.Error("Lease not acquirable after release")
	}

	expired, err := storage.DeleteExpiredLeases(now.Add(4 * time.Minute))
	if err != nil {
		t.Fatalf("Failed to delete expired leases: %v", err)
	}
	if expired != 1 {
		t.Errorf("Expected 1 expired lease, got %d", expired)
	}

	// Deregistration
	if err := storage.DeleteSizing(functionID); err != nil {
		t.Fatalf("Failed to delete sizing: %v", err)
	}
	ids, err = storage.ListFunctionIDs()
	if err != nil {
		t.Fatalf("Failed to list functions: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected empty registry, got %v", ids)
	}
}
