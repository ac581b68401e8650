package task

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/flexscale/flexscale/pkg/adapters/database/sqlite"
	"github.com/flexscale/flexscale/pkg/config"
	"github.com/flexscale/flexscale/pkg/policy"
	"github.com/flexscale/flexscale/pkg/repository/storage"
	"github.com/flexscale/flexscale/pkg/types"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "flexscale_task.db")
	db, err := sqlite.NewSQLiteAdapter(dbPath)
	if err != nil {
		t.Fatalf("Failed to create sqlite storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stg, err := storage.NewStorageRepo(db)
	if err != nil {
		t.Fatalf("Failed to create storage repo: %v", err)
	}
	return stg
}

func newTestRescaleTask(t *testing.T, stg *storage.Storage, schedule string) *RescaleTask {
	t.Helper()

	rescaler, err := policy.NewCostRescaler(policy.DefaultParams())
	if err != nil {
		t.Fatalf("Failed to construct policy: %v", err)
	}

	rt := NewRescaleTask(
		context.Background(),
		stg,
		rescaler,
		&RescaleTaskConfig{
			Name:     "rescale",
			Enabled:  true,
			Schedule: schedule,
			LeaseTTL: 55 * time.Second,
		},
		&config.TaskConfig{Enabled: true, Schedule: schedule},
	)
	if rt == nil {
		t.Fatal("Failed to construct rescale task")
	}
	return rt
}

func TestRescaleTaskEndToEnd(t *testing.T) {
	ctx := context.Background()
	stg := newTestStorage(t)

	functionID := "messaging:echo"
	sizing := types.FunctionSizing{ProvisionedMemMB: 2048, FunctionMemMB: 1024, CallerMemMB: 1024}
	if err := stg.RegisterFunction(functionID, sizing); err != nil {
		t.Fatalf("Failed to register function: %v", err)
	}

	// 60 one-second calls over a 60s window.
	durations := make([]float64, 60)
	for i := range durations {
		durations[i] = 1.0
	}
	if err := stg.PushSamples(functionID, durations, time.Now().UTC().Add(-time.Second)); err != nil {
		t.Fatalf("Failed to push samples: %v", err)
	}

	rt := newTestRescaleTask(t, stg, "60s")
	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Rescale sweep failed: %v", err)
	}

	record, err := stg.ReadState(functionID)
	if err != nil {
		t.Fatalf("Failed to read state: %v", err)
	}
	if record == nil {
		t.Fatal("Expected state to be persisted after the first cycle")
	}

	// Raw activity is 60*(1.0-0.007)/60 = 0.993, smoothed by 0.25 from zero.
	wantActivity := 0.25 * 0.993
	if math.Abs(record.State.Activity-wantActivity) > 1e-12 {
		t.Errorf("Expected activity %v, got %v", wantActivity, record.State.Activity)
	}
	wantWaiting := 0.25 * 0.020
	if math.Abs(record.State.Waiting-wantWaiting) > 1e-12 {
		t.Errorf("Expected waiting %v, got %v", wantWaiting, record.State.Waiting)
	}
	// At this volume serverless is already more expensive than a standing
	// instance: 0.06000012*(0.24825+0.005) = 0.0151950 vs 0.015.
	if record.CurrentScale != 1 {
		t.Errorf("Expected scale 1, got %d", record.CurrentScale)
	}

	// The batch must be consumed exactly once.
	pending, err := stg.DB.CountPendingSamples(functionID)
	if err != nil {
		t.Fatalf("Failed to count pending samples: %v", err)
	}
	if pending != 0 {
		t.Errorf("Expected sample buffer to be drained, %d samples left", pending)
	}
}

func TestRescaleTaskDecaysWithoutSamples(t *testing.T) {
	ctx := context.Background()
	stg := newTestStorage(t)

	functionID := "messaging:quiet"
	sizing := types.FunctionSizing{ProvisionedMemMB: 2048, FunctionMemMB: 1024, CallerMemMB: 1024}
	if err := stg.RegisterFunction(functionID, sizing); err != nil {
		t.Fatalf("Failed to register function: %v", err)
	}

	durations := make([]float64, 60)
	for i := range durations {
		durations[i] = 1.0
	}
	if err := stg.PushSamples(functionID, durations, time.Now().UTC().Add(-time.Second)); err != nil {
		t.Fatalf("Failed to push samples: %v", err)
	}

	rt := newTestRescaleTask(t, stg, "60s")
	if err := rt.Run(ctx); err != nil {
		t.Fatalf("First sweep failed: %v", err)
	}
	first, err := stg.ReadState(functionID)
	if err != nil || first == nil {
		t.Fatalf("Failed to read state after first sweep: record=%v err=%v", first, err)
	}

	// LastRescale must be strictly in the past for the next cycle.
	time.Sleep(10 * time.Millisecond)

	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Second sweep failed: %v", err)
	}
	second, err := stg.ReadState(functionID)
	if err != nil || second == nil {
		t.Fatalf("Failed to read state after second sweep: record=%v err=%v", second, err)
	}

	// An empty batch contributes zero raw activity, so the estimate decays
	// by exactly the complement of the smoothing factor.
	wantActivity := 0.75 * first.State.Activity
	if math.Abs(second.State.Activity-wantActivity) > 1e-12 {
		t.Errorf("Expected activity to decay to %v, got %v", wantActivity, second.State.Activity)
	}
	if !second.LastRescale.After(first.LastRescale) {
		t.Errorf("Expected LastRescale to advance, got %v then %v", first.LastRescale, second.LastRescale)
	}
}

func TestRescaleTaskSkipsWhenLeaseHeld(t *testing.T) {
	ctx := context.Background()
	stg := newTestStorage(t)

	functionID := "messaging:contested"
	sizing := types.FunctionSizing{ProvisionedMemMB: 2048, FunctionMemMB: 1024, CallerMemMB: 1024}
	if err := stg.RegisterFunction(functionID, sizing); err != nil {
		t.Fatalf("Failed to register function: %v", err)
	}

	acquired, err := stg.AcquireRescaleLease(functionID, "another-instance", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("Failed to acquire lease from another owner: acquired=%v err=%v", acquired, err)
	}

	rt := newTestRescaleTask(t, stg, "60s")
	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Sweep should skip leased functions, not fail: %v", err)
	}

	record, err := stg.ReadState(functionID)
	if err != nil {
		t.Fatalf("Failed to read state: %v", err)
	}
	if record != nil {
		t.Errorf("Expected no state while lease is held elsewhere, got %+v", record)
	}
}

func TestRescaleTaskDryRunDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	stg := newTestStorage(t)

	functionID := "messaging:dryrun"
	sizing := types.FunctionSizing{ProvisionedMemMB: 2048, FunctionMemMB: 1024, CallerMemMB: 1024}
	if err := stg.RegisterFunction(functionID, sizing); err != nil {
		t.Fatalf("Failed to register function: %v", err)
	}

	rescaler, err := policy.NewCostRescaler(policy.DefaultParams())
	if err != nil {
		t.Fatalf("Failed to construct policy: %v", err)
	}
	rt := NewRescaleTask(
		ctx,
		stg,
		rescaler,
		&RescaleTaskConfig{Name: "rescale", Enabled: true, Schedule: "60s", LeaseTTL: 55 * time.Second},
		&config.TaskConfig{
			Enabled:  true,
			Schedule: "60s",
			Metadata: map[string]interface{}{"dryRun": true},
		},
	)
	if rt == nil {
		t.Fatal("Failed to construct rescale task")
	}

	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Dry run sweep failed: %v", err)
	}

	record, err := stg.ReadState(functionID)
	if err != nil {
		t.Fatalf("Failed to read state: %v", err)
	}
	if record != nil {
		t.Errorf("Expected dry run to leave no state, got %+v", record)
	}
}
