package ports

import (
	"time"

	"github.com/flexscale/flexscale/pkg/types"
)

// StateRecord is a persisted per-function scaling state row.
type StateRecord struct {
	FunctionID   string
	State        types.ScalingState
	CurrentScale int
	LastRescale  time.Time
}

// Database is the persistence surface behind the controller: the
// deployment registry (sizings), the scaling-state store, the pending
// sample buffer and the rescale leases.
type Database interface {
	Close() error

	// Registry
	UpsertSizing(functionID string, sizing types.FunctionSizing) error
	GetSizing(functionID string) (*types.FunctionSizing, error)
	ListFunctionIDs() ([]string, error)
	DeleteSizing(functionID string) error

	// Scaling state; GetState returns (nil, nil) when no row exists yet.
	GetState(functionID string) (*StateRecord, error)
	UpsertState(record StateRecord) error

	// Sample buffer
	InsertSamples(functionID string, durationsSecs []float64, observedAt time.Time) error
	// DrainSamples atomically removes and returns every sample observed
	// strictly before the cutoff, so a batch is consumed exactly once.
	DrainSamples(functionID string, cutoff time.Time) ([]float64, error)
	CountPendingSamples(functionID string) (int, error)
	DeleteSamplesBefore(cutoff time.Time) (int64, error)

	// Leases
	AcquireLease(key, owner string, ttl time.Duration, now time.Time) (bool, error)
	ReleaseLease(key, owner string) error
	DeleteExpiredLeases(now time.Time) (int64, error)
}
