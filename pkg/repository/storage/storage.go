package storage

import (
	"fmt"
	"time"

	"github.com/flexscale/flexscale/pkg/ports"
	"github.com/flexscale/flexscale/pkg/types"
)

const leaseKeyPrefix = "rescale/"

var Stg *Storage

type Storage struct {
	DB ports.Database
}

func NewStorageRepo(db ports.Database) (*Storage, error) {
	return &Storage{DB: db}, nil
}

// RegisterFunction upserts a function's resource sizing in the registry.
func (s *Storage) RegisterFunction(functionID string, sizing types.FunctionSizing) error {
	if err := sizing.Validate(); err != nil {
		return fmt.Errorf("invalid sizing for %s: %w", functionID, err)
	}
	if err := s.DB.UpsertSizing(functionID, sizing); err != nil {
		return fmt.Errorf("failed to register function %s: %w", functionID, err)
	}
	return nil
}

func (s *Storage) GetSizing(functionID string) (*types.FunctionSizing, error) {
	sizing, err := s.DB.GetSizing(functionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read sizing for %s: %w", functionID, err)
	}
	return sizing, nil
}

func (s *Storage) ListFunctionIDs() ([]string, error) {
	ids, err := s.DB.ListFunctionIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list functions: %w", err)
	}
	return ids, nil
}

// ReadState returns the persisted scaling state, or nil on the first cycle.
func (s *Storage) ReadState(functionID string) (*ports.StateRecord, error) {
	record, err := s.DB.GetState(functionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read state for %s: %w", functionID, err)
	}
	return record, nil
}

func (s *Storage) WriteState(record ports.StateRecord) error {
	if err := s.DB.UpsertState(record); err != nil {
		return fmt.Errorf("failed to write state for %s: %w", record.FunctionID, err)
	}
	return nil
}

func (s *Storage) PushSamples(functionID string, durationsSecs []float64, observedAt time.Time) error {
	if err := s.DB.InsertSamples(functionID, durationsSecs, observedAt); err != nil {
		return fmt.Errorf("failed to push samples for %s: %w", functionID, err)
	}
	return nil
}

// DrainSamples consumes the batch accumulated before the cycle boundary.
func (s *Storage) DrainSamples(functionID string, cutoff time.Time) ([]float64, error) {
	samples, err := s.DB.DrainSamples(functionID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to drain samples for %s: %w", functionID, err)
	}
	return samples, nil
}

// AcquireRescaleLease serializes rescale cycles per function identity.
func (s *Storage) AcquireRescaleLease(functionID, owner string, ttl time.Duration) (bool, error) {
	acquired, err := s.DB.AcquireLease(leaseKeyPrefix+functionID, owner, ttl, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to acquire rescale lease for %s: %w", functionID, err)
	}
	return acquired, nil
}

func (s *Storage) ReleaseRescaleLease(functionID, owner string) error {
	if err := s.DB.ReleaseLease(leaseKeyPrefix+functionID, owner); err != nil {
		return fmt.Errorf("failed to release rescale lease for %s: %w", functionID, err)
	}
	return nil
}

// GetFunctionStatus assembles the API view of one function.
func (s *Storage) GetFunctionStatus(functionID string) (*types.FunctionStatus, error) {
	sizing, err := s.GetSizing(functionID)
	if err != nil {
		return nil, err
	}
	if sizing == nil {
		return nil, nil
	}

	status := &types.FunctionStatus{
		FunctionID: functionID,
		Sizing:     *sizing,
	}

	record, err := s.ReadState(functionID)
	if err != nil {
		return nil, err
	}
	if record != nil {
		status.State = record.State
		status.CurrentScale = record.CurrentScale
		status.LastRescale = record.LastRescale
	}

	pending, err := s.DB.CountPendingSamples(functionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending samples for %s: %w", functionID, err)
	}
	status.PendingSamples = pending

	return status, nil
}
