package types

import (
	"fmt"
	"time"
)

// FunctionSizing is the resource-sizing descriptor registered for a logical
// function. All values are memory allocations in MB and must be positive.
type FunctionSizing struct {
	// Memory of the standing (always-on) instance.
	ProvisionedMemMB int `json:"provisionedMemMB" yaml:"provisionedMemMB"`
	// Memory of the per-invocation serverless executor.
	FunctionMemMB int `json:"functionMemMB" yaml:"functionMemMB"`
	// Memory held by the caller while waiting on a serverless invocation.
	CallerMemMB int `json:"callerMemMB" yaml:"callerMemMB"`
}

func (s FunctionSizing) Validate() error {
	if s.ProvisionedMemMB <= 0 || s.FunctionMemMB <= 0 || s.CallerMemMB <= 0 {
		return fmt.Errorf("sizing values must be positive, got provisioned=%dMB function=%dMB caller=%dMB",
			s.ProvisionedMemMB, s.FunctionMemMB, s.CallerMemMB)
	}
	return nil
}

// ScalingState is the pair of exponentially-smoothed estimates carried
// across rescale cycles. The zero value is the first-cycle state.
type ScalingState struct {
	Activity float64 `json:"activity" yaml:"activity"`
	Waiting  float64 `json:"waiting" yaml:"waiting"`
}

// Decision is the output of one rescale cycle.
type Decision struct {
	// 1 means provision a standing instance, 0 means serverless-only.
	TargetScale int `json:"targetScale"`
	// Updated state to persist and replay on the next cycle.
	State ScalingState `json:"state"`
	// Blended serverless cost divided by provisioned cost.
	CostRatio float64 `json:"costRatio"`
	// True when the batch carried a force-spin-up signal.
	ForceSpinUp bool `json:"forceSpinUp"`
	// Number of malformed samples dropped from the batch.
	SkippedSamples int `json:"skippedSamples"`
}

// FunctionStatus is the API view of a registered function.
type FunctionStatus struct {
	FunctionID     string         `json:"functionID"`
	Sizing         FunctionSizing `json:"sizing"`
	State          ScalingState   `json:"state"`
	CurrentScale   int            `json:"currentScale"`
	LastRescale    time.Time      `json:"lastRescale"`
	PendingSamples int            `json:"pendingSamples"`
}

// PushSamplesRequest is the body of POST /functions/:functionID/samples.
// Producers may flush accumulated durations in any number of sub-batches.
type PushSamplesRequest struct {
	DurationsSecs []float64 `json:"durationsSecs" binding:"required"`
}
