// Package policy implements the hybrid-execution scaling decision: given
// the call activity observed since the last cycle, is it cheaper to keep
// handling calls on per-invocation serverless executors or to provision a
// standing instance?
//
// The computation is pure. All state lives in the request and the decision;
// persistence, sample collection and cycle serialization belong to the
// surrounding controller.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flexscale/flexscale/pkg/logging"
	"github.com/flexscale/flexscale/pkg/types"
)

var (
	// ErrInvalidInterval means the caller supplied a non-positive rescale
	// interval, which is a contract violation.
	ErrInvalidInterval = errors.New("rescale interval must be positive")
	// ErrInvalidSizing means the function's resource sizing is missing or
	// malformed; the policy cannot price anything without it.
	ErrInvalidSizing = errors.New("invalid function sizing")
)

// Request is one rescale cycle's input.
type Request struct {
	Sizing types.FunctionSizing
	// PrevState is nil on the first cycle for a function.
	PrevState *types.ScalingState
	PrevTime  time.Time
	CurrTime  time.Time
	// Raw call durations observed since PrevTime, seconds, any order.
	SamplesSecs []float64
}

// Rescaler decides the execution mode for a function once per cycle.
// Implementations must be pure so the controller can retry or replay
// cycles under the external store's read-modify-write contract.
type Rescaler interface {
	Rescale(ctx context.Context, req Request) (types.Decision, error)
}

// CostRescaler is the cost-comparison policy: EMA-smoothed activity and
// caller-wait estimates priced against a standing instance.
type CostRescaler struct {
	params Params
}

func NewCostRescaler(params Params) (*CostRescaler, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy params: %w", err)
	}
	return &CostRescaler{params: params}, nil
}

func (r *CostRescaler) Params() Params {
	return r.params
}

func (r *CostRescaler) Rescale(ctx context.Context, req Request) (types.Decision, error) {
	if err := req.Sizing.Validate(); err != nil {
		return types.Decision{}, fmt.Errorf("%w: %v", ErrInvalidSizing, err)
	}
	intervalSecs := req.CurrTime.Sub(req.PrevTime).Seconds()
	if intervalSecs <= 0 {
		return types.Decision{}, fmt.Errorf("%w: prev=%s curr=%s",
			ErrInvalidInterval, req.PrevTime.Format(time.RFC3339), req.CurrTime.Format(time.RFC3339))
	}

	prev := types.ScalingState{}
	if req.PrevState != nil {
		prev = *req.PrevState
	}

	agg := aggregateSamples(req.SamplesSecs, r.params)
	if agg.skipped > 0 {
		logging.Warnf(ctx, "Dropped %d malformed samples from batch of %d", agg.skipped, len(req.SamplesSecs))
	}

	state := estimate(prev, agg, intervalSecs, r.params)

	ratio, targetScale, guarded := compareCosts(state, req.Sizing, r.params)
	if guarded {
		logging.Warnf(ctx, "Provisioned cost was non-positive for sizing %+v, floored to keep ratio finite", req.Sizing)
	}

	return types.Decision{
		TargetScale:    targetScale,
		State:          state,
		CostRatio:      ratio,
		ForceSpinUp:    agg.forceSpinUp,
		SkippedSamples: agg.skipped,
	}, nil
}
