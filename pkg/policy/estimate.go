package policy

import "github.com/flexscale/flexscale/pkg/types"

// estimate folds one cycle's aggregate into the smoothed state. intervalSecs
// must be positive; the caller validates it.
func estimate(prev types.ScalingState, agg aggregate, intervalSecs float64, p Params) types.ScalingState {
	var rawActivity float64
	if agg.forceSpinUp {
		rawActivity = p.ForcedActivity
	} else {
		rawActivity = agg.activeSecs / intervalSecs
		// A single-threaded activity fraction cannot exceed full
		// utilization; >1 only occurs with parallel execution and is
		// clamped rather than amplified.
		if rawActivity > 1.0 {
			rawActivity = 1.0
		}
	}
	rawWaiting := agg.waitingSecs / intervalSecs

	return types.ScalingState{
		Activity: p.smooth(prev.Activity, rawActivity),
		Waiting:  p.smooth(prev.Waiting, rawWaiting),
	}
}

func (p Params) smooth(prev, raw float64) float64 {
	return (1-p.SmoothingFactor)*prev + p.SmoothingFactor*raw
}
