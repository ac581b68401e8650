package policy

import (
	"math"

	"github.com/flexscale/flexscale/pkg/types"
)

// Floor applied when the provisioned cost would be zero or non-finite, so
// the ratio stays finite instead of propagating NaN/Inf.
const minProvisionedCostHourly = 1e-9

// compareCosts converts the smoothed estimates into an hourly break-even
// ratio between serverless-mode cost and the flat cost of a standing
// instance. guarded reports whether the provisioned-cost floor kicked in.
func compareCosts(state types.ScalingState, sizing types.FunctionSizing, p Params) (ratio float64, targetScale int, guarded bool) {
	vcpu := float64(sizing.ProvisionedMemMB) / memMBPerVCPU
	provisionedCost := p.ProvisionedBasePrice * vcpu
	if !(provisionedCost > 0) || math.IsInf(provisionedCost, 0) {
		provisionedCost = minProvisionedCostHourly
		guarded = true
	}

	serverlessCost := p.UnitPricePerGBSecond * 3600.0 * (float64(sizing.FunctionMemMB) / memMBPerGB) * state.Activity
	waitCost := p.UnitPricePerGBSecond * 3600.0 * (float64(sizing.CallerMemMB) / memMBPerGB) * state.Waiting

	ratio = (serverlessCost + waitCost) / provisionedCost
	if ratio >= 1.0 {
		targetScale = 1
	}
	return ratio, targetScale, guarded
}
