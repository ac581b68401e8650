package policy

import "fmt"

// Default tunables. Prices are USD; the unit price is per GB-second
// (0.0000166667 is about $0.06/GB-hour), the base price is per vCPU-hour.
const (
	DefaultSmoothingFactor        = 0.25
	DefaultForceThresholdSecs     = 1e-4
	DefaultMinCallOverheadSecs    = 0.007
	DefaultCallerWaitOverheadSecs = 0.020
	DefaultProvisionedBasePrice   = 0.015
	DefaultUnitPricePerGBSecond   = 0.0000166667
	DefaultForcedActivity         = 10.0
)

// Floor for active time attributed to a single call, in seconds.
const minActiveSecsPerCall = 0.001

// MB per accounting unit: a provisioned vCPU is priced per 2GB slice,
// serverless and caller memory are priced per GB.
const (
	memMBPerVCPU = 2048.0
	memMBPerGB   = 1024.0
)

// Params are the policy tunables. They are constants of the algorithm but
// are carried as a value so tests and the controller can reparameterize.
type Params struct {
	// Weight of the newest observation in the moving averages.
	SmoothingFactor float64 `yaml:"smoothingFactor" mapstructure:"smoothingFactor"`
	// Durations below this are force-spin-up signals, not real calls.
	ForceThresholdSecs float64 `yaml:"forceThresholdSecs" mapstructure:"forceThresholdSecs"`
	// Fixed per-call processing overhead subtracted from active time.
	MinCallOverheadSecs float64 `yaml:"minCallOverheadSecs" mapstructure:"minCallOverheadSecs"`
	// Fixed extra time the caller spends waiting on a serverless call.
	CallerWaitOverheadSecs float64 `yaml:"callerWaitOverheadSecs" mapstructure:"callerWaitOverheadSecs"`
	// Hourly price of one provisioned vCPU.
	ProvisionedBasePrice float64 `yaml:"provisionedBasePrice" mapstructure:"provisionedBasePrice"`
	// Per-second-per-GB price shared by serverless compute and caller wait.
	UnitPricePerGBSecond float64 `yaml:"unitPricePerGBSecond" mapstructure:"unitPricePerGBSecond"`
	// Raw activity substituted when a cycle carries a force signal. Must be
	// large enough that the moving average crosses the cost threshold.
	ForcedActivity float64 `yaml:"forcedActivity" mapstructure:"forcedActivity"`
}

func DefaultParams() Params {
	return Params{
		SmoothingFactor:        DefaultSmoothingFactor,
		ForceThresholdSecs:     DefaultForceThresholdSecs,
		MinCallOverheadSecs:    DefaultMinCallOverheadSecs,
		CallerWaitOverheadSecs: DefaultCallerWaitOverheadSecs,
		ProvisionedBasePrice:   DefaultProvisionedBasePrice,
		UnitPricePerGBSecond:   DefaultUnitPricePerGBSecond,
		ForcedActivity:         DefaultForcedActivity,
	}
}

func (p Params) Validate() error {
	if p.SmoothingFactor <= 0 || p.SmoothingFactor > 1 {
		return fmt.Errorf("smoothingFactor must be in (0, 1], got %v", p.SmoothingFactor)
	}
	if p.ForceThresholdSecs < 0 {
		return fmt.Errorf("forceThresholdSecs must be non-negative, got %v", p.ForceThresholdSecs)
	}
	if p.MinCallOverheadSecs < 0 || p.CallerWaitOverheadSecs < 0 {
		return fmt.Errorf("call overheads must be non-negative, got min=%v callerWait=%v",
			p.MinCallOverheadSecs, p.CallerWaitOverheadSecs)
	}
	if p.ProvisionedBasePrice <= 0 || p.UnitPricePerGBSecond <= 0 {
		return fmt.Errorf("prices must be positive, got base=%v unit=%v",
			p.ProvisionedBasePrice, p.UnitPricePerGBSecond)
	}
	if p.ForcedActivity <= 1 {
		return fmt.Errorf("forcedActivity must exceed 1, got %v", p.ForcedActivity)
	}
	return nil
}
