package policy

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/flexscale/flexscale/pkg/types"
)

var testSizing = types.FunctionSizing{
	ProvisionedMemMB: 2048,
	FunctionMemMB:    1024,
	CallerMemMB:      1024,
}

func mustNewRescaler(t *testing.T, params Params) *CostRescaler {
	t.Helper()
	r, err := NewCostRescaler(params)
	if err != nil {
		t.Fatalf("Failed to create rescaler: %v", err)
	}
	return r
}

func TestRescaleRejectsNonPositiveInterval(t *testing.T) {
	r := mustNewRescaler(t, DefaultParams())
	now := time.Now()

	for _, curr := range []time.Time{now, now.Add(-time.Second)} {
		_, err := r.Rescale(context.Background(), Request{
			Sizing:   testSizing,
			PrevTime: now,
			CurrTime: curr,
		})
		if !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Expected ErrInvalidInterval for curr=%v, got %v", curr, err)
		}
	}
}

func TestRescaleRejectsInvalidSizing(t *testing.T) {
	r := mustNewRescaler(t, DefaultParams())
	now := time.Now()

	bad := []types.FunctionSizing{
		{},
		{ProvisionedMemMB: 2048, FunctionMemMB: 1024},
		{ProvisionedMemMB: -2048, FunctionMemMB: 1024, CallerMemMB: 1024},
	}
	for _, sizing := range bad {
		_, err := r.Rescale(context.Background(), Request{
			Sizing:   sizing,
			PrevTime: now.Add(-time.Minute),
			CurrTime: now,
		})
		if !errors.Is(err, ErrInvalidSizing) {
			t.Errorf("Expected ErrInvalidSizing for %+v, got %v", sizing, err)
		}
	}
}

func TestRescaleFirstCycleDefaultsToZeroState(t *testing.T) {
	r := mustNewRescaler(t, DefaultParams())
	now := time.Now()

	decision, err := r.Rescale(context.Background(), Request{
		Sizing:   testSizing,
		PrevTime: now.Add(-time.Minute),
		CurrTime: now,
	})
	if err != nil {
		t.Fatalf("Rescale failed: %v", err)
	}
	if decision.State.Activity != 0 || decision.State.Waiting != 0 {
		t.Errorf("Expected zero state on first cycle, got %+v", decision.State)
	}
	if decision.TargetScale != 0 {
		t.Errorf("Expected scale 0 with no load, got %d", decision.TargetScale)
	}
}

func TestSmoothingConvergence(t *testing.T) {
	params := DefaultParams()
	const raw = 0.8
	agg := aggregate{activeSecs: raw, waitingSecs: 0}

	state := types.ScalingState{}
	for n := 1; n <= 40; n++ {
		state = estimate(state, agg, 1.0, params)
		// |a_n - r| = (1-alpha)^n * |a_0 - r|
		wantErr := math.Pow(1-params.SmoothingFactor, float64(n)) * raw
		gotErr := math.Abs(state.Activity - raw)
		if math.Abs(gotErr-wantErr) > 1e-12 {
			t.Fatalf("Cycle %d: error %v, want %v", n, gotErr, wantErr)
		}
	}
	if math.Abs(state.Activity-raw) > 1e-4 {
		t.Errorf("Activity did not converge: %v vs %v", state.Activity, raw)
	}
}

func TestForceThresholdOverridesVolume(t *testing.T) {
	params := DefaultParams()
	r := mustNewRescaler(t, params)
	now := time.Now()

	// A heavy batch plus one force signal: the force wins the cycle.
	samples := make([]float64, 0, 601)
	for i := 0; i < 600; i++ {
		samples = append(samples, 1.0)
	}
	samples = append(samples, 1e-5)

	decision, err := r.Rescale(context.Background(), Request{
		Sizing:      testSizing,
		PrevTime:    now.Add(-time.Minute),
		CurrTime:    now,
		SamplesSecs: samples,
	})
	if err != nil {
		t.Fatalf("Rescale failed: %v", err)
	}
	if !decision.ForceSpinUp {
		t.Fatal("Expected force spin-up")
	}
	want := params.SmoothingFactor * params.ForcedActivity
	if math.Abs(decision.State.Activity-want) > 1e-9 {
		t.Errorf("Expected forced activity %v, got %v", want, decision.State.Activity)
	}
	if decision.TargetScale != 1 {
		t.Errorf("Expected scale 1 under force, got %d", decision.TargetScale)
	}
}

func TestScaleMonotonicInActiveSeconds(t *testing.T) {
	r := mustNewRescaler(t, DefaultParams())
	now := time.Now()
	prev := types.ScalingState{Activity: 0.1, Waiting: 0.01}

	lastScale := 0
	lastRatio := 0.0
	for n := 0; n <= 300; n += 10 {
		samples := make([]float64, n)
		for i := range samples {
			samples[i] = 1.0
		}
		decision, err := r.Rescale(context.Background(), Request{
			Sizing:      testSizing,
			PrevState:   &prev,
			PrevTime:    now.Add(-time.Minute),
			CurrTime:    now,
			SamplesSecs: samples,
		})
		if err != nil {
			t.Fatalf("Rescale failed at n=%d: %v", n, err)
		}
		if decision.TargetScale < lastScale {
			t.Errorf("Scale decreased from %d to %d at n=%d", lastScale, decision.TargetScale, n)
		}
		if decision.CostRatio < lastRatio {
			t.Errorf("Ratio decreased from %v to %v at n=%d", lastRatio, decision.CostRatio, n)
		}
		lastScale = decision.TargetScale
		lastRatio = decision.CostRatio
	}
}

func TestDecisionBoundaryAtRatioOne(t *testing.T) {
	// Power-of-two prices so the ratio is exact in float64.
	params := DefaultParams()
	params.UnitPricePerGBSecond = 1.0 / 4096 // *3600 = 0.87890625 exactly
	params.ProvisionedBasePrice = 0.87890625

	cases := []struct {
		activity  float64
		wantRatio float64
		wantScale int
	}{
		{activity: 1.0, wantRatio: 1.0, wantScale: 1},
		{activity: 1.0 - 1.0/1024, wantRatio: 1.0 - 1.0/1024, wantScale: 0},
	}
	for _, tc := range cases {
		state := types.ScalingState{Activity: tc.activity}
		ratio, scale, guarded := compareCosts(state, testSizing, params)
		if guarded {
			t.Fatalf("Unexpected provisioned-cost guard for activity %v", tc.activity)
		}
		if ratio != tc.wantRatio {
			t.Errorf("Activity %v: ratio %v, want %v", tc.activity, ratio, tc.wantRatio)
		}
		if scale != tc.wantScale {
			t.Errorf("Activity %v: scale %d, want %d", tc.activity, scale, tc.wantScale)
		}
	}
}

func TestCostRatioStaysFiniteWithZeroSizing(t *testing.T) {
	// The comparator guards even though Rescale validates sizing upstream.
	ratio, scale, guarded := compareCosts(
		types.ScalingState{Activity: 0.5, Waiting: 0.1},
		types.FunctionSizing{ProvisionedMemMB: 0, FunctionMemMB: 1024, CallerMemMB: 1024},
		DefaultParams(),
	)
	if !guarded {
		t.Error("Expected provisioned-cost guard to trigger")
	}
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		t.Errorf("Ratio must stay finite, got %v", ratio)
	}
	if scale != 1 {
		t.Errorf("Expected scale 1 when provisioned capacity is free-tier zero, got %d", scale)
	}
}

// Six 60-second cycles against the default tunables: idle, two cycles at
// load 0.5 (30 one-second calls), two at load 10 (600 calls, raw rate
// clamped to 1.0), then back to 0.5. The standing instance wins as soon as
// the smoothed blended cost crosses its hourly price.
func TestRescaleScenario(t *testing.T) {
	r := mustNewRescaler(t, DefaultParams())
	start := time.Now()

	cycles := []struct {
		load       float64
		activityLo float64
		activityHi float64
		wantScale  int
	}{
		{load: 0, activityLo: -0.001, activityHi: 0.001, wantScale: 0},
		{load: 0.5, activityLo: 0.11, activityHi: 0.14, wantScale: 0},
		{load: 0.5, activityLo: 0.20, activityHi: 0.23, wantScale: 0},
		{load: 10.0, activityLo: 0.40, activityHi: 0.43, wantScale: 1},
		{load: 10.0, activityLo: 0.55, activityHi: 0.57, wantScale: 1},
		{load: 0.5, activityLo: 0.53, activityHi: 0.55, wantScale: 1},
	}

	var state *types.ScalingState
	prevTime := start
	for i, cycle := range cycles {
		currTime := prevTime.Add(60 * time.Second)
		numSamples := int(math.Round(cycle.load * 60))
		samples := make([]float64, numSamples)
		for j := range samples {
			samples[j] = 1.0
		}

		decision, err := r.Rescale(context.Background(), Request{
			Sizing:      testSizing,
			PrevState:   state,
			PrevTime:    prevTime,
			CurrTime:    currTime,
			SamplesSecs: samples,
		})
		if err != nil {
			t.Fatalf("Cycle %d failed: %v", i, err)
		}
		if decision.State.Activity <= cycle.activityLo || decision.State.Activity >= cycle.activityHi {
			t.Errorf("Cycle %d: activity %v outside (%v, %v)",
				i, decision.State.Activity, cycle.activityLo, cycle.activityHi)
		}
		if decision.TargetScale != cycle.wantScale {
			t.Errorf("Cycle %d: scale %d, want %d (ratio %v)",
				i, decision.TargetScale, cycle.wantScale, decision.CostRatio)
		}

		next := decision.State
		state = &next
		prevTime = currTime
	}
}
