package policy

import (
	"math"
	"testing"
)

func TestAggregateEmptyBatch(t *testing.T) {
	agg := aggregateSamples(nil, DefaultParams())
	if agg.activeSecs != 0 || agg.waitingSecs != 0 || agg.forceSpinUp || agg.skipped != 0 {
		t.Errorf("Expected zero aggregate for empty batch, got %+v", agg)
	}
}

func TestAggregateSubBatchesMatchWholeBatch(t *testing.T) {
	params := DefaultParams()
	samples := []float64{1.0, 0.5, 0.003, 2.7, 0.00005, 1.0, -1.0, 0.25, 60.0, 0.0001, 0.008}

	whole := aggregateSamples(samples, params)

	splits := [][]int{
		{1, 10},
		{5, 6},
		{2, 2, 2, 2, 2, 1},
		{11},
		{3, 8},
	}
	for _, split := range splits {
		merged := aggregate{}
		lo := 0
		for _, n := range split {
			merged = merged.merge(aggregateSamples(samples[lo:lo+n], params))
			lo += n
		}
		if lo != len(samples) {
			t.Fatalf("Bad split %v for %d samples", split, len(samples))
		}
		if math.Abs(merged.activeSecs-whole.activeSecs) > 1e-12 {
			t.Errorf("Split %v: active %v != %v", split, merged.activeSecs, whole.activeSecs)
		}
		if math.Abs(merged.waitingSecs-whole.waitingSecs) > 1e-12 {
			t.Errorf("Split %v: waiting %v != %v", split, merged.waitingSecs, whole.waitingSecs)
		}
		if merged.forceSpinUp != whole.forceSpinUp {
			t.Errorf("Split %v: forceSpinUp %v != %v", split, merged.forceSpinUp, whole.forceSpinUp)
		}
		if merged.skipped != whole.skipped {
			t.Errorf("Split %v: skipped %d != %d", split, merged.skipped, whole.skipped)
		}
	}
}

func TestAggregateSkipsNegativeDurations(t *testing.T) {
	params := DefaultParams()
	agg := aggregateSamples([]float64{1.0, -0.5, -100, 1.0}, params)
	if agg.skipped != 2 {
		t.Errorf("Expected 2 skipped samples, got %d", agg.skipped)
	}
	want := 2 * (1.0 - params.MinCallOverheadSecs)
	if math.Abs(agg.activeSecs-want) > 1e-12 {
		t.Errorf("Expected active %v, got %v", want, agg.activeSecs)
	}
	// Skipped samples must not contribute caller wait either.
	if math.Abs(agg.waitingSecs-2*params.CallerWaitOverheadSecs) > 1e-12 {
		t.Errorf("Expected waiting %v, got %v", 2*params.CallerWaitOverheadSecs, agg.waitingSecs)
	}
}

func TestAggregateForceSignalSticky(t *testing.T) {
	params := DefaultParams()

	// One near-zero sample forces the whole cycle regardless of the rest.
	samples := []float64{1.0, 1.0, 1.0}
	if aggregateSamples(samples, params).forceSpinUp {
		t.Fatal("Force flag set without a force sample")
	}
	samples = append(samples, params.ForceThresholdSecs/2)
	if !aggregateSamples(samples, params).forceSpinUp {
		t.Error("Force flag not set by a sub-threshold sample")
	}

	// Exactly at the threshold is a real call, not a signal.
	if aggregateSamples([]float64{params.ForceThresholdSecs}, params).forceSpinUp {
		t.Error("Threshold-valued sample should not force spin-up")
	}
}

func TestAggregateActiveTimeFloor(t *testing.T) {
	params := DefaultParams()
	// Shorter than the overhead, but above the force threshold.
	agg := aggregateSamples([]float64{0.002}, params)
	if agg.forceSpinUp {
		t.Fatal("Sample above force threshold must not force spin-up")
	}
	if agg.activeSecs != minActiveSecsPerCall {
		t.Errorf("Expected floored active time %v, got %v", minActiveSecsPerCall, agg.activeSecs)
	}
}
