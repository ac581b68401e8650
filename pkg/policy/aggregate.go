package policy

// aggregate is the reduction of one cycle's raw sample batch.
type aggregate struct {
	activeSecs  float64
	waitingSecs float64
	forceSpinUp bool
	skipped     int
}

// aggregateSamples reduces raw call durations into interval totals. The
// reduction is a plain sum, so producers may deliver the batch in any
// order and in any number of sub-batches.
func aggregateSamples(samples []float64, p Params) aggregate {
	var agg aggregate
	for _, d := range samples {
		if d < 0 {
			// Malformed sample, drop it rather than failing the cycle.
			agg.skipped++
			continue
		}
		if d < p.ForceThresholdSecs {
			// Synthetic near-zero duration: out-of-band spin-up signal.
			agg.forceSpinUp = true
		} else {
			active := d - p.MinCallOverheadSecs
			if active < minActiveSecsPerCall {
				active = minActiveSecsPerCall
			}
			agg.activeSecs += active
		}
		// Every invocation costs the caller a fixed wait in serverless mode.
		agg.waitingSecs += p.CallerWaitOverheadSecs
	}
	return agg
}

// merge combines two partial reductions. Used by tests to verify that
// sub-batch aggregation matches whole-batch aggregation.
func (a aggregate) merge(b aggregate) aggregate {
	return aggregate{
		activeSecs:  a.activeSecs + b.activeSecs,
		waitingSecs: a.waitingSecs + b.waitingSecs,
		forceSpinUp: a.forceSpinUp || b.forceSpinUp,
		skipped:     a.skipped + b.skipped,
	}
}
