package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Policy estimates
	FunctionActivity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flexscale_function_activity",
		Help: "Smoothed activity estimate per function (fraction of interval spent active)",
	}, []string{"function"})

	FunctionWaiting = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flexscale_function_waiting",
		Help: "Smoothed caller-waiting estimate per function",
	}, []string{"function"})

	FunctionCostRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flexscale_function_cost_ratio",
		Help: "Serverless-plus-wait cost divided by provisioned cost, per function",
	}, []string{"function"})

	FunctionTargetScale = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flexscale_function_target_scale",
		Help: "Current scale decision per function (0 serverless, 1 provisioned)",
	}, []string{"function"})

	// Cycle accounting
	RescaleCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flexscale_rescale_cycles_total",
		Help: "Rescale cycles executed, by outcome",
	}, []string{"function", "outcome"})

	SkippedSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flexscale_skipped_samples_total",
		Help: "Malformed samples dropped during aggregation",
	}, []string{"function"})

	ForceSpinUpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flexscale_force_spinups_total",
		Help: "Cycles that carried a force-spin-up signal",
	}, []string{"function"})

	// Sample buffer
	SamplesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flexscale_samples_received_total",
		Help: "Call duration samples accepted over the push API",
	}, []string{"function"})

	SampleBatchSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flexscale_sample_batch_size",
		Help: "Number of samples drained in the last rescale cycle",
	}, []string{"function"})

	SamplesPurgedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flexscale_samples_purged_total",
		Help: "Stale pending samples removed by the maintenance task",
	}, []string{})

	LeasesExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flexscale_leases_expired_total",
		Help: "Expired rescale leases removed by the maintenance task",
	}, []string{})
)
