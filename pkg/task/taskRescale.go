package task

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/flexscale/flexscale/pkg/config"
	"github.com/flexscale/flexscale/pkg/contextutils"
	"github.com/flexscale/flexscale/pkg/logging"
	"github.com/flexscale/flexscale/pkg/metrics"
	"github.com/flexscale/flexscale/pkg/policy"
	"github.com/flexscale/flexscale/pkg/ports"
	"github.com/flexscale/flexscale/pkg/repository/storage"
	"github.com/flexscale/flexscale/pkg/task/utils"
	"github.com/flexscale/flexscale/pkg/telemetry"
	"github.com/flexscale/flexscale/pkg/types"
)

type RescaleMetadata struct {
	// DryRun computes and reports decisions without persisting them.
	DryRun bool `yaml:"dryRun" json:"dryRun" mapstructure:"dryRun"`
}

type RescaleTaskConfig struct {
	Name     string
	Enabled  bool
	Schedule string
	LeaseTTL time.Duration
	Metadata RescaleMetadata
}

type RescaleTask struct {
	storage  *storage.Storage
	rescaler policy.Rescaler
	config   *RescaleTaskConfig
	owner    string
	interval time.Duration
}

func NewRescaleTask(ctx context.Context, storage *storage.Storage, rescaler policy.Rescaler, config *RescaleTaskConfig, taskConfig *config.TaskConfig) *RescaleTask {
	var rescaleMetadata RescaleMetadata
	if err := taskConfig.ConvertMetadataToStruct(&rescaleMetadata); err != nil {
		logging.Errorf(ctx, "Error converting metadata to struct: %v", err)
		return nil
	}

	interval, err := time.ParseDuration(config.Schedule)
	if err != nil {
		logging.Errorf(ctx, "Invalid schedule %q for task %s: %v", config.Schedule, config.Name, err)
		return nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "flexscale"
	}

	config.Metadata = rescaleMetadata
	return &RescaleTask{
		storage:  storage,
		rescaler: rescaler,
		config:   config,
		owner:    fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		interval: interval,
	}
}

func (r *RescaleTask) GetCoreTask() any {
	return r
}

func (r *RescaleTask) GetName() string {
	return r.config.Name
}

func (r *RescaleTask) GetSchedule() string {
	return r.config.Schedule
}

func (r *RescaleTask) IsEnabled() bool {
	return r.config.Enabled
}

func (r *RescaleTask) Run(ctx context.Context) error {
	ctx = contextutils.WithTask(ctx, r.config.Name)
	defer utils.TimeIt(ctx, r.config.Name)()

	functionIDs, err := r.storage.ListFunctionIDs()
	if err != nil {
		logging.Errorf(ctx, "Error listing registered functions: %v", err)
		return err
	}

	if len(functionIDs) == 0 {
		logging.Info(ctx, "No functions registered, nothing to rescale")
		return nil
	}

	logging.Infof(ctx, "Running rescale sweep over %d functions", len(functionIDs))

	failures := 0
	for _, functionID := range functionIDs {
		if err := r.rescaleFunction(ctx, functionID); err != nil {
			logging.Errorf(ctx, "Rescale failed for function %s: %v", functionID, err)
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("rescale sweep finished with %d/%d failures", failures, len(functionIDs))
	}
	return nil
}

func (r *RescaleTask) rescaleFunction(ctx context.Context, functionID string) error {
	ctx = contextutils.WithFunction(ctx, functionID)
	ctx, span := telemetry.StartSpan(ctx, "flexscale/tasks/rescale", "rescale.function")
	defer span.End()

	acquired, err := r.storage.AcquireRescaleLease(functionID, r.owner, r.config.LeaseTTL)
	if err != nil {
		metrics.RescaleCyclesTotal.WithLabelValues(functionID, "error").Inc()
		return err
	}
	if !acquired {
		logging.Infof(ctx, "Rescale lease for %s held elsewhere, skipping", functionID)
		metrics.RescaleCyclesTotal.WithLabelValues(functionID, "lease_held").Inc()
		return nil
	}
	defer func() {
		if err := r.storage.ReleaseRescaleLease(functionID, r.owner); err != nil {
			logging.Errorf(ctx, "Failed to release rescale lease for %s: %v", functionID, err)
		}
	}()

	sizing, err := r.storage.GetSizing(functionID)
	if err != nil {
		metrics.RescaleCyclesTotal.WithLabelValues(functionID, "error").Inc()
		return err
	}
	if sizing == nil {
		metrics.RescaleCyclesTotal.WithLabelValues(functionID, "error").Inc()
		return fmt.Errorf("function %s has no registered sizing", functionID)
	}

	record, err := r.storage.ReadState(functionID)
	if err != nil {
		metrics.RescaleCyclesTotal.WithLabelValues(functionID, "error").Inc()
		return err
	}

	now := time.Now().UTC()

	request := policy.Request{
		Sizing:   *sizing,
		CurrTime: now,
	}
	if record != nil {
		request.PrevState = &record.State
		request.PrevTime = record.LastRescale
	} else {
		// First cycle for this function, assume one full interval elapsed.
		request.PrevTime = now.Add(-r.interval)
	}

	if record != nil && !record.LastRescale.Before(now) {
		logging.Infof(ctx, "Last rescale for %s is not in the past, skipping cycle", functionID)
		metrics.RescaleCyclesTotal.WithLabelValues(functionID, "invalid_interval").Inc()
		return nil
	}

	// Samples observed after the cycle boundary stay buffered for the next cycle.
	samples, err := r.storage.DrainSamples(functionID, now)
	if err != nil {
		metrics.RescaleCyclesTotal.WithLabelValues(functionID, "error").Inc()
		return err
	}
	request.SamplesSecs = samples

	decision, err := r.rescaler.Rescale(ctx, request)
	if err != nil {
		metrics.RescaleCyclesTotal.WithLabelValues(functionID, "error").Inc()
		return err
	}

	if r.config.Metadata.DryRun {
		logging.Infof(ctx, "Dry run: function %s would scale to %d (activity=%.6f waiting=%.6f ratio=%.6f)",
			functionID, decision.TargetScale, decision.State.Activity, decision.State.Waiting, decision.CostRatio)
	} else {
		if err := r.storage.WriteState(ports.StateRecord{
			FunctionID:   functionID,
			State:        decision.State,
			CurrentScale: decision.TargetScale,
			LastRescale:  now,
		}); err != nil {
			metrics.RescaleCyclesTotal.WithLabelValues(functionID, "error").Inc()
			return err
		}
	}

	r.publishMetrics(functionID, len(samples), decision)

	logging.Infof(ctx, "Function %s: %d samples, activity=%.6f waiting=%.6f ratio=%.6f scale=%d",
		functionID, len(samples), decision.State.Activity, decision.State.Waiting, decision.CostRatio, decision.TargetScale)
	return nil
}

func (r *RescaleTask) publishMetrics(functionID string, batchSize int, decision types.Decision) {
	metrics.FunctionActivity.WithLabelValues(functionID).Set(decision.State.Activity)
	metrics.FunctionWaiting.WithLabelValues(functionID).Set(decision.State.Waiting)
	metrics.FunctionCostRatio.WithLabelValues(functionID).Set(decision.CostRatio)
	metrics.FunctionTargetScale.WithLabelValues(functionID).Set(float64(decision.TargetScale))
	metrics.SampleBatchSize.WithLabelValues(functionID).Set(float64(batchSize))

	if decision.SkippedSamples > 0 {
		metrics.SkippedSamplesTotal.WithLabelValues(functionID).Add(float64(decision.SkippedSamples))
	}
	if decision.ForceSpinUp {
		metrics.ForceSpinUpsTotal.WithLabelValues(functionID).Inc()
	}
	metrics.RescaleCyclesTotal.WithLabelValues(functionID, "ok").Inc()
}
