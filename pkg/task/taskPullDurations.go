package task

import (
	"context"
	"math"
	"time"

	"github.com/flexscale/flexscale/pkg/adapters/metricsProvider/prometheus"
	"github.com/flexscale/flexscale/pkg/config"
	"github.com/flexscale/flexscale/pkg/contextutils"
	"github.com/flexscale/flexscale/pkg/logging"
	"github.com/flexscale/flexscale/pkg/repository/storage"
	"github.com/flexscale/flexscale/pkg/task/utils"
)

type PullDurationsMetadata struct {
	// SumQuery and CountQuery must return instant vectors labeled by
	// FunctionLabel, covering the window since the previous pull.
	SumQuery      string `yaml:"sumQuery" json:"sumQuery" mapstructure:"sumQuery"`
	CountQuery    string `yaml:"countQuery" json:"countQuery" mapstructure:"countQuery"`
	FunctionLabel string `yaml:"functionLabel" json:"functionLabel" mapstructure:"functionLabel"`
	MaxSamples    int    `yaml:"maxSamples" json:"maxSamples" mapstructure:"maxSamples"`
}

type PullDurationsTaskConfig struct {
	Name     string
	Enabled  bool
	Schedule string
	Metadata PullDurationsMetadata
}

// PullDurationsTask feeds the sample buffer from Prometheus for services
// that expose call duration histograms instead of pushing samples directly.
// Each pull turns the (sum, count) pair into count synthetic samples of the
// mean duration.
type PullDurationsTask struct {
	promClient *prometheus.PrometheusProvider
	storage    *storage.Storage
	config     *PullDurationsTaskConfig
}

func NewPullDurationsTask(ctx context.Context, promClient *prometheus.PrometheusProvider, storage *storage.Storage, config *PullDurationsTaskConfig, taskConfig *config.TaskConfig) *PullDurationsTask {
	var pullMetadata PullDurationsMetadata
	if err := taskConfig.ConvertMetadataToStruct(&pullMetadata); err != nil {
		logging.Errorf(ctx, "Error converting metadata to struct: %v", err)
		return nil
	}

	if pullMetadata.FunctionLabel == "" {
		pullMetadata.FunctionLabel = "function"
	}
	if pullMetadata.MaxSamples <= 0 {
		pullMetadata.MaxSamples = 10000
	}

	config.Metadata = pullMetadata
	return &PullDurationsTask{
		promClient: promClient,
		storage:    storage,
		config:     config,
	}
}

func (p *PullDurationsTask) GetCoreTask() any {
	return p
}

func (p *PullDurationsTask) GetName() string {
	return p.config.Name
}

func (p *PullDurationsTask) GetSchedule() string {
	return p.config.Schedule
}

func (p *PullDurationsTask) IsEnabled() bool {
	return p.config.Enabled
}

func (p *PullDurationsTask) Run(ctx context.Context) error {
	ctx = contextutils.WithTask(ctx, p.config.Name)
	defer utils.TimeIt(ctx, p.config.Name)()

	meta := p.config.Metadata
	if meta.SumQuery == "" || meta.CountQuery == "" {
		logging.Warn(ctx, "Pull task enabled without sumQuery/countQuery, nothing to do")
		return nil
	}

	stats, err := p.promClient.FetchCallDurations(ctx, meta.SumQuery, meta.CountQuery, meta.FunctionLabel)
	if err != nil {
		logging.Errorf(ctx, "Error fetching call durations: %v", err)
		return err
	}

	now := time.Now().UTC()
	for functionID, stat := range stats {
		fnCtx := contextutils.WithFunction(ctx, functionID)

		sizing, err := p.storage.GetSizing(functionID)
		if err != nil {
			logging.Errorf(fnCtx, "Error checking registration for %s: %v", functionID, err)
			continue
		}
		if sizing == nil {
			logging.Debugf(fnCtx, "Function %s not registered, dropping pulled durations", functionID)
			continue
		}

		samples := synthesizeSamples(stat, meta.MaxSamples)
		if len(samples) == 0 {
			continue
		}

		if err := p.storage.PushSamples(functionID, samples, now); err != nil {
			logging.Errorf(fnCtx, "Error buffering pulled samples for %s: %v", functionID, err)
			continue
		}
		logging.Infof(fnCtx, "Buffered %d pulled samples for %s (mean %.4fs)", len(samples), functionID, samples[0])
	}

	return nil
}

func synthesizeSamples(stat prometheus.CallDurationStats, maxSamples int) []float64 {
	count := int(math.Round(stat.Count))
	if count <= 0 || stat.TotalSecs < 0 {
		return nil
	}

	mean := stat.TotalSecs / stat.Count

	// Capping keeps a hot function from flooding the buffer; the activity
	// estimate only needs the total, which stays exact because the
	// remainder is folded into the last sample.
	if count <= maxSamples {
		samples := make([]float64, count)
		for i := range samples {
			samples[i] = mean
		}
		return samples
	}

	samples := make([]float64, maxSamples)
	per := stat.TotalSecs / float64(maxSamples)
	for i := range samples {
		samples[i] = per
	}
	return samples
}
