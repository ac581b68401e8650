package task

import (
	"context"
	"time"

	"github.com/flexscale/flexscale/pkg/config"
	"github.com/flexscale/flexscale/pkg/contextutils"
	"github.com/flexscale/flexscale/pkg/logging"
	"github.com/flexscale/flexscale/pkg/metrics"
	"github.com/flexscale/flexscale/pkg/repository/storage"
	"github.com/flexscale/flexscale/pkg/task/utils"
)

type MaintenanceTaskConfig struct {
	Name            string
	Enabled         bool
	Schedule        string
	SampleRetention time.Duration
}

// MaintenanceTask removes expired rescale leases and pending samples that
// were never drained, for instance from functions that got deregistered.
type MaintenanceTask struct {
	storage *storage.Storage
	config  *MaintenanceTaskConfig
}

func NewMaintenanceTask(ctx context.Context, storage *storage.Storage, config *MaintenanceTaskConfig, taskConfig *config.TaskConfig) *MaintenanceTask {
	return &MaintenanceTask{
		storage: storage,
		config:  config,
	}
}

func (m *MaintenanceTask) GetCoreTask() any {
	return m
}

func (m *MaintenanceTask) GetName() string {
	return m.config.Name
}

func (m *MaintenanceTask) GetSchedule() string {
	return m.config.Schedule
}

func (m *MaintenanceTask) IsEnabled() bool {
	return m.config.Enabled
}

func (m *MaintenanceTask) Run(ctx context.Context) error {
	ctx = contextutils.WithTask(ctx, m.config.Name)
	defer utils.TimeIt(ctx, m.config.Name)()

	now := time.Now().UTC()

	expired, err := m.storage.DB.DeleteExpiredLeases(now)
	if err != nil {
		logging.Errorf(ctx, "Error deleting expired leases: %v", err)
		return err
	}
	if expired > 0 {
		logging.Infof(ctx, "Removed %d expired rescale leases", expired)
		metrics.LeasesExpiredTotal.WithLabelValues().Add(float64(expired))
	}

	purged, err := m.storage.DB.DeleteSamplesBefore(now.Add(-m.config.SampleRetention))
	if err != nil {
		logging.Errorf(ctx, "Error purging stale samples: %v", err)
		return err
	}
	if purged > 0 {
		logging.Infof(ctx, "Purged %d samples older than %v", purged, m.config.SampleRetention)
		metrics.SamplesPurgedTotal.WithLabelValues().Add(float64(purged))
	}

	return nil
}
