package main

import (
	"context"
	"os"
	"time"

	"github.com/flexscale/flexscale/pkg/adapters/database"
	"github.com/flexscale/flexscale/pkg/adapters/database/sqlite"
	"github.com/flexscale/flexscale/pkg/adapters/metricsProvider/prometheus"
	"github.com/flexscale/flexscale/pkg/config"
	"github.com/flexscale/flexscale/pkg/controller"
	"github.com/flexscale/flexscale/pkg/middleware"
	"github.com/flexscale/flexscale/pkg/policy"
	"github.com/flexscale/flexscale/pkg/ports"
	"github.com/flexscale/flexscale/pkg/repository/storage"
	"github.com/flexscale/flexscale/pkg/server"
	"github.com/flexscale/flexscale/pkg/task"
	"github.com/flexscale/flexscale/pkg/telemetry"

	"github.com/flexscale/flexscale/pkg/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "go.uber.org/automaxprocs"
)

var (
	configFilePath string
	v              = viper.New()
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "flexscale",
		Short: "Cost-based hybrid execution autoscaler",
		Run:   runFlexscale,
	}

	// Core flags
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config-file-path", "config.yaml", "Path to configuration file")

	// Dependencies flags
	rootCmd.PersistentFlags().String("prometheus-url", "", "Prometheus URL")

	// Server flags
	rootCmd.PersistentFlags().String("server-port", "", "Server port")

	// Database flag
	rootCmd.PersistentFlags().String("db-file-path", "", "Database file path")

	// Rescale task flag
	rootCmd.PersistentFlags().Bool("rescale-dry-run", false, "Compute rescale decisions without persisting them")

	// Bind flags to viper
	ctx := context.Background()
	if err := v.BindPFlag("dependencies.prometheusURL", rootCmd.PersistentFlags().Lookup("prometheus-url")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}
	if err := v.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("server-port")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}
	if err := v.BindPFlag("db.filePath", rootCmd.PersistentFlags().Lookup("db-file-path")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}
	if err := v.BindPFlag("controller.tasks.rescale.metadata.dryRun", rootCmd.PersistentFlags().Lookup("rescale-dry-run")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runFlexscale(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cfg, err := config.LoadWithViperInstance(ctx, v, configFilePath)
	if err != nil {
		logging.Fatalf(ctx, "Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		logging.Fatalf(ctx, "Invalid configuration: %v", err)
	}
	logging.Infof(ctx, "Configuration loaded: db=%s serverPort=%s", cfg.DB.Type, cfg.Server.Port)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
		if err != nil {
			logging.Fatalf(ctx, "Failed to initialize telemetry: %v", err)
		}

		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logging.Errorf(ctx, "Failed to shutdown telemetry: %v", err)
			}
		}()
	}

	if cfg.Metrics.Enabled {
		metricsEngine := server.SetupMetricsServerEngine()
		metricsPort := cfg.Metrics.Port
		go func() {
			logging.Infof(ctx, "Starting metrics server on :%s", metricsPort)
			if err := metricsEngine.Run(":" + metricsPort); err != nil {
				logging.Fatalf(ctx, "Metrics server failed: %v", err)
			}
		}()
	}

	setupController(ctx, cfg)

	blockForever()
}

func setupController(ctx context.Context, cfg *config.Config) {
	////////
	// Storage Repo
	////////
	db := newDatabase(ctx, cfg)

	storageRepo, err := storage.NewStorageRepo(db)
	if err != nil {
		logging.Fatalf(ctx, "Failed to initialize storage: %v", err)
	}
	logging.Infof(ctx, "Storage Repo initialized")
	storage.Stg = storageRepo

	////////
	// Policy
	////////
	rescaler, err := policy.NewCostRescaler(cfg.Policy)
	if err != nil {
		logging.Fatalf(ctx, "Failed to construct rescale policy: %v", err)
	}

	////////
	// Task manager
	////////
	taskManager := controller.NewTaskManager()

	rescaleTaskConfig := cfg.GetTaskConfig(config.RescaleKey)
	taskManager.AddTask(task.NewRescaleTask(
		ctx,
		storageRepo,
		rescaler,
		&task.RescaleTaskConfig{
			Name:     config.RescaleKey,
			Enabled:  rescaleTaskConfig.Enabled,
			Schedule: rescaleTaskConfig.Schedule,
			LeaseTTL: time.Duration(cfg.Controller.LeaseTTLSeconds) * time.Second,
		},
		rescaleTaskConfig,
	))

	maintenanceTaskConfig := cfg.GetTaskConfig(config.MaintenanceKey)
	taskManager.AddTask(task.NewMaintenanceTask(
		ctx,
		storageRepo,
		&task.MaintenanceTaskConfig{
			Name:            config.MaintenanceKey,
			Enabled:         maintenanceTaskConfig.Enabled,
			Schedule:        maintenanceTaskConfig.Schedule,
			SampleRetention: time.Duration(cfg.Controller.SampleRetentionMinutes) * time.Minute,
		},
		maintenanceTaskConfig,
	))

	pullDurationsTaskConfig := cfg.GetTaskConfig(config.PullDurationsKey)
	if pullDurationsTaskConfig != nil && pullDurationsTaskConfig.Enabled {
		promConfig := prometheus.GetPrometheusClientConfig(cfg.Dependencies.PrometheusURL)
		promClient, err := prometheus.NewPrometheusProvider(ctx, promConfig)
		if err != nil {
			logging.Fatalf(ctx, "Failed to create prometheus client: %v", err)
		}

		taskManager.AddTask(task.NewPullDurationsTask(
			ctx,
			promClient,
			storageRepo,
			&task.PullDurationsTaskConfig{
				Name:     config.PullDurationsKey,
				Enabled:  pullDurationsTaskConfig.Enabled,
				Schedule: pullDurationsTaskConfig.Schedule,
			},
			pullDurationsTaskConfig,
		))
	}

	////////
	// API Server
	////////
	engine := server.SetupServerEngine(
		middleware.AuthAPI(cfg),
		middleware.Common(taskManager, cfg, storageRepo)...)

	serverPort := cfg.Server.Port
	go func() {
		if err := engine.Run(":" + serverPort); err != nil {
			logging.Fatalf(ctx, "HTTP server failed: %v", err)
		}
	}()

	if err := taskManager.ScheduleAllTasks(); err != nil {
		logging.Fatalf(ctx, "Failed to schedule tasks: %v", err)
	}
	if err := taskManager.StartTasks(); err != nil {
		logging.Fatalf(ctx, "Failed to start tasks: %v", err)
	}
}

// newDatabase picks the raw sqlite adapter for local single-node runs and
// the GORM-backed adapter for postgres.
func newDatabase(ctx context.Context, cfg *config.Config) ports.Database {
	switch cfg.DB.Type {
	case "", "sqlite":
		db, err := sqlite.NewSQLiteAdapter(cfg.DB.FilePath)
		if err != nil {
			logging.Fatalf(ctx, "Failed to initialize database: %v", err)
		}
		logging.Infof(ctx, "SQLite Adapter initialized")
		return db
	case "postgres":
		db, err := database.NewDatabase(database.DatabaseConfig{
			Type:     cfg.DB.Type,
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			Database: cfg.DB.Database,
			Username: cfg.DB.Username,
			Password: cfg.DB.Password,
			SSLMode:  cfg.DB.SSLMode,
		})
		if err != nil {
			logging.Fatalf(ctx, "Failed to initialize database: %v", err)
		}
		logging.Infof(ctx, "Postgres Adapter initialized")
		return db
	default:
		logging.Fatalf(ctx, "Invalid db type: %s", cfg.DB.Type)
		return nil
	}
}

func blockForever() {
	select {}
}
