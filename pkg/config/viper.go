package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/flexscale/flexscale/pkg/policy"
	"github.com/spf13/viper"
)

// LoadWithViper loads configuration using Viper from a single config file.
// Overridden by env vars (prefix FLEXSCALE_) and flags bound by caller.
func LoadWithViper(ctx context.Context, configFilePath string) (*Config, error) {
	return LoadWithViperInstance(ctx, viper.New(), configFilePath)
}

// LoadWithViperInstance loads configuration using a provided Viper instance (for flag binding).
func LoadWithViperInstance(ctx context.Context, v *viper.Viper, configFilePath string) (*Config, error) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", "9090")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.traceRatio", 0.1)
	v.SetDefault("telemetry.serviceName", "flexscale")
	v.SetDefault("db.type", "sqlite")
	v.SetDefault("db.filePath", "flexscale.db")
	v.SetDefault("policy.smoothingFactor", policy.DefaultSmoothingFactor)
	v.SetDefault("policy.forceThresholdSecs", policy.DefaultForceThresholdSecs)
	v.SetDefault("policy.minCallOverheadSecs", policy.DefaultMinCallOverheadSecs)
	v.SetDefault("policy.callerWaitOverheadSecs", policy.DefaultCallerWaitOverheadSecs)
	v.SetDefault("policy.provisionedBasePrice", policy.DefaultProvisionedBasePrice)
	v.SetDefault("policy.unitPricePerGBSecond", policy.DefaultUnitPricePerGBSecond)
	v.SetDefault("policy.forcedActivity", policy.DefaultForcedActivity)
	v.SetDefault("controller.leaseTTLSeconds", 55)
	v.SetDefault("controller.sampleRetentionMinutes", 60)
	v.SetDefault("controller.tasks.rescale.enabled", true)
	v.SetDefault("controller.tasks.rescale.schedule", "60s")
	v.SetDefault("controller.tasks.maintenance.enabled", true)
	v.SetDefault("controller.tasks.maintenance.schedule", "5m")
	v.SetDefault("controller.tasks.pulldurations.enabled", false)
	v.SetDefault("controller.tasks.pulldurations.schedule", "60s")

	v.SetConfigType("yaml")
	v.SetConfigFile(configFilePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFilePath, err)
	}

	v.SetEnvPrefix("FLEXSCALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
