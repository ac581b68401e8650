package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const testConfigYAML = `
server:
  port: "8181"
metrics:
  enabled: true
  port: "9191"
db:
  type: sqlite
  filePath: test.db
policy:
  smoothingFactor: 0.5
controller:
  leaseTTLSeconds: 30
  tasks:
    rescale:
      enabled: true
      schedule: 30s
      metadata:
        maxBatchSize: 500
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadWithViperAppliesDefaults(t *testing.T) {
	path := writeTestConfig(t, testConfigYAML)

	cfg, err := LoadWithViper(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "8181" {
		t.Errorf("Expected server port 8181, got %s", cfg.Server.Port)
	}
	if cfg.Policy.SmoothingFactor != 0.5 {
		t.Errorf("Expected smoothingFactor override 0.5, got %v", cfg.Policy.SmoothingFactor)
	}
	// Defaults fill what the file omits.
	if cfg.Policy.ForceThresholdSecs != 1e-4 {
		t.Errorf("Expected default force threshold, got %v", cfg.Policy.ForceThresholdSecs)
	}
	if cfg.Policy.ForcedActivity != 10.0 {
		t.Errorf("Expected default forced activity, got %v", cfg.Policy.ForcedActivity)
	}
	if tc := cfg.GetTaskConfig(MaintenanceKey); tc == nil || !tc.Enabled || tc.Schedule != "5m" {
		t.Errorf("Expected default maintenance task config, got %+v", tc)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestTaskMetadataDecoding(t *testing.T) {
	path := writeTestConfig(t, testConfigYAML)

	cfg, err := LoadWithViper(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	var meta struct {
		MaxBatchSize int `mapstructure:"maxBatchSize"`
	}
	tc := cfg.GetTaskConfig(RescaleKey)
	if tc == nil {
		t.Fatal("Missing rescale task config")
	}
	if err := tc.ConvertMetadataToStruct(&meta); err != nil {
		t.Fatalf("Failed to decode metadata: %v", err)
	}
	if meta.MaxBatchSize != 500 {
		t.Errorf("Expected maxBatchSize 500, got %d", meta.MaxBatchSize)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	path := writeTestConfig(t, testConfigYAML)
	base, err := LoadWithViper(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing server port", func(c *Config) { c.Server.Port = "" }},
		{"bad db type", func(c *Config) { c.DB.Type = "oracle" }},
		{"sqlite without file", func(c *Config) { c.DB.FilePath = "" }},
		{"zero lease ttl", func(c *Config) { c.Controller.LeaseTTLSeconds = 0 }},
		{"bad smoothing factor", func(c *Config) { c.Policy.SmoothingFactor = 1.5 }},
		{"pull task without prometheus", func(c *Config) {
			c.Controller.Tasks[PullDurationsKey] = &TaskConfig{Enabled: true, Schedule: "60s"}
			c.Dependencies.PrometheusURL = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *base
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoadConfigPlainYAML(t *testing.T) {
	path := writeTestConfig(t, testConfigYAML)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Controller.LeaseTTLSeconds != 30 {
		t.Errorf("Expected leaseTTLSeconds 30, got %d", cfg.Controller.LeaseTTLSeconds)
	}
}
