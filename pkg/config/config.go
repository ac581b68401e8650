package config

import (
	"fmt"
	"os"

	"github.com/flexscale/flexscale/pkg/policy"
	"gopkg.in/yaml.v2"
)

const (
	RescaleKey       = "rescale"
	PullDurationsKey = "pulldurations"
	MaintenanceKey   = "maintenance"
)

type Config struct {
	Server       ServerConfig           `yaml:"server" mapstructure:"server"`
	Metrics      MetricsConfig          `yaml:"metrics" mapstructure:"metrics"`
	Telemetry    TelemetryConfig        `yaml:"telemetry" mapstructure:"telemetry"`
	DB           DatabaseConfig         `yaml:"db" mapstructure:"db"`
	Policy       policy.Params          `yaml:"policy" mapstructure:"policy"`
	Controller   ControllerConfig       `yaml:"controller" mapstructure:"controller"`
	Dependencies Dependencies           `yaml:"dependencies" mapstructure:"dependencies"`
	Custom       map[string]interface{} `yaml:",inline" mapstructure:",remain"`
}

func (c *Config) GetTaskConfig(taskName string) *TaskConfig {
	return c.Controller.Tasks[taskName]
}

type ServerConfig struct {
	Port      string          `yaml:"port" mapstructure:"port"`
	BasicAuth BasicAuthConfig `yaml:"basicAuth" mapstructure:"basicAuth"`
}

type BasicAuthConfig struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    string `yaml:"port" mapstructure:"port"`
}

type TelemetryConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	ExporterOTLPEndpoint string  `yaml:"exporterOTLPEndpoint" mapstructure:"exporterOTLPEndpoint"`
	ExporterOTLPHeaders  string  `yaml:"exporterOTLPHeaders" mapstructure:"exporterOTLPHeaders"`
	ServiceName          string  `yaml:"serviceName" mapstructure:"serviceName"`
	TraceRatio           float64 `yaml:"traceRatio" mapstructure:"traceRatio"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type" mapstructure:"type"`         // "sqlite" or "postgres"
	FilePath string `yaml:"filePath" mapstructure:"filePath"` // For sqlite
	Host     string `yaml:"host" mapstructure:"host"`         // For postgres
	Port     int    `yaml:"port" mapstructure:"port"`         // For postgres
	Database string `yaml:"database" mapstructure:"database"` // For postgres
	Username string `yaml:"username" mapstructure:"username"` // For postgres
	Password string `yaml:"password" mapstructure:"password"` // For postgres
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`   // For postgres
}

type ControllerConfig struct {
	// How long a per-function rescale lease is held before it expires.
	LeaseTTLSeconds int `yaml:"leaseTTLSeconds" mapstructure:"leaseTTLSeconds"`
	// Pending samples older than this are purged by the maintenance task.
	SampleRetentionMinutes int                    `yaml:"sampleRetentionMinutes" mapstructure:"sampleRetentionMinutes"`
	Tasks                  map[string]*TaskConfig `yaml:"tasks" mapstructure:"tasks"`
}

type Dependencies struct {
	PrometheusURL string `yaml:"prometheusURL" mapstructure:"prometheusURL"`
}

// LoadConfig reads a bare YAML config file without env/flag overlays.
// The runtime path is LoadWithViperInstance; this one serves tests.
func LoadConfig(path string) (*Config, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Metrics.Enabled && c.Metrics.Port == "" {
		return fmt.Errorf("metrics.port is required when metrics are enabled")
	}
	switch c.DB.Type {
	case "", "sqlite":
		if c.DB.FilePath == "" {
			return fmt.Errorf("db.filePath is required for sqlite")
		}
	case "postgres":
		if c.DB.Host == "" || c.DB.Database == "" {
			return fmt.Errorf("db.host and db.database are required for postgres")
		}
	default:
		return fmt.Errorf("invalid db.type: %s (expected sqlite|postgres)", c.DB.Type)
	}
	if c.Controller.LeaseTTLSeconds <= 0 {
		return fmt.Errorf("controller.leaseTTLSeconds must be positive")
	}
	if tc := c.GetTaskConfig(PullDurationsKey); tc != nil && tc.Enabled && c.Dependencies.PrometheusURL == "" {
		return fmt.Errorf("dependencies.prometheusURL is required when the %s task is enabled", PullDurationsKey)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy config: %w", err)
	}
	return nil
}
