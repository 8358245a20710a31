package observability

import (
	"fmt"
	"time"
)

// Config contains OpenTelemetry settings. Bound to OTEL_* variables.
type Config struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint        string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure        bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate      float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	MetricsInterval time.Duration `yaml:"metrics_interval" mapstructure:"metrics_interval"`
}

// DefaultConfig returns telemetry defaults: disabled, local collector.
func DefaultConfig() Config {
	return Config{
		Endpoint:        "localhost:4318",
		Insecure:        true,
		SampleRate:      1.0,
		MetricsInterval: 15 * time.Second,
	}
}

// Validate checks that an enabled exporter has somewhere to send data.
func (c *Config) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("otel.endpoint is required when telemetry is enabled")
	}
	if c.MetricsInterval < 0 {
		return fmt.Errorf("otel.metrics_interval must not be negative")
	}
	return nil
}

// ServiceInfo identifies the service on exported telemetry.
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
}
