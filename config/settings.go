package config

import (
	"fmt"

	"github.com/kbukum/appcore/database"
	"github.com/kbukum/appcore/logger"
	"github.com/kbukum/appcore/observability"
	"github.com/kbukum/appcore/redis"
	"github.com/kbukum/appcore/server"
	"github.com/kbukum/appcore/validation"
	"github.com/kbukum/appcore/version"
)

// AppConfig describes the service. Bound to APP_* variables.
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Version     string `yaml:"version" mapstructure:"version"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	APIPrefix   string `yaml:"api_prefix" mapstructure:"api_prefix" validate:"required,startswith=/"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
}

// Settings aggregates every configuration section.
type Settings struct {
	App       AppConfig            `yaml:"app" mapstructure:"app"`
	Logging   logger.Config        `yaml:"logging" mapstructure:"logging"`
	Postgres  database.Config      `yaml:"postgres" mapstructure:"postgres"`
	Redis     redis.Config         `yaml:"redis" mapstructure:"redis"`
	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Telemetry observability.Config `yaml:"otel" mapstructure:"otel"`
}

// DefaultSettings returns the settings used when nothing overrides them.
func DefaultSettings() Settings {
	return Settings{
		App: AppConfig{
			Name:        "appcore",
			Version:     version.Version,
			Environment: "development",
			APIPrefix:   "/api/service",
			Debug:       true,
		},
		Logging:   logger.DefaultConfig(),
		Postgres:  database.DefaultConfig(),
		Redis:     redis.DefaultConfig(),
		Server:    server.DefaultConfig(),
		Telemetry: observability.DefaultConfig(),
	}
}

type section struct {
	name     string
	value    any
	validate func() error
}

func (s *Settings) sections() []section {
	return []section{
		{"app", &s.App, nil},
		{"logging", &s.Logging, s.Logging.Validate},
		{"postgres", &s.Postgres, s.Postgres.Validate},
		{"redis", &s.Redis, s.Redis.Validate},
		{"server", &s.Server, s.Server.Validate},
		{"otel", &s.Telemetry, s.Telemetry.Validate},
	}
}

// Validate checks struct tags and each section's own rules. Errors name
// the failing section.
func (s *Settings) Validate() error {
	for _, sec := range s.sections() {
		if err := validation.Struct(sec.value); err != nil {
			return fmt.Errorf("config.%s: %w", sec.name, err)
		}
		if sec.validate != nil {
			if err := sec.validate(); err != nil {
				return fmt.Errorf("config.%s: %w", sec.name, err)
			}
		}
	}
	return nil
}

// ServiceInfo returns the identity reported on telemetry.
func (s *Settings) ServiceInfo() observability.ServiceInfo {
	return observability.ServiceInfo{
		Name:        s.App.Name,
		Version:     s.App.Version,
		Environment: s.App.Environment,
	}
}
