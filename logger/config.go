package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/htmlindex"
)

// Config contains logging settings. Bound to LOGGING_* variables.
type Config struct {
	LoggerName    string `yaml:"logger_name" mapstructure:"logger_name" validate:"required"`
	Level         string `yaml:"level" mapstructure:"level"`
	Format        string `yaml:"format" mapstructure:"format" validate:"oneof=console json"`
	Dir           string `yaml:"dir" mapstructure:"dir"`
	Interval      int    `yaml:"interval" mapstructure:"interval" validate:"gte=0"`         // days
	BackupCount   int    `yaml:"backup_count" mapstructure:"backup_count" validate:"gte=0"` // rotated files kept
	MaxSize       int    `yaml:"max_size" mapstructure:"max_size" validate:"gte=0"`         // megabytes
	Encoding      string `yaml:"encoding" mapstructure:"encoding"`
	DisableStream bool   `yaml:"disable_stream" mapstructure:"disable_stream"`
	DisableFile   bool   `yaml:"disable_file" mapstructure:"disable_file"`
	NoColor       bool   `yaml:"no_color" mapstructure:"no_color"`
}

// DefaultConfig returns the logging defaults.
func DefaultConfig() Config {
	return Config{
		LoggerName:  "appLogger",
		Level:       "DEBUG",
		Format:      "console",
		Dir:         "logs",
		Interval:    1,
		BackupCount: 30,
		MaxSize:     100,
		Encoding:    "utf-8",
	}
}

// Validate checks fields the struct tags cannot express.
func (c *Config) Validate() error {
	if c.Encoding != "" {
		if _, err := htmlindex.Get(c.Encoding); err != nil {
			return fmt.Errorf("logging.encoding %q is not a known encoding", c.Encoding)
		}
	}
	if c.DisableStream && c.DisableFile {
		return fmt.Errorf("logging: stream and file output cannot both be disabled")
	}
	return nil
}

// ZerologLevel maps the configured level. Unknown levels fall back to debug.
func (c *Config) ZerologLevel() zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(c.Level)) {
	case "INFO":
		return zerolog.InfoLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.DebugLevel
	}
}

// LogPath returns the log directory, creating it if it does not exist.
func (c *Config) LogPath() (string, error) {
	dir := c.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir %s: %w", dir, err)
	}
	return dir, nil
}

// FilePath returns the path of the active log file.
func (c *Config) FilePath() (string, error) {
	dir, err := c.LogPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.LoggerName+".log"), nil
}
