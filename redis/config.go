package redis

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds Redis settings. Bound to REDIS_* variables.
type Config struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db" validate:"gte=0"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size" validate:"gte=1"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns" validate:"gte=0"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`

	// KeyPrefix namespaces every key the client touches.
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// DefaultConfig returns the Redis defaults. Redis is disabled unless
// REDIS_ENABLED is set.
func DefaultConfig() Config {
	return Config{
		Host:         "redis",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks an enabled configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("redis.host is required when redis is enabled")
	}
	if c.MinIdleConns > c.PoolSize {
		return fmt.Errorf("redis.min_idle_conns (%d) must be <= pool_size (%d)", c.MinIdleConns, c.PoolSize)
	}
	return nil
}
