package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/appcore/component"
	"github.com/kbukum/appcore/logger"
)

// Component wraps a ConnectionManager for the component registry.
type Component struct {
	cfg  Config
	log  *logger.Logger
	opts []ManagerOption

	mu      sync.RWMutex
	manager *ConnectionManager
}

var _ component.Component = (*Component)(nil)
var _ component.Describable = (*Component)(nil)

// NewComponent creates a database component. Nothing connects until Start.
func NewComponent(cfg Config, log *logger.Logger, opts ...ManagerOption) *Component {
	return &Component{
		cfg:  cfg,
		log:  log,
		opts: opts,
	}
}

func (c *Component) Name() string { return "database" }

// Manager returns the connection manager, or nil before Start.
func (c *Component) Manager() *ConnectionManager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager
}

// SessionMaker returns a factory usable before Start; it fails with a
// service-unavailable error until the component is running.
func (c *Component) SessionMaker() SessionMaker {
	return func(ctx context.Context) (*Session, error) {
		m := c.Manager()
		if m == nil {
			return nil, ErrManagerClosed
		}
		return m.OpenSession(ctx)
	}
}

func (c *Component) Start(ctx context.Context) error {
	m, err := NewConnectionManager(ctx, c.cfg, c.log, c.opts...)
	if err != nil {
		return fmt.Errorf("database start: %w", err)
	}
	c.mu.Lock()
	c.manager = m
	c.mu.Unlock()
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	m := c.manager
	c.manager = nil
	c.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	m := c.Manager()
	if m == nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "database not initialized",
		}
	}

	hs := m.CheckHealth(ctx)
	if !hs.Connected {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %s", hs.Error),
		}
	}

	status := component.StatusHealthy
	if hs.InUseConns >= c.cfg.MaxOpenConns() {
		status = component.StatusDegraded
	}
	return component.Health{
		Name:   c.Name(),
		Status: status,
		Details: map[string]interface{}{
			"latency_ms": hs.Latency.Milliseconds(),
			"open":       hs.OpenConns,
			"in_use":     hs.InUseConns,
			"idle":       hs.IdleConns,
		},
	}
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "PostgreSQL",
		Type:    "database",
		Details: fmt.Sprintf("%s pool=%d+%d", c.cfg.RedactedURL(), c.cfg.PoolSize, c.cfg.MaxOverflow),
		Port:    c.cfg.Port,
	}
}
