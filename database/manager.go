package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/kbukum/appcore/logger"
	"github.com/kbukum/appcore/observability"
	"github.com/kbukum/appcore/resilience"
)

// SessionMaker opens a new session. Handlers and middleware depend on this
// rather than on the manager itself.
type SessionMaker func(ctx context.Context) (*Session, error)

// ConnectionManager owns the engine and its connection pool.
type ConnectionManager struct {
	cfg     Config
	engine  *gorm.DB
	sqlDB   *sql.DB
	log     *logger.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	closed bool
}

// ManagerOption customizes a ConnectionManager.
type ManagerOption func(*ConnectionManager)

// WithMetrics records session outcomes on m.
func WithMetrics(m *observability.Metrics) ManagerOption {
	return func(cm *ConnectionManager) { cm.metrics = m }
}

// NewConnectionManager opens the engine with context-aware retry and
// applies the pool limits.
func NewConnectionManager(ctx context.Context, cfg Config, log *logger.Logger, opts ...ManagerOption) (*ConnectionManager, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("database")

	dialector, err := cfg.Dialector()
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger: newGormLogger(log, cfg.SlowQueryThreshold, gormLogLevel(cfg.Echo)),
	}

	type opened struct {
		engine *gorm.DB
		sqlDB  *sql.DB
	}
	conn, err := resilience.Retry(ctx, resilience.ConnectBackoff(cfg.ConnectRetries),
		func(a resilience.Attempt) {
			log.Warn("Database connection attempt failed, retrying", map[string]interface{}{
				"attempt": a.Number,
				"error":   a.Err.Error(),
				"backoff": a.Wait.String(),
			})
		},
		func(ctx context.Context) (opened, error) {
			engine, sqlDB, err := open(ctx, dialector, gormCfg)
			return opened{engine, sqlDB}, err
		})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	engine, sqlDB := conn.engine, conn.sqlDB

	sqlDB.SetMaxIdleConns(cfg.PoolSize)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns())
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	m := &ConnectionManager{
		cfg:    cfg,
		engine: engine,
		sqlDB:  sqlDB,
		log:    log,
	}
	for _, opt := range opts {
		opt(m)
	}

	log.Info("Database connection established", map[string]interface{}{
		"url":       cfg.RedactedURL(),
		"pool_size": cfg.PoolSize,
		"max_open":  cfg.MaxOpenConns(),
	})
	return m, nil
}

func open(ctx context.Context, dialector gorm.Dialector, gormCfg *gorm.Config) (*gorm.DB, *sql.DB, error) {
	engine, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		// gorm returns the handle when only its automatic ping failed.
		if engine != nil {
			if sqlDB, dbErr := engine.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
		}
		return nil, nil, err
	}
	sqlDB, err := engine.DB()
	if err != nil {
		return nil, nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return engine, sqlDB, nil
}

// Config returns the settings the manager was opened with.
func (m *ConnectionManager) Config() Config { return m.cfg }

// Engine returns the pooled GORM handle. Statements run on it are not
// part of any session.
func (m *ConnectionManager) Engine() *gorm.DB { return m.engine }

// SessionMaker returns the session factory bound to this manager.
func (m *ConnectionManager) SessionMaker() SessionMaker {
	return m.OpenSession
}

// Session runs fn inside a session. It commits when fn returns nil, rolls
// back and returns fn's error otherwise, rolls back and re-panics on
// panic, and always releases the connection.
func (m *ConnectionManager) Session(ctx context.Context, fn func(*Session) error) (err error) {
	s, err := m.OpenSession(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := s.Rollback(); rbErr != nil {
				m.log.Error("Rollback after panic failed", map[string]interface{}{"error": rbErr.Error()})
			}
			_ = s.Close()
			panic(r)
		}
		if closeErr := s.Close(); closeErr != nil {
			if err == nil {
				err = closeErr
			} else {
				m.log.Warn("Session close failed", map[string]interface{}{"error": closeErr.Error()})
			}
		}
	}()

	if fnErr := fn(s); fnErr != nil {
		if rbErr := s.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", fnErr, rbErr)
		}
		return fnErr
	}
	return s.Commit()
}

// Ping checks that the pool can reach the database.
func (m *ConnectionManager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrManagerClosed
	}
	return m.sqlDB.PingContext(ctx)
}

// Stats returns pool statistics.
func (m *ConnectionManager) Stats() sql.DBStats {
	return m.sqlDB.Stats()
}

// Close disposes the pool. Safe to call multiple times.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.log.Info("Closing database connection pool")
	return m.sqlDB.Close()
}

func (m *ConnectionManager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
