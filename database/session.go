package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/kbukum/appcore/observability"
)

// Session is a unit of work bound to a single pooled connection. A
// transaction begins on first use of DB and begins again after each
// Commit or Rollback, unless the manager runs in autocommit mode.
//
// A Session is not safe for concurrent use.
type Session struct {
	m    *ConnectionManager
	ctx  context.Context
	conn *sql.Conn
	db   *gorm.DB
	tx   *gorm.DB

	mu      sync.Mutex
	closed  bool
	outcome string
	started time.Time
	span    trace.Span
}

// OpenSession checks a connection out of the pool, waiting at most
// POOL_TIMEOUT. With POOL_PRE_PING a dead connection is discarded and
// replaced once.
func (m *ConnectionManager) OpenSession(ctx context.Context) (*Session, error) {
	if m.isClosed() {
		return nil, ErrManagerClosed
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanDBSession)
	started := time.Now()

	conn, err := m.checkout(ctx)
	if err != nil {
		observability.SetSpanError(span, err)
		span.SetAttributes(attribute.String(observability.AttrOutcome, observability.OutcomeError))
		span.End()
		m.metrics.RecordSession(ctx, observability.OutcomeError, time.Since(started))
		return nil, err
	}

	db := m.engine.Session(&gorm.Session{Context: ctx, NewDB: true})
	db.Statement.ConnPool = conn

	return &Session{
		m:       m,
		ctx:     ctx,
		conn:    conn,
		db:      db,
		started: started,
		span:    span,
	}, nil
}

func (m *ConnectionManager) checkout(ctx context.Context) (*sql.Conn, error) {
	attempts := 1
	if m.cfg.PoolPrePing {
		attempts = 2
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := m.acquire(ctx)
		if err != nil {
			return nil, err
		}
		if !m.cfg.PoolPrePing {
			return conn, nil
		}
		if lastErr = conn.PingContext(ctx); lastErr == nil {
			return conn, nil
		}
		m.log.Warn("Discarding dead pooled connection", map[string]interface{}{"error": lastErr.Error()})
		// Returning ErrBadConn from Raw makes database/sql drop the connection
		// instead of putting it back in the pool.
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		_ = conn.Close()
	}
	return nil, fmt.Errorf("database: pre-ping failed: %w", lastErr)
}

func (m *ConnectionManager) acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx := ctx
	if timeout := m.cfg.PoolTimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := m.sqlDB.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrPoolTimeout, m.cfg.PoolTimeoutDuration())
		}
		return nil, err
	}
	return conn, nil
}

// DB returns the handle for this session's statements. Errors from a
// closed session or a failed BEGIN are carried on the returned handle, the
// usual GORM way.
func (s *Session) DB() *gorm.DB {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.errDB(ErrSessionClosed)
	}
	if s.m.cfg.Autocommit {
		return s.db
	}
	if s.tx == nil {
		tx := s.db.Begin()
		if tx.Error != nil {
			return s.errDB(fmt.Errorf("begin transaction: %w", tx.Error))
		}
		s.tx = tx
	}
	return s.tx
}

func (s *Session) errDB(err error) *gorm.DB {
	db := s.m.engine.Session(&gorm.Session{Context: s.ctx, NewDB: true})
	_ = db.AddError(err)
	return db
}

// Context returns the context the session was opened with.
func (s *Session) Context() context.Context { return s.ctx }

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Commit commits the open transaction. Without one it only records the
// outcome.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil {
		s.outcome = observability.OutcomeCommit
		return nil
	}
	err := s.tx.Commit().Error
	s.tx = nil
	if err != nil {
		s.outcome = observability.OutcomeError
		observability.SetSpanError(s.span, err)
		return fmt.Errorf("commit: %w", err)
	}
	s.outcome = observability.OutcomeCommit
	return nil
}

// Rollback discards the open transaction. Without one it only records the
// outcome.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	return s.rollbackLocked()
}

func (s *Session) rollbackLocked() error {
	s.outcome = observability.OutcomeRollback
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback().Error
	s.tx = nil
	if err != nil {
		s.outcome = observability.OutcomeError
		observability.SetSpanError(s.span, err)
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Close rolls back anything still open and returns the connection to the
// pool. Calling Close again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.tx != nil {
		errs = append(errs, s.rollbackLocked())
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		errs = append(errs, fmt.Errorf("release connection: %w", err))
	}

	outcome := s.outcome
	if outcome == "" {
		outcome = observability.OutcomeRollback
	}
	s.span.SetAttributes(attribute.String(observability.AttrOutcome, outcome))
	s.span.End()
	s.m.metrics.RecordSession(s.ctx, outcome, time.Since(s.started))

	s.db = nil
	return errors.Join(errs...)
}
