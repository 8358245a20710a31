package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/appcore/logger"
	"github.com/kbukum/appcore/observability"
	"github.com/kbukum/appcore/server/endpoint"
	"github.com/kbukum/appcore/server/middleware"
)

// Server is an HTTP server backed by Gin, served through h2c so HTTP/2
// cleartext clients share the port. Middleware registered with
// SetupMiddlewares wraps the whole handler, including routes added later.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     Config
	log        *logger.Logger

	mu          sync.Mutex
	middlewares []middleware.Middleware
	listenAddr  string
	running     bool
}

// Option configures a Server.
type Option func(*Server)

// WithDebug forces gin debug or release mode instead of deriving it from
// the log level.
func WithDebug(debug bool) Option {
	return func(*Server) {
		if debug {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}
}

// New creates a Server. No middleware is applied until SetupMiddlewares.
func New(cfg Config, log *logger.Logger, opts ...Option) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	s := &Server{
		engine: gin.New(),
		config: cfg,
		log:    log.WithComponent("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(middleware.RouteLabel())

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Engine returns the Gin engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Group creates a route group on the engine.
func (s *Server) Group(prefix string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return s.engine.Group(prefix, handlers...)
}

// SetupMiddlewares installs the standard stack in order: recovery, request
// id, telemetry, CORS, body size limit and request logging. extra
// middleware runs innermost, after request logging. metrics may be nil.
func (s *Server) SetupMiddlewares(metrics *observability.Metrics, extra ...middleware.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.middlewares = append(s.middlewares,
		middleware.Recovery(s.log),
		middleware.RequestID(),
		middleware.Telemetry(metrics),
		middleware.CORS(&s.config.CORS),
	)
	if limit := s.config.MaxBodyBytes(); limit > 0 {
		s.middlewares = append(s.middlewares, middleware.BodySizeLimit(limit))
	}
	s.middlewares = append(s.middlewares, middleware.RequestLogger(s.log))
	s.middlewares = append(s.middlewares, extra...)
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	mws := append([]middleware.Middleware(nil), s.middlewares...)
	s.mu.Unlock()

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	}
	return h2c.NewHandler(middleware.Chain(mws...)(s.engine), h2s)
}

// Start binds the port and begins serving. It returns once the listener is
// bound; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}

	s.httpServer.Handler = s.Handler()

	s.mu.Lock()
	s.listenAddr = listener.Addr().String()
	s.running = true
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.log.Info("HTTP server started", map[string]interface{}{
		"addr": listener.Addr().String(),
	})
	return nil
}

// Stop gracefully shuts down the server within ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	if err != nil {
		s.log.Error("Server shutdown error", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.log.Info("HTTP server shut down successfully")
	return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listenAddr != "" {
		return s.listenAddr
	}
	return s.httpServer.Addr
}

// Running reports whether the server is serving.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RegisterDefaultEndpoints registers /health, /alive, /ready and /info.
func (s *Server) RegisterDefaultEndpoints(serviceName, serviceVersion string, checker endpoint.HealthChecker) {
	s.engine.GET("/health", endpoint.Health(serviceName, checker))
	s.engine.GET("/alive", endpoint.Liveness(serviceName))
	s.engine.GET("/ready", endpoint.Readiness(serviceName, checker))
	s.engine.GET("/info", endpoint.Info(serviceName, serviceVersion))
}
