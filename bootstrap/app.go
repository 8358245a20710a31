package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kbukum/appcore/component"
	"github.com/kbukum/appcore/config"
	"github.com/kbukum/appcore/logger"
)

// App owns the component registry and runs the service lifecycle.
type App struct {
	Name       string
	Version    string
	Settings   *config.Settings
	Components *component.Registry
	Logger     *logger.Logger
	Summary    *Summary

	gracefulTimeout time.Duration
	ownsLogger      bool

	lifespan LifespanFunc
	onStart  []Hook
	onReady  []Hook
	onStop   []Hook

	mu       sync.Mutex
	teardown Hook
	stopped  bool
}

// NewApp validates settings, initializes the logger and creates the
// component registry.
func NewApp(settings *config.Settings, opts ...Option) (*App, error) {
	if settings == nil {
		return nil, errors.New("bootstrap: settings are required")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := resolveOptions(opts)

	app := &App{
		Name:            settings.App.Name,
		Version:         settings.App.Version,
		Settings:        settings,
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		l, err := logger.Init(settings.Logging)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		app.Logger = l
		app.ownsLogger = true
	}

	app.Components = component.NewRegistry(app.Logger)
	app.Summary = NewSummary(app.Name, app.Version)
	if o.summaryOut != nil {
		app.Summary.SetOutput(o.summaryOut)
	}
	return app, nil
}

// RegisterComponent adds a component. Components start in registration
// order and stop in reverse.
func (a *App) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// ReadyCheck returns an error listing every unhealthy component. Degraded
// components count as ready.
func (a *App) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.Unhealthy(ctx) {
		detail := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			detail += "(" + h.Message + ")"
		}
		unhealthy = append(unhealthy, detail)
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %s", strings.Join(unhealthy, ", "))
	}
	return nil
}

// Run starts the application, blocks until SIGINT/SIGTERM or ctx is done,
// then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.Shutdown(context.Background())
}

// RunTask runs a finite task inside the same lifecycle. The task context is
// canceled on SIGINT/SIGTERM. The task error wins over a shutdown error.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	taskCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	taskErr := task(taskCtx)

	if stopErr := a.Shutdown(context.Background()); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

// Start runs the startup sequence: components, OnStart hooks, lifespan,
// ready check, OnReady hooks and the summary. On failure everything that
// already started is shut down before the error is returned.
func (a *App) Start(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		if stopErr := a.Shutdown(context.Background()); stopErr != nil {
			a.Logger.Error("Shutdown after failed startup reported errors", map[string]interface{}{
				"error": stopErr.Error(),
			})
		}
		return err
	}
	return nil
}

func (a *App) startup(ctx context.Context) error {
	start := time.Now()

	a.Logger.Info("Starting application", map[string]interface{}{
		"name":    a.Name,
		"version": a.Version,
	})

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	if a.lifespan != nil {
		teardown, err := a.lifespan(ctx, a)
		a.mu.Lock()
		a.teardown = teardown
		a.mu.Unlock()
		if err != nil {
			return fmt.Errorf("lifespan startup failed: %w", err)
		}
	}

	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.Summary.Display(ctx, a.Components)
	return nil
}

// WaitForSignal blocks until SIGINT/SIGTERM or ctx cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal, graceful shutdown starting", map[string]interface{}{
			"signal": sig.String(),
		})
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown runs the lifespan teardown, the OnStop hooks and stops the
// components, all within the graceful timeout. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	teardown := a.teardown
	a.teardown = nil
	a.mu.Unlock()

	a.Logger.Info("Shutting down application", map[string]interface{}{
		"timeout": a.gracefulTimeout.String(),
	})

	ctx, cancel := context.WithTimeout(ctx, a.gracefulTimeout)
	defer cancel()

	var errs []error

	if teardown != nil {
		if err := teardown(ctx); err != nil {
			a.Logger.Error("Lifespan teardown error", map[string]interface{}{
				"error": err.Error(),
			})
			errs = append(errs, fmt.Errorf("lifespan teardown: %w", err))
		}
	}

	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", map[string]interface{}{
			"error": err.Error(),
		})
		errs = append(errs, err)
	}

	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("Shutdown completed with errors", map[string]interface{}{
			"error": err.Error(),
		})
		errs = append(errs, err)
	}

	a.Logger.Info("Application shutdown complete")
	if a.ownsLogger {
		_ = a.Logger.Close()
	}
	return errors.Join(errs...)
}
