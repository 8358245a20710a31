package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/appcore/component"
	"github.com/kbukum/appcore/config"
	"github.com/kbukum/appcore/logger"
)

// recorder collects lifecycle events in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.events, ",")
}

type mockComponent struct {
	name     string
	rec      *recorder
	startErr error
	stopErr  error
	status   component.HealthStatus
}

func (m *mockComponent) Name() string { return m.name }

func (m *mockComponent) Start(context.Context) error {
	m.rec.add("start:" + m.name)
	return m.startErr
}

func (m *mockComponent) Stop(context.Context) error {
	m.rec.add("stop:" + m.name)
	return m.stopErr
}

func (m *mockComponent) Health(context.Context) component.Health {
	status := m.status
	if status == "" {
		status = component.StatusHealthy
	}
	return component.Health{Name: m.name, Status: status}
}

func (m *mockComponent) Describe() component.Description {
	return component.Description{Type: "mock", Details: "in-memory"}
}

func testSettings() *config.Settings {
	s := config.DefaultSettings()
	s.App.Name = "test-svc"
	s.App.Version = "1.0.0"
	s.Logging.DisableFile = true
	return &s
}

func newTestApp(t *testing.T, opts ...Option) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts = append([]Option{WithLogger(logger.NewNop()), WithSummaryOutput(&out)}, opts...)
	app, err := NewApp(testSettings(), opts...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app, &out
}

func TestNewApp(t *testing.T) {
	app, _ := newTestApp(t)
	if app.Name != "test-svc" || app.Version != "1.0.0" {
		t.Errorf("unexpected identity %s %s", app.Name, app.Version)
	}
	if app.Components == nil || app.Logger == nil || app.Summary == nil {
		t.Error("expected registry, logger and summary")
	}
	if app.gracefulTimeout != 15*time.Second {
		t.Errorf("expected 15s default timeout, got %v", app.gracefulTimeout)
	}
}

func TestNewAppValidatesSettings(t *testing.T) {
	s := testSettings()
	s.App.Environment = "qa"
	if _, err := NewApp(s, WithLogger(logger.NewNop())); err == nil {
		t.Error("expected validation error")
	}
	if _, err := NewApp(nil); err == nil {
		t.Error("expected error for nil settings")
	}
}

func TestNewAppInitializesLogger(t *testing.T) {
	prev := logger.GetGlobalLogger()
	defer logger.SetGlobalLogger(prev)

	s := testSettings()
	s.Logging.DisableStream = false
	app, err := NewApp(s, WithSummaryOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if app.Logger != logger.GetGlobalLogger() {
		t.Error("expected the app logger to be installed globally")
	}
	if app.Logger.Name() != s.Logging.LoggerName {
		t.Errorf("expected logger %q, got %q", s.Logging.LoggerName, app.Logger.Name())
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app, _ := newTestApp(t, WithGracefulTimeout(30*time.Second))
	if app.gracefulTimeout != 30*time.Second {
		t.Errorf("expected 30s, got %v", app.gracefulTimeout)
	}
}

func TestLifecycleOrder(t *testing.T) {
	rec := &recorder{}
	app, out := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "db", rec: rec})
	_ = app.RegisterComponent(&mockComponent{name: "http", rec: rec})

	app.OnStart(func(context.Context) error { rec.add("onStart"); return nil })
	app.OnReady(func(context.Context) error { rec.add("onReady"); return nil })
	app.OnStop(func(context.Context) error { rec.add("onStop"); return nil })
	app.Lifespan(func(ctx context.Context, a *App) (Hook, error) {
		rec.add("lifespan")
		return func(context.Context) error {
			rec.add("teardown")
			return nil
		}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "start:db,start:http,onStart,lifespan,onReady,teardown,onStop,stop:http,stop:db"
	if got := rec.String(); got != want {
		t.Errorf("lifecycle order\n got: %s\nwant: %s", got, want)
	}
	if !strings.Contains(out.String(), "test-svc v1.0.0 started") {
		t.Errorf("summary missing header: %s", out.String())
	}
	if !strings.Contains(out.String(), "[mock] db: in-memory") {
		t.Errorf("summary missing infrastructure: %s", out.String())
	}
}

func TestLifespanFailureRunsTeardownAndStops(t *testing.T) {
	rec := &recorder{}
	app, _ := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "db", rec: rec})
	app.Lifespan(func(context.Context, *App) (Hook, error) {
		return func(context.Context) error {
			rec.add("teardown")
			return nil
		}, errors.New("migration check failed")
	})

	err := app.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "migration check failed") {
		t.Fatalf("expected lifespan error, got %v", err)
	}
	if got := rec.String(); got != "start:db,teardown,stop:db" {
		t.Errorf("unexpected events %s", got)
	}
}

func TestComponentStartFailureStopsStarted(t *testing.T) {
	rec := &recorder{}
	app, _ := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "db", rec: rec})
	_ = app.RegisterComponent(&mockComponent{name: "redis", rec: rec, startErr: errors.New("refused")})
	_ = app.RegisterComponent(&mockComponent{name: "http", rec: rec})

	lifespanRan := false
	app.Lifespan(func(context.Context, *App) (Hook, error) {
		lifespanRan = true
		return nil, nil
	})

	if err := app.Run(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if lifespanRan {
		t.Error("lifespan must not run when components fail to start")
	}
	if got := rec.String(); got != "start:db,start:redis,stop:db" {
		t.Errorf("unexpected events %s", got)
	}
}

func TestHookErrorStopsExecution(t *testing.T) {
	rec := &recorder{}
	app, _ := newTestApp(t)
	app.OnStart(
		func(context.Context) error { rec.add("first"); return errors.New("boom") },
		func(context.Context) error { rec.add("second"); return nil },
	)
	err := app.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "hook 0 failed") {
		t.Fatalf("expected hook error, got %v", err)
	}
	if rec.String() != "first" {
		t.Errorf("second hook should not run, got %s", rec.String())
	}
}

func TestShutdownCollectsErrors(t *testing.T) {
	rec := &recorder{}
	app, _ := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "db", rec: rec, stopErr: errors.New("close failed")})
	app.Lifespan(func(context.Context, *App) (Hook, error) {
		return func(context.Context) error { return errors.New("flush failed") }, nil
	})

	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := app.Shutdown(context.Background())
	if err == nil {
		t.Fatal("expected shutdown error")
	}
	for _, want := range []string{"flush failed", "close failed"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown should be a no-op, got %v", err)
	}
}

func TestReadyCheck(t *testing.T) {
	rec := &recorder{}
	app, _ := newTestApp(t)
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Errorf("empty registry should be ready: %v", err)
	}

	_ = app.RegisterComponent(&mockComponent{name: "cache", rec: rec, status: component.StatusDegraded})
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Errorf("degraded should count as ready: %v", err)
	}

	_ = app.RegisterComponent(&mockComponent{name: "db", rec: rec, status: component.StatusUnhealthy})
	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "db=unhealthy") {
		t.Errorf("expected db in error, got %v", err)
	}
}

func TestRunTask(t *testing.T) {
	rec := &recorder{}
	app, _ := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "db", rec: rec})

	err := app.RunTask(context.Background(), func(context.Context) error {
		rec.add("task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if got := rec.String(); got != "start:db,task,stop:db" {
		t.Errorf("unexpected events %s", got)
	}
}

func TestRunTaskErrorWins(t *testing.T) {
	rec := &recorder{}
	app, _ := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "db", rec: rec, stopErr: errors.New("stop failed")})

	taskErr := errors.New("task failed")
	err := app.RunTask(context.Background(), func(context.Context) error { return taskErr })
	if !errors.Is(err, taskErr) {
		t.Errorf("expected task error, got %v", err)
	}
}

func TestRunTaskCancellation(t *testing.T) {
	app, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := app.RunTask(ctx, func(taskCtx context.Context) error {
		cancel()
		<-taskCtx.Done()
		return taskCtx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
