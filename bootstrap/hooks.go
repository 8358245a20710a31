package bootstrap

import (
	"context"
	"fmt"
)

// Hook is a lifecycle callback that runs during startup or shutdown.
type Hook func(ctx context.Context) error

// LifespanFunc runs once all components have started. The returned Hook is
// the teardown; it runs first on shutdown, even when a later startup step
// fails. A nil teardown is allowed.
type LifespanFunc func(ctx context.Context, app *App) (Hook, error)

// Lifespan sets the lifespan function. Only one is kept.
func (a *App) Lifespan(fn LifespanFunc) {
	a.lifespan = fn
}

// OnStart registers a hook that runs after all components are started and
// before the lifespan function.
func (a *App) OnStart(hooks ...Hook) {
	a.onStart = append(a.onStart, hooks...)
}

// OnReady registers a hook that runs after the ready check.
func (a *App) OnReady(hooks ...Hook) {
	a.onReady = append(a.onReady, hooks...)
}

// OnStop registers a hook that runs during shutdown, after the lifespan
// teardown and before components stop.
func (a *App) OnStop(hooks ...Hook) {
	a.onStop = append(a.onStop, hooks...)
}

// runHooks executes hooks sequentially, returning the first error.
func runHooks(ctx context.Context, hooks []Hook) error {
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("hook %d failed: %w", i, err)
		}
	}
	return nil
}
