// Command appcore runs the HTTP service: settings from the environment,
// a Postgres session per API request, optional Redis, and OpenTelemetry
// export when enabled.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kbukum/appcore/bootstrap"
	"github.com/kbukum/appcore/config"
	"github.com/kbukum/appcore/database"
	"github.com/kbukum/appcore/observability"
	"github.com/kbukum/appcore/redis"
	"github.com/kbukum/appcore/server"
)

const serviceName = "appcore"

func main() {
	settings, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load settings: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.NewApp(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap: %v\n", err)
		os.Exit(1)
	}

	if err := wire(app); err != nil {
		app.Logger.Error("Wiring failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	if err := app.Run(context.Background()); err != nil {
		app.Logger.Error("Application exited with error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

// wire registers components in start order: telemetry first so the
// providers exist before anything records, the HTTP server last so it only
// accepts traffic once its dependencies are up.
func wire(app *bootstrap.App) error {
	s := app.Settings
	log := app.Logger

	telemetry, err := observability.NewComponent(s.Telemetry, s.ServiceInfo(), log)
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(telemetry); err != nil {
		return err
	}

	db := database.NewComponent(s.Postgres, log, database.WithMetrics(telemetry.Metrics()))
	if err := app.RegisterComponent(db); err != nil {
		return err
	}

	var cache *redis.Component
	if s.Redis.Enabled {
		cache = redis.NewComponent(s.Redis, log)
		if err := app.RegisterComponent(cache); err != nil {
			return err
		}
	}

	srv := server.New(s.Server, log, server.WithDebug(s.App.Debug))
	routes := &routes{
		settings: s,
		log:      log,
		metrics:  telemetry.Metrics(),
		sessions: db.SessionMaker(),
		cache:    cache,
		health:   app.Components.HealthAll,
	}
	routes.register(srv)
	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return err
	}

	app.Lifespan(func(ctx context.Context, _ *bootstrap.App) (bootstrap.Hook, error) {
		return startupCheck(ctx, db.Manager(), cache, s.App.Version, log)
	})
	return nil
}
