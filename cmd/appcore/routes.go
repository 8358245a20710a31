package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/appcore/config"
	"github.com/kbukum/appcore/database"
	"github.com/kbukum/appcore/logger"
	"github.com/kbukum/appcore/observability"
	"github.com/kbukum/appcore/redis"
	"github.com/kbukum/appcore/server"
	"github.com/kbukum/appcore/server/endpoint"
	"github.com/kbukum/appcore/server/middleware"
)

type routes struct {
	settings *config.Settings
	log      *logger.Logger
	metrics  *observability.Metrics
	sessions database.SessionMaker
	cache    *redis.Component
	health   endpoint.HealthChecker
}

// register installs middleware, system endpoints, docs and the API group.
func (r *routes) register(srv *server.Server) {
	app := r.settings.App

	srv.SetupMiddlewares(r.metrics)
	srv.RegisterDefaultEndpoints(app.Name, app.Version, r.health)

	api := srv.Group(app.APIPrefix, middleware.DBSession(r.sessions, r.log))
	api.GET("/status", r.status)

	srv.RegisterDocs(app.APIPrefix, server.DocsInfo{
		Title:       app.Name,
		Version:     app.Version,
		Description: "Service status API.",
	})
}

type statusResponse struct {
	Service     string     `json:"service"`
	Version     string     `json:"version"`
	Environment string     `json:"environment"`
	Database    string     `json:"database"`
	Redis       string     `json:"redis"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

// status runs SELECT 1 in the request session and pings Redis.
func (r *routes) status(c *gin.Context) {
	ctx := c.Request.Context()
	resp := statusResponse{
		Service:     r.settings.App.Name,
		Version:     r.settings.App.Version,
		Environment: r.settings.App.Environment,
		Redis:       "disabled",
	}

	var one int
	if err := middleware.SessionFrom(c).DB().Raw("SELECT 1").Scan(&one).Error; err != nil {
		_ = c.Error(err)
		server.RespondWithError(c, database.FromDatabase(err, "status"))
		return
	}
	resp.Database = "ok"

	if r.cache != nil {
		resp.Redis, resp.StartedAt = r.cacheStatus(ctx)
	}

	server.RespondOK(c, resp)
}

func (r *routes) cacheStatus(ctx context.Context) (string, *time.Time) {
	client := r.cache.Client()
	if client == nil {
		return "unavailable", nil
	}
	if err := client.Ping(ctx); err != nil {
		r.log.WithContext(ctx).Warn("Redis ping failed", map[string]interface{}{"error": err.Error()})
		return "unavailable", nil
	}

	rec, err := startupStore(client).Load(ctx, startupKey)
	if err != nil || rec == nil {
		return "ok", nil
	}
	return "ok", &rec.StartedAt
}
