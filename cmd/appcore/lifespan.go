package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/appcore/bootstrap"
	"github.com/kbukum/appcore/database"
	"github.com/kbukum/appcore/logger"
	"github.com/kbukum/appcore/redis"
)

const startupKey = "instance"

// startupRecord is published to Redis while the instance runs.
type startupRecord struct {
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}

func startupStore(client *redis.Client) *redis.TypedStore[startupRecord] {
	return redis.NewTypedStore[startupRecord](client, "startup")
}

// startupCheck verifies the database through a full session scope and
// publishes the startup record when Redis is enabled. The returned hook
// removes the record on shutdown.
func startupCheck(ctx context.Context, m *database.ConnectionManager, cache *redis.Component, version string, log *logger.Logger) (bootstrap.Hook, error) {
	if m == nil {
		return nil, database.ErrManagerClosed
	}

	err := m.Session(ctx, func(s *database.Session) error {
		var one int
		return s.DB().Raw("SELECT 1").Scan(&one).Error
	})
	if err != nil {
		return nil, err
	}
	log.Info("Database startup check passed")

	if cache == nil || cache.Client() == nil {
		return nil, nil
	}

	store := startupStore(cache.Client())
	rec := &startupRecord{Version: version, StartedAt: time.Now().UTC()}
	if err := store.Save(ctx, startupKey, rec, 0); err != nil {
		return nil, fmt.Errorf("publish startup record: %w", err)
	}

	return func(ctx context.Context) error {
		return store.Delete(ctx, startupKey)
	}, nil
}
