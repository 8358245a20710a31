// Package redis wraps go-redis with the service's logging, REDIS_*
// settings and component lifecycle.
//
// TypedStore stores JSON values under a key prefix:
//
//	store := redis.NewTypedStore[Status](client, "status")
//	_ = store.Save(ctx, "latest", &s, time.Minute)
//	got, err := store.Load(ctx, "latest") // nil, nil when missing
package redis
