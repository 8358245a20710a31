// Package config loads the service Settings from defaults, an optional YAML
// file, an optional .env file and the process environment, in increasing
// order of precedence.
//
// Every setting maps to one environment variable: the section prefix plus
// the upper-cased key, with nested keys joined by underscores.
//
//	APP_NAME                      -> app.name
//	POSTGRES_POOL_SIZE            -> postgres.pool_size
//	SERVER_CORS_ALLOWED_ORIGINS   -> server.cors.allowed_origins
//	OTEL_SAMPLE_RATE              -> otel.sample_rate
//
// # Usage
//
//	settings, err := config.Load("appcore")
package config
