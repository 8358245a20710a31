// Package server provides the HTTP application: a Gin engine served through
// h2c, the standard middleware stack, probe endpoints and generated API
// documentation.
//
// # Middleware
//
// SetupMiddlewares installs, outermost first:
//
//   - Recovery: panics become a 500 AppError
//   - RequestID: X-Request-Id generation and propagation
//   - Telemetry: server spans and HTTP metrics
//   - CORS
//   - BodySizeLimit: from SERVER_MAX_BODY_SIZE
//   - RequestLogger
//
// DBSession is a gin handler and is attached per route group.
//
// # Endpoints
//
//   - /health: component health aggregation
//   - /alive: liveness probe
//   - /ready: readiness probe
//   - /info: service and build information
//   - {prefix}/openapi.json, {prefix}/docs, {prefix}/redoc: API docs
package server
