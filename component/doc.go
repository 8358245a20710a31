// Package component defines lifecycle-managed infrastructure pieces
// (database, redis, telemetry, HTTP server) and the registry that starts
// them in order and stops them in reverse.
package component
