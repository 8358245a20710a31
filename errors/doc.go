// Package errors defines AppError, the error type appcore returns across
// package boundaries. An AppError carries a machine-readable code, the HTTP
// status it maps to, and whether a caller may retry.
package errors
