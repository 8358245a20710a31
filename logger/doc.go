// Package logger provides structured logging for appcore using zerolog.
//
// A Logger writes to a stream (console or JSON on stdout) and to a log file
// under the configured directory. The file is rotated every LOGGING_INTERVAL
// days and LOGGING_BACKUP_COUNT rotated files are kept.
//
//	log, err := logger.New(cfg)
//	defer log.Close()
//	log.WithComponent("database").Info("pool ready", logger.Fields("size", 10))
package logger
