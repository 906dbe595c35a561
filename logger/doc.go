// Package logger provides structured logging for the SDK runtime using
// zerolog.
//
// Components obtain a scoped logger with Get("orchestrator") or
// WithComponent and log with field maps built by Fields:
//
//	log := logger.Get("retries")
//	log.Debug("retrying request", logger.Fields(logger.FieldAttempt, 2))
//
// The invocation ID of the current operation is carried in the context and
// attached by WithContext.
package logger
