// Package logger provides structured logging capabilities.
//
// The logger package builds the application's zap logger from
// configuration and adapts it for fx lifecycle events. Logs go to stderr
// unless configured otherwise, since the stdio transport owns stdout.
//
// Usage:
//
//	log, err := logger.New("production", "info", logger.WithOutput("/var/log/tablegen.log"))
//	if err != nil {
//	    return err
//	}
//	log.Info("pipeline run started", zap.String("run_id", id))
package logger
