// Package logging wraps log/slog with the helpers the rest of the service
// uses: JSON loggers configured from LOG_LEVEL, request ID enrichment, and
// carrying a logger through a context.
//
//	logger := logging.NewLogger()
//	logger = logging.WithRequestID(ctx, logger)
//	logger.Info("analysis queued", slog.String("task_id", taskID))
package logging
