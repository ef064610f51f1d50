// Package logging provides structured, context-aware logging for crewd.
//
// It wraps go.uber.org/zap with:
//   - A Trace level below Debug for ultra-verbose output
//   - Correlation fields pulled from context (project, workflow run,
//     OpenTelemetry trace/span IDs)
//   - Named child loggers per component
//   - Test helpers backed by zap's observer core
//
// Construction:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig())
//	if err != nil { ... }
//	defer logger.Sync()
//
//	ctx = logging.WithProject(ctx, "calculator")
//	logger.Info(ctx, "workflow started", zap.Int("steps", 4))
//
// Components that take a plain *zap.Logger should receive
// logger.Underlying().
package logging
