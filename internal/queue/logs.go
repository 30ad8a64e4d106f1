package queue

import (
	"context"

	"github.com/mediapruner/queue/pkg/logger"
)

// logSink writes one diagnostic entry to both the process-wide structured
// logger and the durable logs table, so history outlives the
// console/Axiom stream. No HTTP route in this module reads the table.
type logSink struct {
	store      Store
	loggerName string
}

func newLogSink(store Store, loggerName string) *logSink {
	return &logSink{store: store, loggerName: loggerName}
}

func (s *logSink) info(ctx context.Context, message, module, function string) {
	s.emit(ctx, LogInfo, message, module, function, "")
}

func (s *logSink) warn(ctx context.Context, message, module, function string) {
	s.emit(ctx, LogWarning, message, module, function, "")
}

func (s *logSink) error(ctx context.Context, message, module, function, exception string) {
	s.emit(ctx, LogError, message, module, function, exception)
}

func (s *logSink) emit(ctx context.Context, level LogLevel, message, module, function, exception string) {
	data := map[string]interface{}{
		"logger": s.loggerName,
	}
	if module != "" {
		data["module"] = module
	}
	if function != "" {
		data["function"] = function
	}
	if exception != "" {
		data["exception"] = exception
	}

	switch level {
	case LogWarning:
		logger.Warn(message, data)
	case LogError:
		logger.Error(message, data)
	default:
		logger.Info(message, data)
	}

	if s.store == nil {
		return
	}
	_ = s.store.InsertLogEntry(ctx, LogEntry{
		Level:      level,
		LoggerName: s.loggerName,
		Message:    message,
		Module:     module,
		Function:   function,
		Exception:  exception,
	})
}
