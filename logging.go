package store

import (
	"context"
	"log/slog"
	"time"
)

// EvaluatorLogEvent describes an evaluation attempt for logging.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Path     string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

// UpdateLogEvent describes one Update call. Changed is empty for no-op
// updates and failed mutators. ActivityErr holds activity hook failures,
// which never fail the update.
type UpdateLogEvent struct {
	Revision    uint64
	SnapshotID  string
	Changed     []string
	Notified    int
	Duration    time.Duration
	Err         error
	ActivityErr error
}

// UpdateLogger records update events.
type UpdateLogger interface {
	LogUpdate(UpdateLogEvent)
}

// UpdateLoggerFunc adapts a function to UpdateLogger.
type UpdateLoggerFunc func(UpdateLogEvent)

// LogUpdate implements UpdateLogger.
func (f UpdateLoggerFunc) LogUpdate(event UpdateLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvaluation(EvaluatorLogEvent) {}

func (noopLogger) LogUpdate(UpdateLogEvent) {}

// SlogLogger writes update, evaluation and activity events to a slog.Logger.
// Successful events log at debug, activity hook failures at warn and update
// or evaluation failures at error.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps logger, falling back to slog.Default when nil.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// LogUpdate implements UpdateLogger.
func (l *SlogLogger) LogUpdate(event UpdateLogEvent) {
	attrs := []slog.Attr{
		slog.Uint64("revision", event.Revision),
		slog.Int("changed", len(event.Changed)),
		slog.Int("notified", event.Notified),
		slog.Duration("duration", event.Duration),
	}
	if event.SnapshotID != "" {
		attrs = append(attrs, slog.String("snapshot_id", event.SnapshotID))
	}
	if len(event.Changed) > 0 {
		attrs = append(attrs, slog.Any("paths", event.Changed))
	}
	if event.ActivityErr != nil {
		attrs = append(attrs, slog.String("activity_error", event.ActivityErr.Error()))
	}
	l.log("store.update", event.Err, event.ActivityErr, attrs)
}

// LogEvaluation implements EvaluatorLogger.
func (l *SlogLogger) LogEvaluation(event EvaluatorLogEvent) {
	attrs := []slog.Attr{
		slog.String("engine", event.Engine),
		slog.String("expr", event.Expr),
		slog.String("path", event.Path),
		slog.Duration("duration", event.Duration),
	}
	l.log("store.evaluate", event.Err, nil, attrs)
}

func (l *SlogLogger) log(msg string, err, warning error, attrs []slog.Attr) {
	if l == nil || l.logger == nil {
		return
	}
	level := slog.LevelDebug
	if warning != nil {
		level = slog.LevelWarn
	}
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// WithLogger routes update events to logger. A logger that also implements
// EvaluatorLogger receives evaluation events unless WithEvaluatorLogger
// overrides it.
func WithLogger(logger UpdateLogger) Option {
	return func(cfg *storeConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
		if evalLogger, ok := logger.(EvaluatorLogger); ok && cfg.evalLogger == nil {
			cfg.evalLogger = evalLogger
		}
	}
}

// WithEvaluatorLogger attaches an evaluator logger to the store.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *storeConfig) {
		if logger == nil {
			cfg.evalLogger = noopLogger{}
			return
		}
		cfg.evalLogger = logger
	}
}
