package logger

import (
  "fmt"

  "go.uber.org/zap"
)

// Logger is a thin key/value facade over zap's sugared logger so callers
// never import zap directly.
type Logger struct {
  sugar *zap.SugaredLogger
}

// New builds a Logger for the given mode: "production" for JSON output,
// anything else for the human-readable development config.
func New(mode string) (*Logger, error) {
  var (
    zl  *zap.Logger
    err error
  )
  switch mode {
  case "production":
    zl, err = zap.NewProduction()
  default:
    zl, err = zap.NewDevelopment()
  }
  if err != nil {
    return nil, fmt.Errorf("failed to build zap logger: %w", err)
  }
  return &Logger{sugar: zl.Sugar()}, nil
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
  return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
  l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
  l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
  l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
  l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) Sync() error {
  return l.sugar.Sync()
}
