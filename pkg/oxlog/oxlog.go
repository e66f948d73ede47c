// Package oxlog provides the structured logging facade used across this
// module, backed by go.uber.org/zap the way the teacher's own ambient
// packages lean on a single shared logging dependency rather than the
// standard library's log package.
package oxlog

import "go.uber.org/zap"

// Logger is the narrow logging surface consumed by the rest of the
// module; callers format with Printf-style verbs, matching the shape the
// teacher's own Logger interface exposes.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Sync() error
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a Logger at the given zap level name
// ("debug", "info", "warn", "error"). Unknown names default to "info".
func NewZapLogger(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: l.Sugar()}, nil
}

func (l *zapLogger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *zapLogger) Sync() error                              { return l.sugar.Sync() }

// Nop returns a Logger that discards everything, for tests and library
// callers that haven't configured logging.
func Nop() Logger { return &zapLogger{sugar: zap.NewNop().Sugar()} }
