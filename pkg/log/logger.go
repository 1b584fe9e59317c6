package log

import (
	"fmt"
	stdlog "log"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a logger which writes structured logs to stderr formatted as
// JSON.
//
// Records are filtered by level, though the level filter may be overridden
// per subsystem, so only logs whose level exceeds the configured minimum
// level or whose subsystem is explicitly enabled are logged.
type Logger interface {
	Subsystem() string
	// WithSubsystem creates a new logger with the given subsystem.
	WithSubsystem(s string) Logger
	// With creates a new logger with the given fields.
	With(fields ...zap.Field) Logger
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Sync() error
	// StdLogger returns a standard library log.Logger that writes records
	// with the given level.
	StdLogger(level zapcore.Level) *stdlog.Logger
}

type logger struct {
	// core accepts all levels; level filtering happens in check so that
	// enabled subsystems can bypass it.
	core  zapcore.Core
	level zapcore.Level

	subsystem         string
	subsystemEnabled  bool
	enabledSubsystems []string
}

// NewLogger creates a logger filtering using the given log level and
// enabled subsystems.
func NewLogger(lvl string, enabledSubsystems []string) (Logger, error) {
	zapLevel, err := zapLevelFromString(lvl)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	// Use the logger name for 'subsystem'.
	encoderConfig.NameKey = "subsystem"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(
		"2006-01-02T15:04:05.999Z07:00",
	)

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(zapcore.DebugLevel),
	)
	return &logger{
		core:  core,
		level: zapLevel,
		// Use 'main' as the default subsystem.
		subsystem:         "main",
		subsystemEnabled:  subsystemMatch("main", enabledSubsystems),
		enabledSubsystems: enabledSubsystems,
	}, nil
}

func (l *logger) Subsystem() string {
	return l.subsystem
}

func (l *logger) WithSubsystem(s string) Logger {
	if s == l.subsystem {
		return l
	}

	clone := l.clone()
	clone.subsystem = s
	clone.subsystemEnabled = subsystemMatch(s, clone.enabledSubsystems)
	return clone
}

func (l *logger) With(fields ...zap.Field) Logger {
	if len(fields) == 0 {
		return l
	}
	clone := l.clone()
	clone.core = clone.core.With(fields)
	return clone
}

func (l *logger) Debug(msg string, fields ...zap.Field) {
	if ce := l.check(zap.DebugLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

func (l *logger) Info(msg string, fields ...zap.Field) {
	if ce := l.check(zap.InfoLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

func (l *logger) Warn(msg string, fields ...zap.Field) {
	if ce := l.check(zap.WarnLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

func (l *logger) Error(msg string, fields ...zap.Field) {
	if ce := l.check(zap.ErrorLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

func (l *logger) Sync() error {
	return l.core.Sync()
}

func (l *logger) StdLogger(level zapcore.Level) *stdlog.Logger {
	return stdlog.New(&loggerWriter{
		logFunc: func(msg string, fields ...zap.Field) {
			if ce := l.check(level, msg); ce != nil {
				ce.Write(fields...)
			}
		},
	}, "", 0)
}

func (l *logger) clone() *logger {
	clone := *l
	return &clone
}

func (l *logger) check(lvl zapcore.Level, msg string) *zapcore.CheckedEntry {
	// Only filter by log level if the subsystem isn't enabled.
	if !l.subsystemEnabled && lvl < l.level {
		return nil
	}

	ent := zapcore.Entry{
		// The logger name is encoded as the 'subsystem' field.
		LoggerName: l.subsystem,
		Time:       time.Now(),
		Level:      lvl,
		Message:    msg,
	}
	return l.core.Check(ent, nil)
}

type loggerWriter struct {
	logFunc func(msg string, fields ...zap.Field)
}

func (w *loggerWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 && p[len(p)-1] == '\n' {
		p = p[:len(p)-1]
	}
	w.logFunc(string(p))
	return n, nil
}

type nopLogger struct {
}

// NewNopLogger creates a logger that discards all records.
func NewNopLogger() Logger {
	return &nopLogger{}
}

func (l *nopLogger) Subsystem() string {
	return ""
}

func (l *nopLogger) WithSubsystem(_ string) Logger {
	return l
}

func (l *nopLogger) With(_ ...zap.Field) Logger {
	return l
}

func (l *nopLogger) Debug(_ string, _ ...zap.Field) {
}

func (l *nopLogger) Info(_ string, _ ...zap.Field) {
}

func (l *nopLogger) Warn(_ string, _ ...zap.Field) {
}

func (l *nopLogger) Error(_ string, _ ...zap.Field) {
}

func (l *nopLogger) Sync() error {
	return nil
}

func (l *nopLogger) StdLogger(_ zapcore.Level) *stdlog.Logger {
	return stdlog.New(&loggerWriter{
		logFunc: func(_ string, _ ...zap.Field) {},
	}, "", 0)
}

func subsystemMatch(subsystem string, enabled []string) bool {
	for _, s := range enabled {
		if subsystem == s {
			return true
		}
	}
	return false
}

func zapLevelFromString(s string) (zapcore.Level, error) {
	switch s {
	case "debug":
		return zap.DebugLevel, nil
	case "info":
		return zap.InfoLevel, nil
	case "warn":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zapcore.Level(0), fmt.Errorf("unsupported level: %s", s)
	}
}
