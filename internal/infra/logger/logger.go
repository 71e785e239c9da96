// Package logger is a centralized zap wrapper for the whole application. It
// initializes the log level and encoder and can retarget output streams
// (stdout/stderr) at runtime. Uses zap.AtomicLevel for dynamic level changes
// and a mutex for thread safety.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu sync.Mutex
	// log is the current *zap.Logger used throughout the application.
	log *zap.Logger
	// enabled switches between the real core and zap.NewNop(); false turns
	// logging into a genuine no-op rather than just filtering by level.
	enabled = true
	// logLevel is the dynamic log level, changed without rebuilding the core.
	logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	// encoderCfg holds the message formatting settings, refreshed on Init.
	encoderCfg = defaultEncoderConfig()
	// stdoutWriter/stderrWriter are the logger's current output streams.
	stdoutWriter = zapcore.Lock(zapcore.AddSync(os.Stdout))
	stderrWriter = zapcore.Lock(zapcore.AddSync(os.Stderr))
	// fileSink is an optional rotating file sink, set via SetFileSink.
	fileSink zapcore.WriteSyncer
)

// defaultEncoderConfig builds a console encoder with colored levels and a
// short caller. Time format is fixed (YYYY-MM-DD HH:MM:SS).
func defaultEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// rebuildLoggerLocked rebuilds the global logger from the current writer and
// level settings. Caller must already hold mu. AddCallerSkip(1) hides the
// logger.* wrapper functions from the caller stack; the previous logger is
// Sync()'d before being replaced.
func rebuildLoggerLocked() {
	if !enabled {
		if log != nil {
			_ = log.Sync()
		}
		log = zap.NewNop()
		return
	}

	writer := stdoutWriter
	if fileSink != nil {
		writer = zapcore.NewMultiWriteSyncer(stdoutWriter, fileSink)
	}

	encoder := zapcore.NewConsoleEncoder(encoderCfg)
	core := zapcore.NewCore(encoder, writer, logLevel)
	if log != nil {
		_ = log.Sync()
	}
	log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.ErrorOutput(stderrWriter))
}

// Init initializes the global zap logger and sets its level and enabled
// state. Valid levels: debug, info (default), warn, error, matched
// case-insensitively. enabledFlag=false swaps the core to zap.NewNop()
// entirely rather than merely filtering by level, matching the Logger
// Facade's "no-op when disabled" requirement. Thread-safe.
func Init(level string, enabledFlag bool) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enabledFlag

	switch strings.ToLower(level) {
	case "debug":
		logLevel.SetLevel(zap.DebugLevel)
	case "warn":
		logLevel.SetLevel(zap.WarnLevel)
	case "error":
		logLevel.SetLevel(zap.ErrorLevel)
	default:
		logLevel.SetLevel(zap.InfoLevel)
	}

	encoderCfg = defaultEncoderConfig()
	rebuildLoggerLocked()
}

// SetFileSink adds a rotating file sink via lumberjack alongside stdout. An
// empty path is a no-op (stdout only). Thread-safe, callable at runtime.
func SetFileSink(path string, maxSizeMB, maxBackups, maxAgeDays int) {
	mu.Lock()
	defer mu.Unlock()

	if path == "" {
		fileSink = nil
		rebuildLoggerLocked()
		return
	}

	fileSink = zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	})
	rebuildLoggerLocked()
}

// SetWriters retargets the logger's output streams and rebuilds the core.
// Callable at runtime (e.g. to route output through the CLI console). A nil
// argument resets that stream to its os.Stdout/os.Stderr default.
func SetWriters(stdout, stderr io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if stdout == nil {
		stdoutWriter = zapcore.Lock(zapcore.AddSync(os.Stdout))
	} else {
		stdoutWriter = zapcore.Lock(zapcore.AddSync(stdout))
	}
	if stderr == nil {
		stderrWriter = zapcore.Lock(zapcore.AddSync(os.Stderr))
	} else {
		stderrWriter = zapcore.Lock(zapcore.AddSync(stderr))
	}

	rebuildLoggerLocked()
}

// Logger returns the current *zap.Logger, lazily building it on first use.
// This is the raw (non-sugared) API; prefer structured zap.Field arguments.
func Logger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	if log == nil {
		rebuildLoggerLocked()
	}
	return log
}

// IsDebugEnabled reports whether the debug level is currently enabled.
func IsDebugEnabled() bool {
	return Logger().Level() <= zap.DebugLevel
}

// Debug logs a structured message at Debug level.
func Debug(msg string, fields ...zap.Field) { Logger().Debug(msg, fields...) }

// Info logs a structured message at Info level.
func Info(msg string, fields ...zap.Field) { Logger().Info(msg, fields...) }

// Warn logs a structured message at Warn level.
func Warn(msg string, fields ...zap.Field) { Logger().Warn(msg, fields...) }

// Error logs a structured message at Error level.
func Error(msg string, fields ...zap.Field) { Logger().Error(msg, fields...) }

// Fatal logs a structured message at Fatal level and exits the process.
func Fatal(msg string, fields ...zap.Field) {
	Logger().Fatal(msg, fields...)
	_ = Logger().Sync()
	os.Exit(1)
}

// Debugf formats msg via fmt.Sprintf. Prefer the structured-field variants
// on hot paths; formatting always allocates.
func Debugf(msg string, a ...any) { Logger().Debug(fmt.Sprintf(msg, a...)) }

// Infof formats msg via fmt.Sprintf.
func Infof(msg string, a ...any) { Logger().Info(fmt.Sprintf(msg, a...)) }

// Warnf formats msg via fmt.Sprintf.
func Warnf(msg string, a ...any) { Logger().Warn(fmt.Sprintf(msg, a...)) }

// Errorf formats msg via fmt.Sprintf.
func Errorf(msg string, a ...any) { Logger().Error(fmt.Sprintf(msg, a...)) }
