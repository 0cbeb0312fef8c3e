// Package logger provides the process-wide run logger for shift-runner.
//
// The API is package-level so that every layer (session bootstrap, waits,
// pages, flows) can log without threading a logger through constructors.
// Until Init is called all calls are no-ops.
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.SugaredLogger
	logFile      *os.File
	mu           sync.Mutex
)

// Options controls where log output goes.
type Options struct {
	// Path is the log file. Empty disables the file sink.
	Path string
	// Console tees output to stderr.
	Console bool
	// Debug enables debug level.
	Debug bool
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	return InitWithOptions(Options{Path: logPath, Debug: true})
}

// InitWithOptions initializes the global logger.
func InitWithOptions(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	var cores []zapcore.Core
	if opts.Path != "" {
		f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(f), level))
	}
	if opts.Console {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level))
	}
	if len(cores) == 0 {
		return nil
	}

	globalLogger = zap.New(zapcore.NewTee(cores...)).Sugar()
	return nil
}

// InitWithCore installs a logger built on an existing zap core. Tests use
// this with zaptest/observer.
func InitWithCore(core zapcore.Core) {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()
	globalLogger = zap.New(core).Sugar()
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()
}

func closeLocked() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
		globalLogger = nil
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func current() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.Infof(format, v...)
	}
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.Debugf(format, v...)
	}
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.Errorf(format, v...)
	}
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.Warnf(format, v...)
	}
}
