package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logFile *os.File
	once    sync.Once
)

func logDir() string {
	return filepath.Join(os.TempDir(), "seisetup")
}

func getLogFile() (*os.File, error) {
	var err error
	once.Do(func() {
		if err = os.MkdirAll(logDir(), 0o755); err != nil {
			err = fmt.Errorf("failed to create log directory: %w", err)
			return
		}

		timestamp := time.Now().Format("2006-01-02-15-04-05")
		logPath := filepath.Join(logDir(), fmt.Sprintf("seisetup-%s.log", timestamp))

		logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			err = fmt.Errorf("failed to open log file: %w", err)
			return
		}
	})

	return logFile, err
}

// Close flushes and closes the run's log file.
func Close() {
	if logFile != nil {
		logFile.Sync()
		logFile.Close()
	}
}

// DefaultLogger returns a logger writing to stdout and to a timestamped file
// under the system temp directory. DEV_LOGGING=true switches to the
// development console encoder at debug level. If the log file cannot be
// created the logger falls back to stdout only.
func DefaultLogger(options ...zap.Option) (*zap.Logger, error) {
	var encoder zapcore.Encoder
	var logLevel zapcore.Level

	if os.Getenv("DEV_LOGGING") == "true" {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		logLevel = zap.DebugLevel
	} else {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		logLevel = zap.InfoLevel
	}

	logFile, err := getLogFile()
	if err != nil {
		return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), logLevel), options...), nil
	}

	stdoutCore := zapcore.NewCore(
		encoder,
		zapcore.AddSync(os.Stdout),
		logLevel,
	)

	fileCore := zapcore.NewCore(
		encoder,
		zapcore.AddSync(logFile),
		logLevel,
	)

	core := zapcore.NewTee(stdoutCore, fileCore)

	return zap.New(core, options...), nil
}
