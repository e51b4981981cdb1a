// pkg/logger/logger.go
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.SugaredLogger

// Init builds the process-wide logger. Level and format come from the
// environment; text format uses a console encoder for local development.
func Init(level, format string) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.EqualFold(format, "text") {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig = encoderConfig
	if strings.EqualFold(format, "text") {
		cfg.Encoding = "console"
	}

	l, err := cfg.Build()
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	Logger = l.Sugar()
}

// L returns the process logger, initializing a default if Init was not called
// (keeps tests and one-off tools from panicking on a nil logger).
func L() *zap.SugaredLogger {
	if Logger == nil {
		Init("INFO", "text")
	}
	return Logger
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
