// Package logger holds the process-wide zap logger. Until InitLogger runs,
// Log discards everything, so packages and tests can log unconditionally.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var zapLogger *zap.Logger
var Log = zap.NewNop().Sugar()

// InitLogger installs a JSON logger on stderr at the LOG_LEVEL level.
// Stdout is left to command output.
func InitLogger() (*zap.SugaredLogger, error) {
	if zapLogger != nil {
		Log = zapLogger.Sugar()
		return Log, nil
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.LevelKey = "level"
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(GetZapLevelFromEnv()),
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zapLogger = l
	Log = zapLogger.Sugar()
	return Log, nil
}

// SetLogger replaces the global logger, e.g. with an observer in tests.
func SetLogger(l *zap.Logger) {
	zapLogger = l
	Log = l.Sugar()
}

func GetZapLevelFromEnv() zapcore.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SyncLogger flushes buffered entries.
func SyncLogger() {
	if Log != nil {
		_ = Log.Sync()
	}
}
