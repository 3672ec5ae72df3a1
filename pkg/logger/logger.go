package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base  *zap.Logger
	sugar *zap.SugaredLogger
)

// Init builds the process-wide logger. env picks the encoder: "dev" gets
// colored console output, anything else structured JSON with ISO-8601
// timestamps. Every entry carries the service name so aggregated logs can
// be filtered per deployment.
func Init(service, env, level string) {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.Fields(zap.String("service", service)),
	)
	if err != nil {
		panic("logger init: " + err.Error())
	}

	base = l
	sugar = l.Sugar()
	sugar.Infow("logger ready", "env", env, "level", level)
}

// L returns the structured logger for hot paths.
func L() *zap.Logger {
	if base == nil {
		Init("quicktrade", "dev", "info")
	}
	return base
}

// S returns the sugared logger.
func S() *zap.SugaredLogger {
	if sugar == nil {
		Init("quicktrade", "dev", "info")
	}
	return sugar
}

// Sync flushes buffered entries; defer it in main.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
