package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger. Pretty selects the human-readable
// development encoder; otherwise output is JSON.
func New(level string, pretty bool, app string) (*zap.Logger, error) {
	var cfg zap.Config
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl := new(zapcore.Level)
	if err := lvl.Set(level); err != nil {
		*lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(*lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build(zap.Fields(zap.String("service", app)))
}
