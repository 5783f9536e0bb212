package logger

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/orders/internal/config"
)

// Module exposes a configured Zap logger to the Fx container.
var Module = fx.Provide(New)

// New builds a production Zap logger; callers own the cleanup via Fx lifecycle.
func New(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	logger, err := Build(cfg.Observability)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// stdout/stderr report EINVAL or ENOTTY on fsync; nothing to flush there.
			if err := logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
				return err
			}
			return nil
		},
	})

	return logger, nil
}

// Build constructs the logger without lifecycle wiring (CLI helpers, tests).
func Build(observability config.Observability) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(observability.LogLevel)); err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = observability.LogEncoding
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	zapCfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	if observability.LogEncoding == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return logger.With(
		zap.String("service", observability.ServiceName),
		zap.String("environment", observability.Environment),
	), nil
}

// Printf adapts a zap logger to the printf-style logger interfaces that
// broker and migration libraries expect.
type Printf struct {
	Logger *zap.Logger
	Level  zapcore.Level
}

// Printf logs a formatted message at the configured level.
func (p Printf) Printf(format string, args ...interface{}) {
	if p.Logger == nil {
		return
	}
	sugar := p.Logger.Sugar()
	switch p.Level {
	case zapcore.DebugLevel:
		sugar.Debugf(format, args...)
	case zapcore.WarnLevel:
		sugar.Warnf(format, args...)
	case zapcore.ErrorLevel:
		sugar.Errorf(format, args...)
	default:
		sugar.Infof(format, args...)
	}
}

// Fatalf logs at error level; it never exits the process.
func (p Printf) Fatalf(format string, args ...interface{}) {
	if p.Logger == nil {
		return
	}
	p.Logger.Sugar().Errorf(format, args...)
}
