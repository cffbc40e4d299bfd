package logger

import (
	"context"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/dialtone/internal/config"
)

// Module exposes a configured Zap logger and its adjustable level to the Fx
// container, and routes Fx's own lifecycle events through the same logger.
var Module = fx.Options(
	fx.Provide(New),
	fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx")}
	}),
)

// Result carries the logger together with the level handle; zap.AtomicLevel
// doubles as an HTTP handler for changing the level at runtime.
type Result struct {
	fx.Out

	Logger *zap.Logger
	Level  zap.AtomicLevel
}

// New builds a Zap logger from the observability config; callers own the
// cleanup via Fx lifecycle.
func New(lc fx.Lifecycle, cfg config.Config) (Result, error) {
	logger, level, err := Build(cfg.Observability)
	if err != nil {
		return Result{}, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// stdout/stderr sync reports EINVAL on some platforms
			_ = logger.Sync()
			return nil
		},
	})

	return Result{Logger: logger, Level: level}, nil
}

// Build assembles the logger without touching the Fx lifecycle.
func Build(obs config.Observability) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if lvl, err := zapcore.ParseLevel(strings.ToLower(obs.LogLevel)); err == nil {
		level.SetLevel(lvl)
	}

	var zapCfg zap.Config
	if obs.LogEncoding == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.Encoding = "json"
		zapCfg.EncoderConfig.TimeKey = "ts"
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
		zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
		zapCfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, level, err
	}

	return logger.With(
		zap.String("service", obs.ServiceName),
		zap.String("environment", obs.Environment),
	), level, nil
}
