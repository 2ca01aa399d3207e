// Package logger builds the process-wide sugared zap logger.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	instance *zap.SugaredLogger
	once     sync.Once
)

type Config struct {
	Development bool
	// Level overrides the preset's default ("debug", "info", "warn",
	// "error"); empty keeps the preset default.
	Level string
}

// New returns the shared logger, building it on first call. The
// returned logger is named "realtime" so multi-service log streams
// stay attributable.
func New(cfg Config) (*zap.SugaredLogger, error) {
	var err error
	once.Do(func() {
		zc := zap.NewProductionConfig()
		if cfg.Development {
			zc = zap.NewDevelopmentConfig()
		}
		if cfg.Level != "" {
			var lvl zapcore.Level
			if lvl, err = zapcore.ParseLevel(cfg.Level); err != nil {
				return
			}
			zc.Level = zap.NewAtomicLevelAt(lvl)
		}
		var l *zap.Logger
		if l, err = zc.Build(); err != nil {
			return
		}
		instance = l.Named("realtime").Sugar()
	})
	return instance, err
}
