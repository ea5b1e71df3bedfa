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

// Config selects the output shape (console in development, JSON in
// production) and the minimum level, both fed from app config.
type Config struct {
	Development bool
	Level       string
}

func New(cfg Config) (*zap.SugaredLogger, error) {
	var err error
	once.Do(func() {
		zcfg := zap.NewProductionConfig()
		if cfg.Development {
			zcfg = zap.NewDevelopmentConfig()
		}
		if cfg.Level != "" {
			var lvl zapcore.Level
			if lvl, err = zapcore.ParseLevel(cfg.Level); err != nil {
				return
			}
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		var l *zap.Logger
		if l, err = zcfg.Build(); err != nil {
			return
		}
		instance = l.Sugar()
	})
	return instance, err
}
