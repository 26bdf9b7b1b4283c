package logger

import (
	"fmt"
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
	Level       string // debug | info | warn | error; empty keeps the preset default
}

func New(cfg Config) (*zap.SugaredLogger, error) {
	var err error
	once.Do(func() {
		var zcfg zap.Config
		zcfg, err = buildConfig(cfg)
		if err != nil {
			return
		}
		var l *zap.Logger
		l, err = zcfg.Build()
		if err != nil {
			return
		}
		instance = l.Sugar()
	})
	return instance, err
}

func buildConfig(cfg Config) (zap.Config, error) {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.Level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
			return zap.Config{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zcfg, nil
}
