// Package logging builds the zap loggers shared by every component.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// #region new

// New builds a logger from cfg. "console" selects the development encoder;
// anything else gets the production JSON encoder.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// #endregion new

// #region once

// Once emits a notice at most once per key. Sources use it so a dead
// camera or microphone is reported on the first cycle only.
type Once struct {
	seen sync.Map
}

// Warn logs msg at warn level the first time key is seen.
// It reports whether the message was written.
func (o *Once) Warn(logger *zap.Logger, key, msg string, fields ...zap.Field) bool {
	if _, loaded := o.seen.LoadOrStore(key, struct{}{}); loaded {
		return false
	}
	logger.Warn(msg, append(fields, zap.String("notice_key", key))...)
	return true
}

// Forget lets key be reported again, e.g. after a source recovers.
func (o *Once) Forget(key string) {
	o.seen.Delete(key)
}

// #endregion once
