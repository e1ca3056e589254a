package loader

import (
	"time"

	"modloader/core/metrics"

	"go.uber.org/zap"
)

// Config holds configuration for the loader.
type Config struct {
	// RoundTimeout bounds how long a round waits for its fetches.
	RoundTimeout time.Duration `mapstructure:"round_timeout" default:"30s"`
	// MaxRounds caps the rounds of a single session.
	MaxRounds int `mapstructure:"max_rounds" default:"64"`
}

const (
	defaultRoundTimeout = 30 * time.Second
	defaultMaxRounds    = 64
)

// Option configures a Loader.
type Option func(*Loader)

// WithConfig applies timeouts and limits. Zero values keep the defaults.
func WithConfig(cfg Config) Option {
	return func(l *Loader) {
		if cfg.RoundTimeout > 0 {
			l.roundTimeout = cfg.RoundTimeout
		}
		if cfg.MaxRounds > 0 {
			l.maxRounds = cfg.MaxRounds
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithMetrics records session and fetch metrics on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithCallbackPanicHandler is called with the recovered value when a
// Success or Error callback panics.
func WithCallbackPanicHandler(fn func(session string, recovered any)) Option {
	return func(l *Loader) {
		l.onCallbackPanic = fn
	}
}
