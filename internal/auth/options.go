package auth

import (
	"log/slog"
	"time"
)

// Option configures a TokenService or Manager.
type Option func(*options)

type options struct {
	observer Observer
	lockout  Lockout
	logger   *slog.Logger
	now      func() time.Time
}

func buildOptions(opts []Option) options {
	o := options{
		observer: nopObserver{},
		lockout:  nopLockout{},
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithObserver sets the security event observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLockout sets the failed-login limiter used by Manager.Login.
func WithLockout(l Lockout) Option {
	return func(o *options) {
		if l != nil {
			o.lockout = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
