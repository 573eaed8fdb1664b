package permission

import (
	"context"
	"log/slog"
	"time"

	"github.com/Akash1430/POCPortal/internal/auth"
)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithObserver sets the observer notified of grant and role changes.
func WithObserver(obs auth.Observer) Option {
	return func(e *Evaluator) {
		if obs != nil {
			e.observer = obs
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

type discardObserver struct{}

func (discardObserver) OnSecurityEvent(context.Context, auth.Event) {}
