package worker

import (
	"time"

	"github.com/okian/bullrun/internal/config"
	"github.com/okian/bullrun/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMaxRetries sets how many times a failed delivery is retried.
func WithMaxRetries(n int) Option {
	return func(w *InMemoryWorker) {
		if n >= 0 {
			w.maxRetries = n
		}
	}
}

// WithBackoff sets the first retry delay and the delay cap.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(w *InMemoryWorker) {
		if base > 0 {
			w.baseDelay = base
		}
		if maxDelay >= w.baseDelay {
			w.maxDelay = maxDelay
		}
	}
}

// WithDeliverTimeout bounds each delivery attempt.
func WithDeliverTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithObserver registers fn to receive every delivery outcome.
func WithObserver(fn func(Delivery)) Option {
	return func(w *InMemoryWorker) { w.observe = fn }
}

// WithConfig applies retry settings from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(w *InMemoryWorker) {
		WithMaxRetries(cfg.SettlementMaxRetries)(w)
		WithBackoff(cfg.SettlementRetryBase, cfg.SettlementRetryMax)(w)
	}
}
