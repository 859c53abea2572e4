// Package worker drains the replay queue into the rating engine.
package worker

import (
	"github.com/okian/kayfabe/pkg/logger"
)

// Option applies a configuration option to the ReplayWorker.
type Option func(*ReplayWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *ReplayWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *ReplayWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithOnComplete registers a callback invoked after every replay, failed or
// not. It runs on the worker goroutine.
func WithOnComplete(fn func(Result)) Option {
	return func(w *ReplayWorker) {
		if fn != nil {
			w.onComplete = fn
		}
	}
}
