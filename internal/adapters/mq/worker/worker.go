package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/kayfabe/internal/adapters/mq/queue"
	"github.com/okian/kayfabe/internal/domain/rating"
	"github.com/okian/kayfabe/pkg/logger"
	"github.com/okian/kayfabe/pkg/metrics"
)

// Replayer runs the rating engine.
type Replayer interface {
	Run(ctx context.Context) (rating.Report, error)
	Rebuild(ctx context.Context) (rating.Report, error)
}

// Queue defines how the worker receives replay requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Request
}

// Worker processes replay requests one at a time.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after the replay in flight finishes.
	Shutdown(ctx context.Context) error
}

// Result is the outcome of one replay request.
type Result struct {
	Request    queue.Request `json:"-"`
	RequestID  string        `json:"request_id"`
	Source     string        `json:"source"`
	Report     rating.Report `json:"report"`
	Error      string        `json:"error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}

// OK reports whether the replay succeeded.
func (r Result) OK() bool { return r.Error == "" }

// ReplayWorker is the single consumer of the replay queue.
type ReplayWorker struct {
	queue      Queue
	engine     Replayer
	name       string
	onComplete func(Result)

	mu        sync.RWMutex
	last      *Result
	processed int

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewReplayWorker creates a worker reading from q and driving engine.
func NewReplayWorker(q Queue, engine Replayer, opts ...Option) *ReplayWorker {
	w := &ReplayWorker{
		queue:      q,
		engine:     engine,
		name:       "worker",
		onComplete: func(Result) {},
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *ReplayWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case r, ok := <-requests:
			if !ok {
				return
			}
			w.process(ctx, r)
		}
	}
}

// Shutdown signals the loop to stop and waits for it.
func (w *ReplayWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Last returns the result of the most recent replay.
func (w *ReplayWorker) Last() (Result, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.last == nil {
		return Result{}, false
	}
	return *w.last, true
}

// Processed returns the number of requests handled so far.
func (w *ReplayWorker) Processed() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.processed
}

func (w *ReplayWorker) process(ctx context.Context, r queue.Request) { //nolint:gocritic // hugeParam: Request is passed by value through the channel
	w.logger.Info(ctx, "replay started",
		logger.String("request_id", r.ID),
		logger.String("source", r.Source),
		logger.Bool("rebuild", r.Rebuild),
		logger.Duration("queued_for", time.Since(r.RequestedAt)),
	)

	var (
		rep rating.Report
		err error
	)
	if r.Rebuild {
		rep, err = w.engine.Rebuild(ctx)
	} else {
		rep, err = w.engine.Run(ctx)
	}

	res := Result{
		Request:    r,
		RequestID:  r.ID,
		Source:     r.Source,
		Report:     rep,
		FinishedAt: time.Now(),
	}
	if err != nil {
		res.Error = err.Error()
		metrics.RecordErrorByComponent("worker", "replay_failed")
		w.logger.Error(ctx, "replay failed",
			logger.String("request_id", r.ID),
			logger.Error(err),
		)
	} else {
		w.logger.Info(ctx, "replay finished",
			logger.String("request_id", r.ID),
			logger.Int("matches_scored", rep.MatchesScored),
			logger.Int("observations", rep.Observations),
			logger.Duration("took", rep.Duration),
		)
	}

	w.mu.Lock()
	w.last = &res
	w.processed++
	w.mu.Unlock()

	w.onComplete(res)
}
