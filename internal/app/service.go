// Package service wires storage, the rating engine, the replay triggers and
// the ranking aggregators behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/kayfabe/internal/adapters/mq/amqp"
	"github.com/okian/kayfabe/internal/adapters/mq/queue"
	"github.com/okian/kayfabe/internal/adapters/mq/worker"
	"github.com/okian/kayfabe/internal/adapters/repository"
	"github.com/okian/kayfabe/internal/config"
	"github.com/okian/kayfabe/internal/domain/dedupe"
	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/internal/domain/ranking"
	"github.com/okian/kayfabe/internal/domain/rating"
	"github.com/okian/kayfabe/internal/scheduler"
	"github.com/okian/kayfabe/pkg/logger"
	"github.com/okian/kayfabe/pkg/metrics"
)

// ErrNotStarted is returned by operations that need a started service.
var ErrNotStarted = errors.New("service not started")

// Store is everything the service needs from storage.
type Store interface {
	rating.Store
	ranking.Source
	Stats(ctx context.Context) (repository.Stats, error)
	Close() error
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects an open store. The service does not close it.
func WithStore(store Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.ownsStore = false
		}
	}
}

// Service implements the API dependencies for the rating system.
type Service struct {
	mu sync.RWMutex

	cfg       *config.Config
	store     Store
	ownsStore bool

	engine    *rating.Engine
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	worker    *worker.ReplayWorker
	scheduler *scheduler.Scheduler
	consumer  *amqp.Consumer
	rankings  *aggregatorCache

	started    bool
	startedAt  time.Time
	cancel     context.CancelFunc
	stopAMQP   context.CancelFunc
	amqpDone   chan struct{}
	workerDone chan struct{}

	logger logger.Logger
}

// New constructs a Service from configuration. Start opens the store
// unless one was injected.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:       cfg,
		ownsStore: true,
		logger:    logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Params builds rating parameters from configuration.
func Params(cfg *config.Config) rating.Params {
	opts := []rating.ParamOption{
		rating.WithBaseline(cfg.BaselineScore),
		rating.WithDifferenceMaker(cfg.DifferenceMaker),
		rating.WithChampionshipIncrement(cfg.ChampionshipIncrement),
		rating.WithMassEliminationLosers(cfg.MassEliminationLosers),
	}
	if cfg.EventModifiers != nil {
		opts = append(opts, rating.WithEventModifiers(cfg.EventModifiers))
	}
	if cfg.ResolutionPenalties != nil {
		opts = append(opts, rating.WithResolutionPenalties(cfg.ResolutionPenalties))
	}
	return rating.NewParams(opts...)
}

// Start opens storage and starts the replay worker and triggers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting rating service...")

	if s.store == nil {
		store, err := repository.Open(ctx, s.cfg.DBDriver, s.cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("migrate store: %w", err)
		}
		s.store = store
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.engine = rating.NewEngine(s.store,
		rating.WithParams(Params(s.cfg)),
		rating.WithCommitEvery(s.cfg.CommitEvery),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	s.rankings = newAggregatorCache(s.store, s.cfg.RankLimit, defaultCachedWindows)
	s.worker = worker.NewReplayWorker(s.queue, s.engine,
		worker.WithName("replay"),
		worker.WithOnComplete(s.replayFinished),
	)
	s.workerDone = make(chan struct{})
	go func() {
		defer close(s.workerDone)
		s.worker.Run(runCtx)
	}()

	if s.cfg.ReplaySchedule != "" {
		sched, err := scheduler.New(s.cfg.ReplaySchedule, s)
		if err != nil {
			cancel()
			s.closeOwnedStore(ctx)
			return fmt.Errorf("replay schedule: %w", err)
		}
		sched.Start(runCtx)
		s.scheduler = sched
	}

	if s.cfg.AMQPURL != "" {
		amqpCtx, stop := context.WithCancel(runCtx)
		s.consumer = amqp.NewConsumer(s.cfg.AMQPURL, s, amqp.WithQueue(s.cfg.AMQPQueue))
		s.stopAMQP = stop
		s.amqpDone = make(chan struct{})
		go func() {
			defer close(s.amqpDone)
			if err := s.consumer.Run(amqpCtx); err != nil {
				s.logger.Error(amqpCtx, "batch consumer stopped", logger.Error(err))
			}
		}()
	}

	s.cancel = cancel
	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "rating service started",
		logger.String("db_driver", s.cfg.DBDriver),
		logger.Int("commit_every", s.cfg.CommitEvery),
		logger.Int("queue_size", s.cfg.QueueSize),
		logger.String("replay_schedule", s.cfg.ReplaySchedule),
		logger.Bool("amqp", s.consumer != nil),
	)

	if s.cfg.ReplayOnStart {
		r := model.ReplayRequest{ID: "startup-" + uuid.NewString(), Source: "startup", RequestedAt: time.Now()}
		if _, err := s.requestReplay(ctx, r); err != nil {
			s.logger.Warn(ctx, "startup replay not queued", logger.Error(err))
		}
	}
	return nil
}

// Stop shuts the triggers down, lets an in-flight replay finish within ctx
// and releases storage.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	// Triggers call back into RequestReplay, so they are stopped without
	// holding the lock.
	s.started = false
	sched, stopAMQP, amqpDone := s.scheduler, s.stopAMQP, s.amqpDone
	s.scheduler, s.stopAMQP, s.consumer = nil, nil, nil
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping rating service...")
	if sched != nil {
		sched.Stop()
	}
	if stopAMQP != nil {
		stopAMQP()
		<-amqpDone
	}

	_ = s.queue.Close()
	err := s.worker.Shutdown(ctx)
	s.cancel()
	<-s.workerDone

	s.mu.Lock()
	s.closeOwnedStore(ctx)
	s.mu.Unlock()
	s.logger.Info(ctx, "rating service stopped")
	return err
}

func (s *Service) closeOwnedStore(ctx context.Context) {
	if !s.ownsStore || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "close store", logger.Error(err))
	}
	s.store = nil
}

// RequestReplay queues a replay. It reports true without queueing when the
// request id was already seen. Queue refusals free the id for a retry.
func (s *Service) RequestReplay(ctx context.Context, r model.ReplayRequest) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false, ErrNotStarted
	}
	return s.requestReplay(ctx, r)
}

func (s *Service) requestReplay(ctx context.Context, r model.ReplayRequest) (bool, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.RequestedAt.IsZero() {
		r.RequestedAt = time.Now()
	}
	if s.deduper.SeenAndRecord(ctx, r.ID) {
		metrics.RecordDuplicateRequest()
		s.logger.Debug(ctx, "duplicate replay request", logger.String("request_id", r.ID))
		return true, nil
	}
	if err := s.queue.Enqueue(ctx, r); err != nil {
		s.deduper.Unrecord(ctx, r.ID)
		return false, fmt.Errorf("queue replay %s: %w", r.ID, err)
	}
	s.logger.Debug(ctx, "replay queued",
		logger.String("request_id", r.ID),
		logger.String("source", r.Source),
		logger.Bool("rebuild", r.Rebuild),
	)
	return false, nil
}

// replayFinished drops memoized rankings once the score log changed.
func (s *Service) replayFinished(res worker.Result) {
	if res.Report.Observations > 0 || res.Report.Rebuild {
		s.rankings.invalidate()
	}
}

// QueueDepth returns the number of pending replay requests.
func (s *Service) QueueDepth(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return 0
	}
	return s.queue.Len(ctx)
}

// LastReplay returns the outcome of the most recent replay.
func (s *Service) LastReplay() (worker.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return worker.Result{}, false
	}
	return s.worker.Last()
}
