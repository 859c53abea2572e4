// Package scheduler requests replays on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/pkg/logger"
	"github.com/okian/kayfabe/pkg/metrics"
)

// ErrInvalidSchedule is returned for cron expressions that do not parse.
var ErrInvalidSchedule = errors.New("invalid replay schedule")

// Trigger accepts replay requests.
type Trigger interface {
	RequestReplay(ctx context.Context, r model.ReplayRequest) (bool, error)
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithLocation sets the time zone the schedule is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithRebuild makes every scheduled replay a full rebuild.
func WithRebuild(rebuild bool) Option {
	return func(s *Scheduler) {
		s.rebuild = rebuild
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler enqueues a replay each time its cron expression fires.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	entry    cron.EntryID
	spec     string
	location *time.Location
	rebuild  bool
	trigger  Trigger
	ctx      context.Context
	logger   logger.Logger
}

// New parses spec (standard five fields or a descriptor such as "@hourly")
// and prepares a scheduler. Call Start to begin firing.
func New(spec string, trigger Trigger, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		spec:     strings.TrimSpace(spec),
		location: time.UTC,
		trigger:  trigger,
		ctx:      context.Background(),
		logger:   logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cron = cron.New(cron.WithLocation(s.location))
	id, err := s.cron.AddFunc(s.spec, s.fire)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSchedule, s.spec, err)
	}
	s.entry = id
	return s, nil
}

// Validate reports whether spec is an acceptable schedule.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(strings.TrimSpace(spec)); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, spec, err)
	}
	return nil
}

// Start begins firing. Requests carry ctx until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info(ctx, "replay schedule started",
		logger.String("schedule", s.spec),
		logger.Any("next", s.Next()),
	)
}

// Stop halts the schedule and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the next activation time, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Spec returns the configured cron expression.
func (s *Scheduler) Spec() string { return s.spec }

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	r := model.ReplayRequest{
		ID:          "cron-" + uuid.NewString(),
		Rebuild:     s.rebuild,
		Source:      "cron",
		RequestedAt: time.Now(),
	}
	if _, err := s.trigger.RequestReplay(ctx, r); err != nil {
		metrics.RecordErrorByComponent("scheduler", "request_failed")
		s.logger.Warn(ctx, "scheduled replay not queued",
			logger.String("request_id", r.ID),
			logger.Error(err),
		)
		return
	}
	s.logger.Debug(ctx, "scheduled replay queued", logger.String("request_id", r.ID))
}
