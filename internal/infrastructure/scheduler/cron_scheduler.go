package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
	"github.com/k-shtanenko/weather-relay/internal/domain/ports"
	"github.com/k-shtanenko/weather-relay/internal/pkg/logger"
)

const (
	DefaultInterval = 30 * time.Minute
	minInterval     = time.Second
)

type CronScheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  logger.Logger

	mu      sync.Mutex
	entries map[cron.EntryID]context.CancelFunc
	started bool
}

func NewCronScheduler(timeout time.Duration, log logger.Logger) *CronScheduler {
	return &CronScheduler{
		cron:    cron.New(),
		timeout: timeout,
		logger:  log.WithField("component", "cron_scheduler"),
		entries: make(map[cron.EntryID]context.CancelFunc),
	}
}

func (s *CronScheduler) Schedule(ctx context.Context, interval time.Duration, task ports.Task) error {
	spec := intervalToSpec(interval)
	s.logger.Debugf("Converted interval %v to cron spec: %s", interval, spec)

	taskCtx, cancel := context.WithCancel(ctx)
	entryID, err := s.cron.AddFunc(spec, s.wrapTask(taskCtx, task))
	if err != nil {
		cancel()
		return fmt.Errorf("failed to schedule task: %w", err)
	}

	s.mu.Lock()
	s.entries[entryID] = cancel
	if !s.started {
		s.started = true
		s.cron.Start()
		s.logger.Info("Cron scheduler started")
	}
	s.mu.Unlock()

	s.logger.Infof("Task scheduled every %v (entry %d)", interval, entryID)
	return nil
}

func (s *CronScheduler) wrapTask(ctx context.Context, task ports.Task) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		startTime := time.Now()

		taskCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			taskCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		if err := task(taskCtx); err != nil {
			s.logger.Errorf("Task failed: %v", err)
			return
		}

		s.logger.Debugf("Task completed in %v", time.Since(startTime))
	}
}

func (s *CronScheduler) Stop() {
	s.mu.Lock()
	for entryID, cancel := range s.entries {
		cancel()
		s.cron.Remove(entryID)
		delete(s.entries, entryID)
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Cron scheduler stopped")
}

func intervalToSpec(interval time.Duration) string {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < minInterval {
		interval = minInterval
	}
	return "@every " + interval.String()
}

type CronSchedulerFactory struct {
	logger logger.Logger
}

func NewCronSchedulerFactory(log logger.Logger) ports.SchedulerFactory {
	return &CronSchedulerFactory{logger: log}
}

func (f *CronSchedulerFactory) CreateScheduler(timeout time.Duration) ports.Scheduler {
	f.logger.Infof("Creating CronScheduler with timeout: %v", timeout)
	return NewCronScheduler(timeout, f.logger)
}

// TickSource turns a scheduler into an event source emitting a tick per
// interval, the periodic refresh a watchface asks for.
type TickSource struct {
	scheduler ports.Scheduler
	interval  time.Duration
}

func NewTickSource(scheduler ports.Scheduler, interval time.Duration) *TickSource {
	return &TickSource{scheduler: scheduler, interval: interval}
}

func (t *TickSource) Subscribe(ctx context.Context, handler ports.EventHandler) error {
	return t.scheduler.Schedule(ctx, t.interval, func(context.Context) error {
		handler(ctx, entities.NewEvent(entities.EventTick, "cron"))
		return nil
	})
}
