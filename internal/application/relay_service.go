package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
	"github.com/k-shtanenko/weather-relay/internal/domain/ports"
	"github.com/k-shtanenko/weather-relay/internal/pkg/logger"
)

const singleFlightKey = "fetch-and-relay"

type Service interface {
	Start(ctx context.Context, sources ...ports.EventSource) error
	Stop()
	FetchAndRelay(ctx context.Context)
	HandleEvent(ctx context.Context, event entities.Event)
	HealthCheck(ctx context.Context) error
	GetStats() map[string]interface{}
}

type RelayOptions struct {
	Position entities.PositionOptions
	// SingleFlight makes a trigger that arrives during a running cycle join
	// it instead of starting a second one. Off by default: overlapping
	// cycles run independently.
	SingleFlight bool
	CycleTimeout time.Duration
}

func DefaultRelayOptions() RelayOptions {
	return RelayOptions{Position: entities.DefaultPositionOptions()}
}

type RelayService struct {
	locator ports.Locator
	fetcher ports.Fetcher
	channel ports.HostChannel
	options RelayOptions
	logger  logger.Logger
	stats   *Stats

	flight singleflight.Group
	wg     sync.WaitGroup

	mu      sync.Mutex
	rootCtx context.Context
	cancel  context.CancelFunc
}

func NewRelayService(
	locator ports.Locator,
	fetcher ports.Fetcher,
	channel ports.HostChannel,
	options RelayOptions,
	log logger.Logger,
) *RelayService {
	return &RelayService{
		locator: locator,
		fetcher: fetcher,
		channel: channel,
		options: options,
		logger:  log.WithField("component", "relay_service"),
		stats:   NewStats(),
	}
}

func (s *RelayService) Start(ctx context.Context, sources ...ports.EventSource) error {
	s.mu.Lock()
	s.rootCtx, s.cancel = context.WithCancel(ctx)
	rootCtx := s.rootCtx
	s.mu.Unlock()

	s.logger.Infof("Starting relay service (single_flight=%t)", s.options.SingleFlight)

	if err := s.channel.Subscribe(rootCtx, s.HandleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to host channel: %w", err)
	}

	for i, source := range sources {
		if err := source.Subscribe(rootCtx, s.HandleEvent); err != nil {
			return fmt.Errorf("failed to subscribe to event source %d: %w", i, err)
		}
	}

	s.logger.Info("Relay service started successfully")
	return nil
}

func (s *RelayService) Stop() {
	s.logger.Info("Stopping relay service")

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.Wait()

	if err := s.channel.Close(); err != nil {
		s.logger.Errorf("Failed to close host channel: %v", err)
	}

	s.logger.Info("Relay service stopped")
}

// Wait blocks until every cycle started by HandleEvent has finished.
func (s *RelayService) Wait() {
	s.wg.Wait()
}

// HandleEvent starts exactly one fetch cycle per trigger and returns
// without waiting for it. The event payload is never inspected.
func (s *RelayService) HandleEvent(_ context.Context, event entities.Event) {
	s.stats.recordTrigger(event.Kind)
	log := s.logger.WithFields(map[string]interface{}{
		"trigger":  string(event.Kind),
		"event_id": event.ID,
		"source":   event.Source,
	})
	log.Info("Trigger received, refreshing weather")

	ctx := s.baseContext()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if !s.options.SingleFlight {
			s.runCycle(ctx, event.Kind)
			return
		}

		ran := false
		s.flight.Do(singleFlightKey, func() (interface{}, error) {
			ran = true
			s.runCycle(ctx, event.Kind)
			return nil, nil
		})
		if !ran {
			s.stats.recordJoined()
			log.Info("Trigger joined the fetch cycle already in flight")
		}
	}()
}

// FetchAndRelay runs one cycle synchronously. Failures are logged, never returned.
func (s *RelayService) FetchAndRelay(ctx context.Context) {
	s.runCycle(ctx, "manual")
}

func (s *RelayService) runCycle(ctx context.Context, trigger entities.EventKind) {
	cycleID := uuid.NewString()
	log := s.logger.WithFields(map[string]interface{}{
		"cycle_id": cycleID,
		"trigger":  string(trigger),
	})

	if s.options.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.CycleTimeout)
		defer cancel()
	}

	s.stats.recordCycleStarted()
	startTime := time.Now()

	msg, err := s.cycle(ctx, log)
	if err != nil {
		stage := entities.Stage("unknown")
		var stageErr *entities.StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		s.stats.recordFailure(stage)
		log.WithField("stage", string(stage)).Errorf("Fetch cycle failed: %s", logger.FormatError(err))
		return
	}

	s.stats.recordSent(msg)
	log.Infof("Weather info sent to companion successfully in %v", time.Since(startTime))
}

// cycle is the linear pipeline; the first failing stage ends it.
func (s *RelayService) cycle(ctx context.Context, log logger.Logger) (msg entities.OutgoingMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during fetch cycle: %v", r)
		}
	}()

	pos, err := s.locator.CurrentPosition(ctx, s.options.Position)
	if err != nil {
		return msg, entities.NewStageError(entities.StageLocate, fmt.Errorf("error requesting location: %w", err))
	}
	if logger.IsDebugEnabled(log) {
		log.Debugf("Position lat=%f lon=%f source=%s age=%v", pos.Latitude, pos.Longitude, pos.Source, pos.Age(time.Now()).Round(time.Second))
	}

	obs, err := s.fetcher.FetchCurrent(ctx, pos)
	if err != nil {
		if errors.Is(err, entities.ErrMalformedResponse) {
			return msg, entities.NewStageError(entities.StageDecode, err)
		}
		return msg, entities.NewStageError(entities.StageFetch, err)
	}

	msg = obs.ToMessage()
	log.Infof("Temperature is %d", msg.Temperature)
	log.Infof("Conditions are %s", msg.Conditions)

	if err := s.channel.Send(ctx, msg); err != nil {
		return msg, entities.NewStageError(entities.StageSend, fmt.Errorf("error sending weather info to companion: %w", err))
	}
	return msg, nil
}

// HealthCheck reports liveness from the host channel only. The weather
// provider is probed once at startup; a failing provider shows up as fetch
// failures in the stats instead.
func (s *RelayService) HealthCheck(ctx context.Context) error {
	if err := s.channel.HealthCheck(ctx); err != nil {
		return fmt.Errorf("host channel health check failed: %w", err)
	}
	return nil
}

func (s *RelayService) GetStats() map[string]interface{} {
	return s.stats.Snapshot()
}

func (s *RelayService) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootCtx == nil {
		return context.Background()
	}
	return s.rootCtx
}
