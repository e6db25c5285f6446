package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/k-shtanenko/weather-relay/internal/application"
	"github.com/k-shtanenko/weather-relay/internal/config"
	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
	"github.com/k-shtanenko/weather-relay/internal/domain/ports"
	"github.com/k-shtanenko/weather-relay/internal/infrastructure/api"
	"github.com/k-shtanenko/weather-relay/internal/infrastructure/geolocation"
	owhttp "github.com/k-shtanenko/weather-relay/internal/infrastructure/http"
	"github.com/k-shtanenko/weather-relay/internal/infrastructure/messaging"
	"github.com/k-shtanenko/weather-relay/internal/infrastructure/scheduler"
	"github.com/k-shtanenko/weather-relay/internal/pkg/logger"
)

type Bootstrap struct {
	config *config.Config
	logger logger.Logger
}

type dependencies struct {
	locator       ports.Locator
	fetcher       ports.Fetcher
	channel       ports.HostChannel
	scheduler     ports.Scheduler
	healthChecker HealthCheck
}

func NewBootstrap() (*Bootstrap, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.App.LogLevel, cfg.App.Env).WithField("service", cfg.App.Name)

	return NewBootstrapWithConfig(cfg, log), nil
}

func NewBootstrapWithConfig(cfg *config.Config, log logger.Logger) *Bootstrap {
	return &Bootstrap{
		config: cfg,
		logger: log,
	}
}

func (b *Bootstrap) Run() error {
	b.logger.Info("Starting weather-relay service")
	b.PrintConfigInfo()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := b.initDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	return b.run(ctx, deps)
}

func (b *Bootstrap) run(ctx context.Context, deps dependencies) error {
	b.logger.Info("Performing initial health checks...")
	healthChecker := deps.healthChecker
	if healthChecker == nil {
		healthChecker = b.newHealthChecker(deps.fetcher, deps.channel)
	}
	if err := healthChecker.CheckAll(ctx); err != nil {
		b.closeChannel(deps.channel)
		return fmt.Errorf("initial health checks failed: %w", err)
	}

	service := application.NewRelayService(
		deps.locator,
		deps.fetcher,
		deps.channel,
		application.RelayOptions{
			Position: entities.PositionOptions{
				Timeout:    b.config.Geolocation.Timeout,
				MaximumAge: b.config.Geolocation.MaximumAge,
			},
			SingleFlight: b.config.Relay.SingleFlight,
			CycleTimeout: b.config.Relay.CycleTimeout,
		},
		b.logger,
	)

	var sources []ports.EventSource
	if deps.scheduler != nil && b.config.Scheduler.RefreshInterval > 0 {
		sources = append(sources, scheduler.NewTickSource(deps.scheduler, b.config.Scheduler.RefreshInterval))
		b.logger.Infof("Periodic refresh every %v", b.config.Scheduler.RefreshInterval)
	}

	var apiServer *api.APIServer
	if b.config.API.Enabled {
		middleware := api.NewMiddleware(b.config.API.RateLimit, b.config.API.RateWindow, b.logger)
		apiServer = api.NewAPIServer(service, middleware, b.config, b.logger)
		if err := apiServer.Start(); err != nil {
			b.closeChannel(deps.channel)
			return fmt.Errorf("failed to start API server: %w", err)
		}
		sources = append(sources, apiServer)
	}

	if err := service.Start(ctx, sources...); err != nil {
		b.shutdown(apiServer, deps.scheduler, service)
		return fmt.Errorf("failed to start service: %w", err)
	}

	<-ctx.Done()

	b.logger.Info("Stopping service...")
	b.shutdown(apiServer, deps.scheduler, service)

	b.logger.Info("Service stopped gracefully")
	return nil
}

func (b *Bootstrap) shutdown(apiServer *api.APIServer, sched ports.Scheduler, service *application.RelayService) {
	if apiServer != nil {
		if err := apiServer.Stop(context.Background()); err != nil {
			b.logger.Errorf("Failed to stop API server: %v", err)
		}
	}
	if sched != nil {
		sched.Stop()
	}
	service.Stop()
}

func (b *Bootstrap) newHealthChecker(fetcher ports.Fetcher, channel ports.HostChannel) HealthCheck {
	return NewHealthChecker(
		fetcher,
		channel,
		b.config.HealthCheck.APITimeout,
		b.config.HealthCheck.KafkaTimeout,
		b.config.HealthCheck.RetryInterval,
		b.config.HealthCheck.MaxRetries,
		b.logger,
	)
}

func (b *Bootstrap) closeChannel(channel ports.HostChannel) {
	if err := channel.Close(); err != nil {
		b.logger.Errorf("Failed to close host channel: %v", err)
	}
}

func (b *Bootstrap) initDependencies() (dependencies, error) {
	b.logger.Info("Initializing dependencies...")

	locatorFactory := geolocation.NewLocatorFactory(
		&http.Client{Timeout: b.config.Geolocation.Timeout},
		b.config.Geolocation.Endpoint,
		b.config.Geolocation.Latitude,
		b.config.Geolocation.Longitude,
		b.logger,
	)
	locator, err := locatorFactory.CreateLocator(b.config.Geolocation.Provider)
	if err != nil {
		return dependencies{}, fmt.Errorf("failed to create locator: %w", err)
	}
	b.logger.Infof("Geolocation provider initialized: %s", b.config.Geolocation.Provider)

	fetcherFactory := owhttp.NewOpenWeatherFetcherFactory(&http.Client{Timeout: b.config.OpenWeather.Timeout}, b.logger)
	fetcher := fetcherFactory.CreateFetcher(b.config.OpenWeather.BaseURL, b.config.OpenWeather.APIKey)
	if b.config.OpenWeather.APIKey == "" {
		b.logger.Warn("OpenWeather API key is empty, fetch cycles will fail")
	}
	b.logger.Info("OpenWeather fetcher initialized")

	channelFactory := messaging.NewKafkaChannelFactory(b.config.Kafka.RequiredAcks, b.config.Kafka.MaxRetries, b.logger)
	channel, err := channelFactory.CreateChannel(
		b.config.Kafka.Broker,
		b.config.Kafka.OutboxTopic,
		b.config.Kafka.InboxTopic,
		b.config.Kafka.GroupID,
		b.config.Kafka.DeviceID,
	)
	if err != nil {
		return dependencies{}, fmt.Errorf("failed to create Kafka channel: %w", err)
	}
	b.logger.Infof("Kafka channel initialized (outbox: %s, inbox: %s)", b.config.Kafka.OutboxTopic, b.config.Kafka.InboxTopic)

	schedulerFactory := scheduler.NewCronSchedulerFactory(b.logger)
	sched := schedulerFactory.CreateScheduler(b.config.Scheduler.Timeout)
	b.logger.Info("Scheduler initialized")

	return dependencies{
		locator:       locator,
		fetcher:       fetcher,
		channel:       channel,
		scheduler:     sched,
		healthChecker: b.newHealthChecker(fetcher, channel),
	}, nil
}

func (b *Bootstrap) PrintConfigInfo() {
	b.logger.Infof("Service Name: %s", b.config.App.Name)
	b.logger.Infof("Environment: %s", b.config.App.Env)
	b.logger.Infof("Log level: %s", b.config.App.LogLevel)
	b.logger.Infof("OpenWeather API Base URL: %s", b.config.OpenWeather.BaseURL)
	b.logger.Infof("Geolocation provider: %s", b.config.Geolocation.Provider)
	b.logger.Infof("Kafka Broker: %s", b.config.Kafka.Broker)
	b.logger.Infof("Device ID: %s", b.config.Kafka.DeviceID)
	b.logger.Infof("Refresh interval: %v", b.config.Scheduler.RefreshInterval)
	if b.config.API.Enabled {
		b.logger.Infof("API port: %d", b.config.API.Port)
	}
}
