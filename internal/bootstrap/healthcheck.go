package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/k-shtanenko/weather-relay/internal/domain/ports"
	"github.com/k-shtanenko/weather-relay/internal/pkg/logger"
)

type HealthCheck interface {
	CheckAll(ctx context.Context) error
}

type HealthChecker struct {
	fetcher ports.Fetcher
	channel ports.HostChannel
	logger  logger.Logger
	config  struct {
		apiTimeout    time.Duration
		kafkaTimeout  time.Duration
		retryInterval time.Duration
		maxRetries    int
	}
}

func NewHealthChecker(
	fetcher ports.Fetcher,
	channel ports.HostChannel,
	apiTimeout, kafkaTimeout, retryInterval time.Duration,
	maxRetries int,
	log logger.Logger,
) *HealthChecker {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	h := &HealthChecker{
		fetcher: fetcher,
		channel: channel,
		logger:  log.WithField("component", "health_checker"),
	}
	h.config.apiTimeout = apiTimeout
	h.config.kafkaTimeout = kafkaTimeout
	h.config.retryInterval = retryInterval
	h.config.maxRetries = maxRetries
	return h
}

// CheckAll runs once at startup. The host channel must be reachable; an
// unreachable weather API only produces a warning since each fetch cycle
// already reports its own failures.
func (h *HealthChecker) CheckAll(ctx context.Context) error {
	h.logger.Info("Starting health checks for all dependencies")

	if err := h.checkWithRetry(ctx, h.channel.HealthCheck, "Kafka", h.config.kafkaTimeout); err != nil {
		return fmt.Errorf("Kafka health check failed: %w", err)
	}

	if err := h.checkWithRetry(ctx, h.fetcher.HealthCheck, "OpenWeather API", h.config.apiTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.logger.Warnf("OpenWeather API is not healthy, continuing anyway: %v", err)
		return nil
	}

	h.logger.Info("All health checks passed successfully")
	return nil
}

func (h *HealthChecker) checkWithRetry(ctx context.Context, checkFunc func(context.Context) error, serviceName string, timeout time.Duration) error {
	var lastErr error

	for i := 0; i < h.config.maxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.logger.Debugf("Checking %s (attempt %d/%d)", serviceName, i+1, h.config.maxRetries)

		checkCtx := ctx
		cancel := context.CancelFunc(func() {})
		if timeout > 0 {
			checkCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		err := checkFunc(checkCtx)
		cancel()

		if err == nil {
			h.logger.Infof("%s health check passed", serviceName)
			return nil
		}

		lastErr = err
		h.logger.Warnf("%s health check failed (attempt %d/%d): %v", serviceName, i+1, h.config.maxRetries, err)

		if i < h.config.maxRetries-1 {
			h.logger.Debugf("Retrying %s check in %v", serviceName, h.config.retryInterval)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.config.retryInterval):
			}
		}
	}

	return fmt.Errorf("all %d attempts failed, last error: %w", h.config.maxRetries, lastErr)
}
