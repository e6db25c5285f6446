package testutils

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
	"github.com/k-shtanenko/weather-relay/internal/domain/ports"
)

type MockLocator struct {
	mock.Mock
}

func (m *MockLocator) CurrentPosition(ctx context.Context, opts entities.PositionOptions) (entities.Position, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).(entities.Position), args.Error(1)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchCurrent(ctx context.Context, pos entities.Position) (entities.Observation, error) {
	args := m.Called(ctx, pos)
	return args.Get(0).(entities.Observation), args.Error(1)
}

func (m *MockFetcher) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockHostChannel records the handler passed to Subscribe so tests can
// inject events with Emit.
type MockHostChannel struct {
	mock.Mock
	handler ports.EventHandler
}

func (m *MockHostChannel) Subscribe(ctx context.Context, handler ports.EventHandler) error {
	m.handler = handler
	args := m.Called(ctx, handler)
	return args.Error(0)
}

func (m *MockHostChannel) Emit(ctx context.Context, kind entities.EventKind) {
	m.handler(ctx, entities.NewEvent(kind, "mock"))
}

func (m *MockHostChannel) Send(ctx context.Context, msg entities.OutgoingMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockHostChannel) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockHostChannel) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockEventSource struct {
	mock.Mock
	handler ports.EventHandler
}

func (m *MockEventSource) Subscribe(ctx context.Context, handler ports.EventHandler) error {
	m.handler = handler
	args := m.Called(ctx, handler)
	return args.Error(0)
}

func (m *MockEventSource) Emit(ctx context.Context, kind entities.EventKind) {
	m.handler(ctx, entities.NewEvent(kind, "mock"))
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, interval time.Duration, task ports.Task) error {
	args := m.Called(ctx, interval, task)
	return args.Error(0)
}

func (m *MockScheduler) Stop() {
	m.Called()
}

type MockStatusProvider struct {
	mock.Mock
}

func (m *MockStatusProvider) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStatusProvider) GetStats() map[string]interface{} {
	args := m.Called()
	return args.Get(0).(map[string]interface{})
}
