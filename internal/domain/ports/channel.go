package ports

import (
	"context"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
)

type EventHandler func(ctx context.Context, event entities.Event)

// EventSource delivers trigger events to a handler until ctx is done.
// Subscribe returns once the subscription is established.
type EventSource interface {
	Subscribe(ctx context.Context, handler EventHandler) error
}

// HostChannel is the transport to the companion device.
type HostChannel interface {
	EventSource
	Send(ctx context.Context, msg entities.OutgoingMessage) error
	HealthCheck(ctx context.Context) error
	Close() error
}

type HostChannelFactory interface {
	CreateChannel(broker, outboxTopic, inboxTopic, groupID, deviceID string) (HostChannel, error)
}
