package entities

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	// EventReady fires once when the host channel is up.
	EventReady EventKind = "ready"
	// EventAppMessage is any inbound message from the companion; its payload is ignored.
	EventAppMessage EventKind = "appmessage"
	EventTick       EventKind = "tick"
	EventRefresh    EventKind = "refresh"
)

type Event struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
}

func NewEvent(kind EventKind, source string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Source:     source,
		ReceivedAt: time.Now(),
	}
}
