package application

import (
	"sync"
	"time"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
)

type Stats struct {
	mu        sync.Mutex
	startedAt time.Time
	triggers  map[entities.EventKind]int64
	started   int64
	sent      int64
	joined    int64
	failures  map[entities.Stage]int64
	last      *entities.OutgoingMessage
	lastSent  time.Time
}

func NewStats() *Stats {
	return &Stats{
		startedAt: time.Now(),
		triggers:  make(map[entities.EventKind]int64),
		failures:  make(map[entities.Stage]int64),
	}
}

func (s *Stats) recordTrigger(kind entities.EventKind) {
	s.mu.Lock()
	s.triggers[kind]++
	s.mu.Unlock()
}

func (s *Stats) recordCycleStarted() {
	s.mu.Lock()
	s.started++
	s.mu.Unlock()
}

func (s *Stats) recordJoined() {
	s.mu.Lock()
	s.joined++
	s.mu.Unlock()
}

func (s *Stats) recordFailure(stage entities.Stage) {
	s.mu.Lock()
	s.failures[stage]++
	s.mu.Unlock()
}

func (s *Stats) recordSent(msg entities.OutgoingMessage) {
	s.mu.Lock()
	s.sent++
	s.last = &msg
	s.lastSent = time.Now()
	s.mu.Unlock()
}

func (s *Stats) Snapshot() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	triggers := make(map[string]int64, len(s.triggers))
	for k, v := range s.triggers {
		triggers[string(k)] = v
	}
	failures := make(map[string]int64, len(s.failures))
	for k, v := range s.failures {
		failures[string(k)] = v
	}

	snapshot := map[string]interface{}{
		"triggers":       triggers,
		"cycles_started": s.started,
		"messages_sent":  s.sent,
		"joined":         s.joined,
		"failures":       failures,
		"uptime":         time.Since(s.startedAt).Round(time.Second).String(),
		"timestamp":      time.Now().Format(time.RFC3339),
	}
	if s.last != nil {
		snapshot["last_message"] = s.last.ToDictionary()
		snapshot["last_sent_at"] = s.lastSent.Format(time.RFC3339)
	}
	return snapshot
}
