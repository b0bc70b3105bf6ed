// Package publish emits run lifecycle events to an optional broker.
package publish

import (
	"context"
	"sync"
	"time"
)

// Event is one run lifecycle notification.
type Event struct {
	Kind       string    `json:"kind"`
	RunID      string    `json:"runId"`
	OccurredAt time.Time `json:"occurredAt"`
	Item       string    `json:"item,omitempty"`
	Error      string    `json:"error,omitempty"`
	Scanned    int       `json:"scanned,omitempty"`
	Created    int       `json:"created,omitempty"`
	Updated    int       `json:"updated,omitempty"`
	Failed     int       `json:"failed,omitempty"`
	Missing    int       `json:"missing,omitempty"`
}

// Event kinds.
const (
	KindRunStarted  = "run.started"
	KindRunFinished = "run.finished"
	KindItemFailed  = "item.failed"
)

// Publisher delivers events. Implementations must tolerate being called
// concurrently from workers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoOp discards every event. It is the default when no broker is
// configured.
type NoOp struct{}

func (NoOp) Publish(context.Context, Event) error { return nil }
func (NoOp) Close() error                         { return nil }

// Memory collects events in memory for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory builds an empty in-memory publisher.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
