// Package bus provides the event bus that carries mode lifecycle events from the
// registry, lifecycle controllers and orchestrator to observers such as the metrics
// collector and the websocket event stream.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of event flowing through the bus.
type EventType string

// Event types emitted by the engine.
const (
	// Registry events
	EventProfileRegistered EventType = "profile_registered"

	// Lifecycle events
	EventModeActivated   EventType = "mode_activated"
	EventModeDeactivated EventType = "mode_deactivated"
	EventModeError       EventType = "mode_error"
	EventTaskExecuted    EventType = "task_executed"

	// Orchestrator events
	EventModeSwitched EventType = "mode_switched"
	EventSwitchFailed EventType = "switch_failed"
)

// AllEventTypes lists every event type, in emission order of a typical session.
var AllEventTypes = []EventType{
	EventProfileRegistered,
	EventModeActivated,
	EventModeDeactivated,
	EventModeError,
	EventTaskExecuted,
	EventModeSwitched,
	EventSwitchFailed,
}

// Event is a single occurrence published on the bus.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// Subject
	Slug     string `json:"slug,omitempty"`
	Previous string `json:"previous,omitempty"`
	State    string `json:"state,omitempty"`
	Tier     int    `json:"tier,omitempty"`

	// Operation detail
	Operation  string `json:"operation,omitempty"`
	Hook       string `json:"hook,omitempty"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"duration_ms,omitempty"`

	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Publisher is implemented by anything that accepts events. Components take a
// Publisher so they can run without a bus.
type Publisher interface {
	Publish(event Event) error
}

// NewEvent creates a new event with the current timestamp and a fresh ID.
func NewEvent(eventType EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}

// Emit publishes to p when p is non-nil and drops the event otherwise. Publishing
// errors are returned so callers may log them; they never abort an operation.
func Emit(p Publisher, event Event) error {
	if p == nil {
		return nil
	}
	return p.Publish(event)
}
