// Package metrics aggregates session metrics from the event bus and renders them for
// the terminal.
package metrics

import (
	"sync"
	"time"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/bus"
)

// DefaultRecentEvents is how many events the collector keeps for display.
const DefaultRecentEvents = 50

// Collector subscribes to the event bus and aggregates session metrics.
type Collector struct {
	bus          *bus.Bus
	session      *SessionStats
	recentEvents []bus.Event
	mu           sync.RWMutex
	maxEvents    int
	subs         []bus.SubscriptionID
	stopped      bool
}

// SessionStats holds current session metrics.
type SessionStats struct {
	StartTime      time.Time `json:"start_time"`
	Registrations  int       `json:"registrations"`
	Activations    int       `json:"activations"`
	Deactivations  int       `json:"deactivations"`
	Failures       int       `json:"failures"`
	Executions     int       `json:"executions"`
	SuccessCount   int       `json:"success_count"`
	FailureCount   int       `json:"failure_count"`
	TotalLatencyMs int64     `json:"total_latency_ms"`
	Switches       int       `json:"switches"`
	FailedSwitches int       `json:"failed_switches"`
	ActiveSlug     string    `json:"active_slug,omitempty"`
	LastEvent      string    `json:"last_event,omitempty"`
	LastEventTime  time.Time `json:"last_event_time"`
}

// AverageLatency returns the mean execution latency.
func (s SessionStats) AverageLatency() time.Duration {
	if s.Executions == 0 {
		return 0
	}
	return time.Duration(s.TotalLatencyMs/int64(s.Executions)) * time.Millisecond
}

// SuccessRate returns the share of successful executions in percent. No executions
// counts as 100%.
func (s SessionStats) SuccessRate() float64 {
	if s.Executions == 0 {
		return 100
	}
	return float64(s.SuccessCount) / float64(s.Executions) * 100
}

// NewCollector creates a metrics collector. eventBus may be nil.
func NewCollector(eventBus *bus.Bus) *Collector {
	return &Collector{
		bus:          eventBus,
		session:      &SessionStats{StartTime: time.Now()},
		recentEvents: make([]bus.Event, 0),
		maxEvents:    DefaultRecentEvents,
	}
}

// Start begins listening to the event bus.
func (c *Collector) Start() {
	if c.bus == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || len(c.subs) > 0 {
		return
	}
	c.subs = append(c.subs, c.bus.Subscribe("", c.handleEvent))
}

// Stop stops listening.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true

	for _, id := range c.subs {
		_ = c.bus.Unsubscribe(id)
	}
	c.subs = nil
}

// GetSessionStats returns a copy of the current session stats.
func (c *Collector) GetSessionStats() SessionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.session
}

// GetRecentEvents returns up to n of the most recent events, oldest first.
func (c *Collector) GetRecentEvents(n int) []bus.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n > len(c.recentEvents) {
		n = len(c.recentEvents)
	}
	if n <= 0 {
		return nil
	}

	events := make([]bus.Event, n)
	copy(events, c.recentEvents[len(c.recentEvents)-n:])
	return events
}

// handleEvent records every event and updates the counters it affects.
func (c *Collector) handleEvent(event bus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recentEvents = append(c.recentEvents, event)
	if len(c.recentEvents) > c.maxEvents {
		c.recentEvents = c.recentEvents[1:]
	}

	s := c.session
	switch event.Type {
	case bus.EventProfileRegistered:
		s.Registrations++
	case bus.EventModeActivated:
		s.Activations++
	case bus.EventModeDeactivated:
		s.Deactivations++
		if s.ActiveSlug == event.Slug {
			s.ActiveSlug = ""
		}
	case bus.EventModeError:
		s.Failures++
		if s.ActiveSlug == event.Slug {
			s.ActiveSlug = ""
		}
	case bus.EventTaskExecuted:
		s.Executions++
		s.TotalLatencyMs += event.DurationMs
		if event.Success {
			s.SuccessCount++
		} else {
			s.FailureCount++
		}
	case bus.EventModeSwitched:
		s.Switches++
		s.ActiveSlug = event.Slug
	case bus.EventSwitchFailed:
		s.FailedSwitches++
	default:
		return
	}

	s.LastEvent = describe(event)
	s.LastEventTime = event.Timestamp
}

func describe(e bus.Event) string {
	if e.Slug == "" {
		return string(e.Type)
	}
	return string(e.Type) + ": " + e.Slug
}
