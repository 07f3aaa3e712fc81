package orchestrator

import (
	"time"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

// HistoryEntry records one successful switch. Duration stays nil until the profile
// is deactivated.
type HistoryEntry struct {
	ID        string         `json:"id" yaml:"id"`
	Slug      string         `json:"slug" yaml:"slug"`
	StartedAt time.Time      `json:"started_at" yaml:"started_at"`
	Context   modes.Context  `json:"context" yaml:"context"`
	Duration  *time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Open reports whether the entry is still waiting for its duration.
func (h HistoryEntry) Open() bool { return h.Duration == nil }

func (h HistoryEntry) clone() HistoryEntry {
	c := h
	c.Context = h.Context.Clone()
	if h.Duration != nil {
		d := *h.Duration
		c.Duration = &d
	}
	return c
}

// History returns the switch history, oldest first.
func (o *Orchestrator) History() []HistoryEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]HistoryEntry, 0, len(o.history))
	for _, h := range o.history {
		out = append(out, h.clone())
	}
	return out
}

// backfillLocked closes the latest history entry. Caller holds mu.
func (o *Orchestrator) backfillLocked(now time.Time) {
	if len(o.history) == 0 {
		return
	}
	last := &o.history[len(o.history)-1]
	if !last.Open() {
		return
	}
	d := now.Sub(last.StartedAt)
	last.Duration = &d
}

// markUsedLocked adds slug to today's set, resetting it when the day rolls over.
// Caller holds mu.
func (o *Orchestrator) markUsedLocked(slug string, now time.Time) {
	day := now.Format(time.DateOnly)
	if day != o.todayDate {
		o.todayDate = day
		o.todayUsed = make(map[string]struct{})
	}
	o.todayUsed[slug] = struct{}{}
}
