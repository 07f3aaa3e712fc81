package registry

import (
	"time"
)

// UsageWindow is how long individual usage events are kept.
const UsageWindow = 7 * 24 * time.Hour

// UsageEvent is one tracked operation inside the rolling window.
type UsageEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration"`
}

// Analytics is a read-only copy of a profile's usage record.
type Analytics struct {
	Slug            string         `json:"slug"`
	TotalUsageCount int            `json:"total_usage_count"`
	Operations      map[string]int `json:"operations"`
	Recent          []UsageEvent   `json:"recent"`
	LastUsed        *time.Time     `json:"last_used,omitempty"`
}

type analyticsRecord struct {
	total      int
	operations map[string]int
	recent     []UsageEvent
	lastUsed   time.Time
}

func newAnalyticsRecord() *analyticsRecord {
	return &analyticsRecord{operations: make(map[string]int)}
}

// prune drops events older than the window. The all-time counters are untouched.
func (a *analyticsRecord) prune(now time.Time) {
	cutoff := now.Add(-UsageWindow)
	kept := a.recent[:0]
	for _, e := range a.recent {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	a.recent = kept
}

func (a *analyticsRecord) snapshot(slug string) Analytics {
	out := Analytics{
		Slug:            slug,
		TotalUsageCount: a.total,
		Operations:      make(map[string]int, len(a.operations)),
		Recent:          append([]UsageEvent(nil), a.recent...),
	}
	for op, n := range a.operations {
		out.Operations[op] = n
	}
	if !a.lastUsed.IsZero() {
		t := a.lastUsed
		out.LastUsed = &t
	}
	return out
}

// TrackUsage counts one operation against slug and prunes the rolling window.
// Unknown slugs are ignored.
func (r *Registry) TrackUsage(slug, operation string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.analytics[slug]
	if !ok {
		return
	}
	now := r.now()
	a.total++
	a.operations[operation]++
	a.recent = append(a.recent, UsageEvent{Timestamp: now, Operation: operation, Duration: d})
	a.lastUsed = now
	a.prune(now)
}

// Analytics returns the usage record for slug.
func (r *Registry) Analytics(slug string) (Analytics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.analytics[slug]
	if !ok {
		return Analytics{}, false
	}
	return a.snapshot(slug), true
}

// AllAnalytics returns every usage record in registration order.
func (r *Registry) AllAnalytics() []Analytics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Analytics, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, r.analytics[slug].snapshot(slug))
	}
	return out
}
