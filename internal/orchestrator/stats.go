package orchestrator

import (
	"sort"
	"time"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/registry"
)

// EcosystemStats is derived on demand from the registry and session counters.
type EcosystemStats struct {
	Timestamp      time.Time      `json:"timestamp" yaml:"timestamp"`
	ProfileCount   int            `json:"profile_count" yaml:"profile_count"`
	ActiveSlug     string         `json:"active_slug,omitempty" yaml:"active_slug,omitempty"`
	TierCounts     map[int]int    `json:"tier_counts" yaml:"tier_counts"`
	CategoryCounts map[string]int `json:"category_counts" yaml:"category_counts"`
	TodayUsed      []string       `json:"today_used" yaml:"today_used"`
	SessionCount   int            `json:"session_count" yaml:"session_count"`
	SwitchCount    int            `json:"switch_count" yaml:"switch_count"`
	FailedSwitches int            `json:"failed_switches" yaml:"failed_switches"`
	TotalUsage     int            `json:"total_usage" yaml:"total_usage"`
	Uptime         time.Duration  `json:"uptime" yaml:"uptime"`
}

// GetRecommendations ranks profiles for c.
func (o *Orchestrator) GetRecommendations(c modes.Context) []registry.Recommendation {
	return o.registry.Recommend(c)
}

// SearchModes searches the registry.
func (o *Orchestrator) SearchModes(query string) registry.SearchResults {
	return o.registry.Search(query)
}

// GetEcosystemStats combines the registry snapshot with the session counters.
func (o *Orchestrator) GetEcosystemStats() EcosystemStats {
	snap := o.registry.SystemSnapshot()
	now := o.now()

	o.mu.RLock()
	defer o.mu.RUnlock()

	today := make([]string, 0, len(o.todayUsed))
	if o.todayDate == now.Format(time.DateOnly) {
		for slug := range o.todayUsed {
			today = append(today, slug)
		}
		sort.Strings(today)
	}

	return EcosystemStats{
		Timestamp:      now,
		ProfileCount:   snap.TotalProfiles,
		ActiveSlug:     o.active,
		TierCounts:     snap.TierCounts,
		CategoryCounts: snap.CategoryCounts,
		TodayUsed:      today,
		SessionCount:   o.sessionCount,
		SwitchCount:    o.switchCount,
		FailedSwitches: o.failedSwitches,
		TotalUsage:     snap.TotalUsage,
		Uptime:         now.Sub(o.startedAt),
	}
}
