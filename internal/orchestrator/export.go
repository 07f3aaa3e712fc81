package orchestrator

import (
	"time"
)

// ExportVersion tags the layout of Export. Bump the major version on breaking changes.
const ExportVersion = "1.0.0"

// AnalyticsSummary condenses one profile's usage record.
type AnalyticsSummary struct {
	Slug            string         `json:"slug" yaml:"slug"`
	TotalUsageCount int            `json:"total_usage_count" yaml:"total_usage_count"`
	Operations      map[string]int `json:"operations" yaml:"operations"`
	RecentEvents    int            `json:"recent_events" yaml:"recent_events"`
	LastUsed        *time.Time     `json:"last_used,omitempty" yaml:"last_used,omitempty"`
}

// Export is a serializable snapshot of the engine. The orchestrator never writes it
// anywhere itself.
type Export struct {
	Version        string             `json:"version" yaml:"version"`
	ExportedAt     time.Time          `json:"exported_at" yaml:"exported_at"`
	ProfileCount   int                `json:"profile_count" yaml:"profile_count"`
	ActiveSlug     string             `json:"active_slug,omitempty" yaml:"active_slug,omitempty"`
	TierCounts     map[int]int        `json:"tier_counts" yaml:"tier_counts"`
	CategoryCounts map[string]int     `json:"category_counts" yaml:"category_counts"`
	SessionCount   int                `json:"session_count" yaml:"session_count"`
	Analytics      []AnalyticsSummary `json:"analytics" yaml:"analytics"`
	History        []HistoryEntry     `json:"history" yaml:"history"`
}

// ExportConfig builds an Export from the current registry and session state.
func (o *Orchestrator) ExportConfig() Export {
	stats := o.GetEcosystemStats()

	all := o.registry.AllAnalytics()
	summaries := make([]AnalyticsSummary, 0, len(all))
	for _, a := range all {
		summaries = append(summaries, AnalyticsSummary{
			Slug:            a.Slug,
			TotalUsageCount: a.TotalUsageCount,
			Operations:      a.Operations,
			RecentEvents:    len(a.Recent),
			LastUsed:        a.LastUsed,
		})
	}

	return Export{
		Version:        ExportVersion,
		ExportedAt:     stats.Timestamp,
		ProfileCount:   stats.ProfileCount,
		ActiveSlug:     stats.ActiveSlug,
		TierCounts:     stats.TierCounts,
		CategoryCounts: stats.CategoryCounts,
		SessionCount:   stats.SessionCount,
		Analytics:      summaries,
		History:        o.History(),
	}
}
