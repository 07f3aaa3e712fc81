package registry

import (
	"sort"
	"time"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

// UsageRank is one row of the most-used ranking.
type UsageRank struct {
	Slug       string `json:"slug"`
	UsageCount int    `json:"usage_count"`
}

// Registration is one row of the most-recently-registered ranking.
type Registration struct {
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is an aggregate view of the registry at one instant.
type Snapshot struct {
	TotalProfiles  int                 `json:"total_profiles"`
	TotalUsage     int                 `json:"total_usage"`
	TierCounts     map[int]int         `json:"tier_counts"`
	CategoryCounts map[string]int      `json:"category_counts"`
	StateCounts    map[modes.State]int `json:"state_counts"`
	MostUsed       []UsageRank         `json:"most_used"`
	RecentlyAdded  []Registration      `json:"recently_added"`
}

// SystemSnapshot aggregates counts and the top-N rankings.
func (r *Registry) SystemSnapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		TotalProfiles:  len(r.order),
		TierCounts:     make(map[int]int, len(r.byTier)),
		CategoryCounts: make(map[string]int, len(r.byCategory)),
		StateCounts:    make(map[modes.State]int),
	}
	for tier, slugs := range r.byTier {
		snap.TierCounts[tier] = len(slugs)
	}
	for category, slugs := range r.byCategory {
		snap.CategoryCounts[category] = len(slugs)
	}

	used := make([]UsageRank, 0, len(r.order))
	for _, slug := range r.order {
		state := r.entries[slug].profile.State
		if state == "" {
			state = modes.StateInactive
		}
		snap.StateCounts[state]++

		n := r.analytics[slug].total
		snap.TotalUsage += n
		if n > 0 {
			used = append(used, UsageRank{Slug: slug, UsageCount: n})
		}
	}
	sort.SliceStable(used, func(i, j int) bool {
		return used[i].UsageCount > used[j].UsageCount
	})
	snap.MostUsed = head(used, r.topN)

	recent := make([]Registration, 0, r.topN)
	for i := len(r.order) - 1; i >= 0 && len(recent) < r.topN; i-- {
		p := r.entries[r.order[i]].profile
		recent = append(recent, Registration{Slug: p.Slug, CreatedAt: p.Stats.CreatedAt})
	}
	snap.RecentlyAdded = recent
	return snap
}

func head[T any](in []T, n int) []T {
	if len(in) > n {
		return in[:n]
	}
	return in
}
