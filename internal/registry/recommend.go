package registry

import (
	"math"
	"sort"
	"time"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

// Scoring weights.
const (
	domainWeight     = 0.4
	complexityWeight = 0.3
	usageCap         = 0.2
	usageDivisor     = 100.0
	recencyWeight    = 0.1
	recencyDays      = 7

	// MinScore is the exclusive lower bound a profile must beat to be recommended.
	MinScore = 0.5
	// MaxRecommendations caps the recommendation list.
	MaxRecommendations = 5
)

// Recommendation is a profile with its relevance score.
type Recommendation struct {
	Profile modes.Profile `json:"profile"`
	Score   float64       `json:"score"`
}

// Score computes the relevance of p for c given its usage history. The result is
// clamped to 1.0 and rounded to four decimals.
func Score(p modes.Profile, c modes.Context, usageCount int, lastUsed *time.Time, now time.Time) float64 {
	var score float64

	if c.Domain != "" && p.HasExpertise(c.Domain) {
		score += domainWeight
	}
	if c.Complexity != "" && modes.ComplexityLabel(p.Tier) == c.Complexity {
		score += complexityWeight
	}
	score += math.Min(usageCap, float64(usageCount)/usageDivisor)

	if lastUsed != nil {
		days := int(math.Floor(now.Sub(*lastUsed).Hours() / 24))
		if days < 0 {
			days = 0
		}
		if days < recencyDays {
			score += recencyWeight * float64(recencyDays-days) / recencyDays
		}
	}

	return round4(math.Min(1.0, score))
}

// Recommend ranks the registered profiles for c. Profiles scoring at or below
// MinScore are dropped; ties keep registration order.
func (r *Registry) Recommend(c modes.Context) []Recommendation {
	r.mu.RLock()
	now := r.now()
	recs := make([]Recommendation, 0, len(r.order))
	for _, slug := range r.order {
		p := r.entries[slug].profile
		a := r.analytics[slug]
		var lastUsed *time.Time
		if !a.lastUsed.IsZero() {
			t := a.lastUsed
			lastUsed = &t
		}
		s := Score(p, c, a.total, lastUsed, now)
		if s > MinScore {
			recs = append(recs, Recommendation{Profile: p.Clone(), Score: s})
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
