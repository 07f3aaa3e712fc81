package registry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

func searchFixture(t *testing.T) *Registry {
	t.Helper()
	r := New()

	fe := profile("frontend-dev", 2, "web")
	fe.DisplayName = "Frontend Developer"
	fe.Expertise = []string{"frontend", "react"}
	mustRegister(t, r, fe)

	be := profile("backend-dev", 3, "services")
	be.DisplayName = "Backend Developer"
	be.Capabilities = []string{"Frontend-Integration"}
	be.Expertise = []string{"backend"}
	mustRegister(t, r, be)

	ml := profile("ml-research", 10, "web-research")
	ml.DisplayName = ""
	ml.Expertise = []string{"training"}
	mustRegister(t, r, ml)

	return r
}

func TestSearchGroupsAreIndependent(t *testing.T) {
	r := searchFixture(t)

	res := r.Search("FRONTEND")
	assert.Equal(t, []string{"frontend-dev"}, slugs(res.Name))
	assert.Equal(t, []string{"backend-dev"}, slugs(res.Capabilities))
	assert.Equal(t, []string{"frontend-dev"}, slugs(res.Expertise))
	assert.Empty(t, res.Category)
	assert.Empty(t, res.Tier)
	assert.Equal(t, 3, res.Total())

	res = r.Search("web")
	assert.Equal(t, []string{"frontend-dev", "ml-research"}, slugs(res.Category))
}

func TestSearchNameFallsBackToSlug(t *testing.T) {
	r := searchFixture(t)
	assert.Equal(t, []string{"ml-research"}, slugs(r.Search("ml-res").Name))
}

func TestSearchEmptyQuery(t *testing.T) {
	r := searchFixture(t)
	for _, q := range []string{"", "   "} {
		res := r.Search(q)
		assert.NotNil(t, res.Name)
		assert.Zero(t, res.Total(), "query %q", q)
	}
}

func TestSearchTierRequiresMarker(t *testing.T) {
	r := searchFixture(t)

	assert.Empty(t, r.Search("3").Tier)
	assert.Equal(t, []string{"backend-dev"}, slugs(r.Search("Tier 3").Tier))
	assert.Equal(t, []string{"backend-dev"}, slugs(r.Search("tier-3").Tier))
	assert.Equal(t, []string{"backend-dev"}, slugs(r.Search("tier3").Tier))
	assert.Empty(t, r.Search("tier 1").Tier, "tier 1 must not select tier 10")
	assert.Equal(t, []string{"ml-research"}, slugs(r.Search("tier 10").Tier))
	assert.Len(t, r.Search("tier").Tier, 3)
}

func TestTierText(t *testing.T) {
	assert.Equal(t, "tier 7", TierText(7))
}

// =============================================================================
// RECOMMENDATION
// =============================================================================

func TestRecommendDomainAndComplexity(t *testing.T) {
	r := New()
	p := profile("frontend-dev", 2, "web")
	p.Expertise = []string{"frontend"}
	mustRegister(t, r, p)

	recs := r.Recommend(modes.Context{Domain: "frontend", Complexity: "intermediate"})
	require.Len(t, recs, 1)
	assert.Equal(t, "frontend-dev", recs[0].Profile.Slug)
	assert.Equal(t, 0.7, recs[0].Score)
}

func TestRecommendDropsLowScores(t *testing.T) {
	r := New()
	p := profile("frontend-dev", 2, "web")
	p.Expertise = []string{"frontend"}
	mustRegister(t, r, p)

	// Domain alone scores 0.4.
	assert.Empty(t, r.Recommend(modes.Context{Domain: "frontend"}))
	// Expertise is an exact membership test.
	assert.Empty(t, r.Recommend(modes.Context{Domain: "front", Complexity: "intermediate"}))
	assert.Empty(t, r.Recommend(modes.Context{}))
}

func TestRecommendTopFiveTiesKeepRegistrationOrder(t *testing.T) {
	r := New()
	for _, slug := range []string{"g", "f", "e", "d", "c", "b", "a"} {
		p := profile(slug, 1, "dev")
		p.Expertise = []string{"go"}
		mustRegister(t, r, p)
	}
	r.TrackUsage("a", "execute", 0)

	recs := r.Recommend(modes.Context{Domain: "go", Complexity: "basic"})
	require.Len(t, recs, MaxRecommendations)
	assert.Equal(t, "a", recs[0].Profile.Slug)
	assert.Equal(t, []string{"g", "f", "e", "d"}, []string{
		recs[1].Profile.Slug, recs[2].Profile.Slug, recs[3].Profile.Slug, recs[4].Profile.Slug,
	})
	for _, rec := range recs {
		assert.Greater(t, rec.Score, MinScore)
		assert.LessOrEqual(t, rec.Score, 1.0)
	}
}

func TestScoreComponents(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p := modes.Profile{Slug: "p", Tier: 4, Expertise: []string{"ml"}}

	assert.Equal(t, 0.0, Score(p, modes.Context{}, 0, nil, now))
	assert.Equal(t, 0.2, Score(p, modes.Context{}, 500, nil, now), "usage bonus is capped")
	assert.Equal(t, 0.05, Score(p, modes.Context{}, 5, nil, now))

	// Days are floored: 50 hours is two whole days.
	used := now.Add(-50 * time.Hour)
	assert.Equal(t, 0.0814, Score(p, modes.Context{}, 1, &used, now))

	stale := now.Add(-7 * 24 * time.Hour)
	assert.Equal(t, 0.0, Score(p, modes.Context{}, 0, &stale, now))

	full := Score(p, modes.Context{Domain: "ml", Complexity: "expert"}, 1000, &now, now)
	assert.Equal(t, 1.0, full)
}

func TestScoreNeverExceedsOne(t *testing.T) {
	now := time.Now()
	p := modes.Profile{Slug: "p", Tier: 1, Expertise: []string{"x"}}
	for usage := 0; usage < 400; usage += 7 {
		s := Score(p, modes.Context{Domain: "x", Complexity: "basic"}, usage, &now, now)
		assert.LessOrEqual(t, s, 1.0)
		assert.Equal(t, s, math.Round(s*1e4)/1e4)
	}
}

func TestRecommendUsesTrackedRecency(t *testing.T) {
	clock := newFakeClock()
	r := New(WithClock(clock.Now))
	p := profile("ml", 4, "ml")
	p.Expertise = []string{"ml"}
	mustRegister(t, r, p)

	r.TrackUsage("ml", "execute", 0)
	clock.Advance(24 * time.Hour)

	recs := r.Recommend(modes.Context{Domain: "ml", Complexity: "expert"})
	require.Len(t, recs, 1)
	// 0.4 + 0.3 + 0.01 + 0.1*6/7
	assert.Equal(t, 0.7957, recs[0].Score)
}
