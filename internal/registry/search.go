package registry

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

// tierMarker gates the tier group: only queries mentioning it are matched against tiers.
const tierMarker = "tier"

var tierQuery = regexp.MustCompile(`tier[\s\-_]*(\d+)`)

// SearchResults holds one group per searched field. Groups are independent, so a
// profile may show up in several of them.
type SearchResults struct {
	Name         []modes.Profile `json:"name"`
	Capabilities []modes.Profile `json:"capabilities"`
	Expertise    []modes.Profile `json:"expertise"`
	Category     []modes.Profile `json:"category"`
	Tier         []modes.Profile `json:"tier"`
}

// Total returns the number of hits across all groups, duplicates included.
func (s SearchResults) Total() int {
	return len(s.Name) + len(s.Capabilities) + len(s.Expertise) + len(s.Category) + len(s.Tier)
}

// Search matches query case-insensitively as a substring of each profile's name,
// capabilities, expertise and category. The tier group is only evaluated when the
// query contains "tier"; "tier 3", "tier-3" and "tier3" all select tier 3.
func (r *Registry) Search(query string) SearchResults {
	results := SearchResults{
		Name:         []modes.Profile{},
		Capabilities: []modes.Profile{},
		Expertise:    []modes.Profile{},
		Category:     []modes.Profile{},
		Tier:         []modes.Profile{},
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return results
	}
	tierMatch := tierMatcher(q)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, slug := range r.order {
		p := r.entries[slug].profile
		if strings.Contains(strings.ToLower(p.Name()), q) {
			results.Name = append(results.Name, p.Clone())
		}
		if anyContains(p.Capabilities, q) {
			results.Capabilities = append(results.Capabilities, p.Clone())
		}
		if anyContains(p.Expertise, q) {
			results.Expertise = append(results.Expertise, p.Clone())
		}
		if strings.Contains(strings.ToLower(p.Category), q) {
			results.Category = append(results.Category, p.Clone())
		}
		if tierMatch != nil && tierMatch(p.Tier) {
			results.Tier = append(results.Tier, p.Clone())
		}
	}
	return results
}

// tierMatcher returns nil when q does not mention a tier. A query naming a tier
// number matches that tier exactly, so "tier 1" never selects tier 10.
func tierMatcher(q string) func(int) bool {
	if !strings.Contains(q, tierMarker) {
		return nil
	}
	if m := tierQuery.FindStringSubmatch(q); m != nil {
		want, err := strconv.Atoi(m[1])
		if err == nil {
			return func(tier int) bool { return tier == want }
		}
	}
	return func(tier int) bool {
		return strings.Contains(TierText(tier), q)
	}
}

// TierText is the searchable text form of a tier.
func TierText(tier int) string {
	return tierMarker + " " + strconv.Itoa(tier)
}

func anyContains(set []string, q string) bool {
	for _, s := range set {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}
