package registry

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxSuggestions bounds Suggest results.
const maxSuggestions = 3

// Suggest returns registered slugs close to slug by edit distance, nearest first.
// It backs "did you mean" hints on NotFound errors.
func (r *Registry) Suggest(slug string) []string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil
	}
	limit := max(2, len(slug)/3)

	type candidate struct {
		slug string
		dist int
	}

	r.mu.RLock()
	var found []candidate
	for _, s := range r.order {
		lower := strings.ToLower(s)
		d := levenshtein.ComputeDistance(slug, lower)
		if d <= limit || strings.Contains(lower, slug) {
			found = append(found, candidate{slug: s, dist: d})
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].dist < found[j].dist
	})

	out := make([]string, 0, maxSuggestions)
	for _, c := range head(found, maxSuggestions) {
		out = append(out, c.slug)
	}
	return out
}
