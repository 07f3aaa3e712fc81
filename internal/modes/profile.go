// Package modes defines capability profiles ("modes"): the immutable description of a
// specialization, its lifecycle states, and the behavior strategy that drives activation
// and task execution.
package modes

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinTier and MaxTier bound the capability bands a profile may belong to.
	MinTier = 1
	MaxTier = 10
)

// Profile describes one specialization. The slug is the registry key and never changes
// once registered; Tier is fixed at registration as well.
type Profile struct {
	Slug        string `json:"slug" yaml:"slug"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Tier        int    `json:"tier" yaml:"tier"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Behavioral sets: checked by Execute preconditions.
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Tools        []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	Permissions  []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`

	// Informational tags. Only Expertise feeds scoring.
	Expertise  []string `json:"expertise,omitempty" yaml:"expertise,omitempty"`
	Frameworks []string `json:"frameworks,omitempty" yaml:"frameworks,omitempty"`
	Languages  []string `json:"languages,omitempty" yaml:"languages,omitempty"`
	Patterns   []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`

	ParentSlug string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	ChildSlugs []string `json:"children,omitempty" yaml:"children,omitempty"`

	// Runtime view, filled in by the registry on reads.
	State State `json:"state" yaml:"state"`
	Stats Stats `json:"stats" yaml:"stats"`
}

// Stats holds lifecycle counters for a profile.
type Stats struct {
	CreatedAt       time.Time  `json:"created_at" yaml:"created_at"`
	LastActivated   *time.Time `json:"last_activated,omitempty" yaml:"last_activated,omitempty"`
	ActivationCount int        `json:"activation_count" yaml:"activation_count"`
}

// Name returns the display name, falling back to the slug.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Slug
}

// Validate checks the fields a registry requires before accepting a profile.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Slug) == "" {
		return &ValidationError{Field: "slug", Reason: "must not be empty"}
	}
	if p.Tier < MinTier || p.Tier > MaxTier {
		return &ValidationError{
			Field:  "tier",
			Reason: fmt.Sprintf("%d is outside [%d,%d]", p.Tier, MinTier, MaxTier),
		}
	}
	if strings.TrimSpace(p.Category) == "" {
		return &ValidationError{Field: "category", Reason: "must not be empty"}
	}
	if p.ParentSlug == p.Slug {
		return &ValidationError{Field: "parent", Reason: "a profile cannot be its own parent"}
	}
	return nil
}

// Normalize trims identifiers and deduplicates every set field.
func (p Profile) Normalize() Profile {
	p.Slug = strings.TrimSpace(p.Slug)
	p.Category = strings.TrimSpace(p.Category)
	p.ParentSlug = strings.TrimSpace(p.ParentSlug)
	p.Capabilities = NormalizeSet(p.Capabilities)
	p.Tools = NormalizeSet(p.Tools)
	p.Permissions = NormalizeSet(p.Permissions)
	p.Expertise = NormalizeSet(p.Expertise)
	p.Frameworks = NormalizeSet(p.Frameworks)
	p.Languages = NormalizeSet(p.Languages)
	p.Patterns = NormalizeSet(p.Patterns)
	return p
}

// Clone returns a deep copy so callers cannot mutate registry-owned slices.
func (p Profile) Clone() Profile {
	c := p
	c.Capabilities = cloneStrings(p.Capabilities)
	c.Tools = cloneStrings(p.Tools)
	c.Permissions = cloneStrings(p.Permissions)
	c.Expertise = cloneStrings(p.Expertise)
	c.Frameworks = cloneStrings(p.Frameworks)
	c.Languages = cloneStrings(p.Languages)
	c.Patterns = cloneStrings(p.Patterns)
	c.ChildSlugs = cloneStrings(p.ChildSlugs)
	if p.Stats.LastActivated != nil {
		t := *p.Stats.LastActivated
		c.Stats.LastActivated = &t
	}
	return c
}

// HasExpertise reports whether domain is an exact member of the expertise tags.
func (p Profile) HasExpertise(domain string) bool {
	return contains(p.Expertise, domain)
}

// MissingCapabilities returns the required capabilities the profile lacks.
func (p Profile) MissingCapabilities(required []string) []string {
	return missing(required, p.Capabilities)
}

// MissingTools returns the required tools the profile lacks.
func (p Profile) MissingTools(required []string) []string {
	return missing(required, p.Tools)
}

// NormalizeSet trims entries, drops empties and duplicates, and keeps first-seen order.
func NormalizeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Union merges sets, keeping the order of base followed by new entries from extra.
func Union(base, extra []string) []string {
	merged := make([]string, 0, len(base)+len(extra))
	merged = append(merged, base...)
	merged = append(merged, extra...)
	return NormalizeSet(merged)
}

func missing(required, have []string) []string {
	var out []string
	for _, r := range NormalizeSet(required) {
		if !contains(have, r) {
			out = append(out, r)
		}
	}
	return out
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
