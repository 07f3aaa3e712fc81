package modes

// TierDefaults is the baseline a tier contributes to every profile in it.
type TierDefaults struct {
	Band         string
	Capabilities []string
	Tools        []string
	// Toolkit is loaded by the tier's on-activate hook.
	Toolkit []string
}

// tierTable holds defaults for the tiers that carry them. Tiers 5-10 only group
// profiles and contribute nothing.
var tierTable = map[int]TierDefaults{
	1: {
		Band:         "development",
		Capabilities: []string{"code-editing", "debugging"},
		Tools:        []string{"editor", "terminal"},
		Toolkit:      []string{"linter", "formatter", "test-runner"},
	},
	2: {
		Band:         "interface",
		Capabilities: []string{"ui-composition", "accessibility-review"},
		Tools:        []string{"component-library", "browser-devtools"},
		Toolkit:      []string{"component-inspector", "style-checker", "a11y-auditor"},
	},
	3: {
		Band:         "service",
		Capabilities: []string{"api-design", "data-modeling"},
		Tools:        []string{"http-client", "database-client"},
		Toolkit:      []string{"api-client", "schema-validator", "health-checker"},
	},
	4: {
		Band:         "model",
		Capabilities: []string{"model-evaluation", "dataset-curation"},
		Tools:        []string{"notebook", "experiment-tracker"},
		Toolkit:      []string{"model-registry", "dataset-loader", "eval-harness"},
	},
}

// complexityLabels maps tiers to the complexity label they satisfy in scoring.
var complexityLabels = map[int]string{
	1: "basic",
	2: "intermediate",
	3: "advanced",
	4: "expert",
}

// DefaultsForTier returns the tier's defaults and whether the tier has any.
func DefaultsForTier(tier int) (TierDefaults, bool) {
	d, ok := tierTable[tier]
	if !ok {
		return TierDefaults{}, false
	}
	return TierDefaults{
		Band:         d.Band,
		Capabilities: cloneStrings(d.Capabilities),
		Tools:        cloneStrings(d.Tools),
		Toolkit:      cloneStrings(d.Toolkit),
	}, true
}

// ComplexityLabel returns the complexity label for a tier, or "" for tiers 5-10.
func ComplexityLabel(tier int) string {
	return complexityLabels[tier]
}

// ApplyTierDefaults merges the tier's default capabilities and tools into p.
// Profile-declared entries keep their position ahead of the defaults.
func ApplyTierDefaults(p Profile) Profile {
	d, ok := tierTable[p.Tier]
	if !ok {
		return p
	}
	p.Capabilities = Union(p.Capabilities, d.Capabilities)
	p.Tools = Union(p.Tools, d.Tools)
	return p
}
