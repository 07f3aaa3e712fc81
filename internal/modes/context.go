package modes

// Context is the task context used for activation and recommendation.
type Context struct {
	Domain      string         `json:"domain,omitempty" yaml:"domain,omitempty"`
	Complexity  string         `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty" yaml:"preferences,omitempty"`
}

// Merge returns c overlaid with the non-empty fields of overlay. Preference keys in
// overlay win.
func (c Context) Merge(overlay Context) Context {
	out := c.Clone()
	if overlay.Domain != "" {
		out.Domain = overlay.Domain
	}
	if overlay.Complexity != "" {
		out.Complexity = overlay.Complexity
	}
	if len(overlay.Preferences) > 0 {
		if out.Preferences == nil {
			out.Preferences = make(map[string]any, len(overlay.Preferences))
		}
		for k, v := range overlay.Preferences {
			out.Preferences[k] = v
		}
	}
	return out
}

// Clone copies the preference map.
func (c Context) Clone() Context {
	out := c
	if c.Preferences != nil {
		out.Preferences = make(map[string]any, len(c.Preferences))
		for k, v := range c.Preferences {
			out.Preferences[k] = v
		}
	}
	return out
}

// IsZero reports whether no field is set.
func (c Context) IsZero() bool {
	return c.Domain == "" && c.Complexity == "" && len(c.Preferences) == 0
}
