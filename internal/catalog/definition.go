// Package catalog loads profile definitions from YAML catalog files. A catalog file
// carries an api_version and a list of modes:
//
//	api_version: "1.0"
//	modes:
//	  - slug: backend-dev
//	    tier: 3
//	    category: backend
//	    expertise: [go, postgres]
//
// Every document is validated against the JSON Schema generated from File before it
// is decoded, so unknown keys and out-of-range tiers are rejected with a path to the
// offending field.
package catalog

import (
	"errors"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

// DefaultAPIConstraint accepts every 1.x catalog.
const DefaultAPIConstraint = "^1.0"

var (
	// ErrInvalidDocument wraps schema and decoding failures of a catalog document.
	ErrInvalidDocument = errors.New("invalid catalog document")
	// ErrUnsupportedVersion is returned when api_version fails the loader's constraint.
	ErrUnsupportedVersion = errors.New("unsupported catalog api_version")
)

// File is one catalog document.
type File struct {
	APIVersion string       `json:"api_version" yaml:"api_version" jsonschema:"minLength=1,description=Semantic version of the catalog format"`
	Modes      []Definition `json:"modes" yaml:"modes"`
}

// Definition is the on-disk form of a profile.
type Definition struct {
	Slug        string `json:"slug" yaml:"slug" jsonschema:"pattern=^[a-z0-9][a-z0-9_-]*$"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Tier        int    `json:"tier" yaml:"tier" jsonschema:"minimum=1,maximum=10"`
	Category    string `json:"category" yaml:"category" jsonschema:"minLength=1"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Tools        []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	Permissions  []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Expertise    []string `json:"expertise,omitempty" yaml:"expertise,omitempty"`
	Frameworks   []string `json:"frameworks,omitempty" yaml:"frameworks,omitempty"`
	Languages    []string `json:"languages,omitempty" yaml:"languages,omitempty"`
	Patterns     []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`

	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// Profile converts the definition into an unregistered profile.
func (d Definition) Profile() modes.Profile {
	return modes.Profile{
		Slug:         d.Slug,
		DisplayName:  d.DisplayName,
		Tier:         d.Tier,
		Category:     d.Category,
		Description:  d.Description,
		Capabilities: d.Capabilities,
		Tools:        d.Tools,
		Permissions:  d.Permissions,
		Expertise:    d.Expertise,
		Frameworks:   d.Frameworks,
		Languages:    d.Languages,
		Patterns:     d.Patterns,
		ParentSlug:   d.Parent,
	}
}
