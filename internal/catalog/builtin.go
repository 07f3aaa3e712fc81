package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/registry"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Builtin returns the embedded sample catalog.
func Builtin() ([]modes.Profile, error) {
	l, err := NewLoader(DefaultAPIConstraint)
	if err != nil {
		return nil, err
	}
	return l.Parse("builtin.yaml", builtinYAML)
}

// Registrar accepts profiles. *registry.Registry implements it.
type Registrar interface {
	Register(p modes.Profile, opts ...registry.RegisterOption) (modes.Profile, error)
}

// RegisterAll registers profiles in order and keeps going past failures. It returns
// how many were registered and every failure joined.
func RegisterAll(reg Registrar, profiles []modes.Profile) (int, error) {
	var (
		n    int
		errs []error
	)
	for _, p := range profiles {
		if _, err := reg.Register(p); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// Source describes where a registry is populated from.
type Source struct {
	Builtin  bool
	Patterns []string
}

// Populate registers the builtin catalog (when enabled) followed by the files matching
// src.Patterns. A load failure aborts before anything is registered; registration
// failures are joined and returned alongside the count that did register.
func (l *Loader) Populate(ctx context.Context, reg Registrar, src Source) (int, error) {
	var profiles []modes.Profile
	if src.Builtin {
		builtin, err := Builtin()
		if err != nil {
			return 0, fmt.Errorf("load builtin catalog: %w", err)
		}
		profiles = append(profiles, builtin...)
	}
	if len(src.Patterns) > 0 {
		files, err := l.Load(ctx, src.Patterns)
		if err != nil {
			return 0, err
		}
		profiles = append(profiles, files...)
	}

	n, err := RegisterAll(reg, profiles)
	if err != nil {
		l.log.Warn().Err(err).Int("registered", n).Int("total", len(profiles)).Msg("some profiles were not registered")
	} else {
		l.log.Info().Int("registered", n).Msg("catalog loaded")
	}
	return n, err
}
