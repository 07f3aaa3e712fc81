package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

// Loader reads catalog files into profiles.
type Loader struct {
	constraint  *semver.Constraints
	concurrency int
	log         zerolog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithConcurrency bounds how many files are parsed at once.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger sets the loader's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) { l.log = logger }
}

// NewLoader creates a loader that accepts documents whose api_version satisfies
// apiConstraint. An empty constraint means DefaultAPIConstraint.
func NewLoader(apiConstraint string, opts ...Option) (*Loader, error) {
	if strings.TrimSpace(apiConstraint) == "" {
		apiConstraint = DefaultAPIConstraint
	}
	c, err := semver.NewConstraint(apiConstraint)
	if err != nil {
		return nil, fmt.Errorf("parse api constraint %q: %w", apiConstraint, err)
	}
	l := &Loader{
		constraint:  c,
		concurrency: runtime.GOMAXPROCS(0),
		log:         log.With().Str("component", "catalog").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load expands patterns and parses every matching file. Profiles come back in
// pattern order, then file order within a pattern, then document order.
func (l *Loader) Load(ctx context.Context, patterns []string) ([]modes.Profile, error) {
	paths, err := Expand(patterns)
	if err != nil {
		return nil, err
	}
	return l.LoadFiles(ctx, paths)
}

// LoadFiles parses paths concurrently and concatenates the results in path order.
// The first failure cancels the remaining reads.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) ([]modes.Profile, error) {
	results := make([][]modes.Profile, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			profiles, err := l.LoadFile(path)
			if err != nil {
				return err
			}
			results[i] = profiles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []modes.Profile
	for _, profiles := range results {
		out = append(out, profiles...)
	}
	return out, nil
}

// LoadFile reads and parses a single catalog file.
func (l *Loader) LoadFile(path string) ([]modes.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	profiles, err := l.Parse(path, data)
	if err != nil {
		return nil, err
	}
	l.log.Debug().Str("path", path).Int("profiles", len(profiles)).Msg("catalog file parsed")
	return profiles, nil
}

// Parse decodes every YAML document in data. name only labels errors.
func (l *Loader) Parse(name string, data []byte) ([]modes.Profile, error) {
	schema, err := validator()
	if err != nil {
		return nil, err
	}

	var out []modes.Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for doc := 1; ; doc++ {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s: document %d: %w: %w", name, doc, ErrInvalidDocument, err)
		}

		var raw any
		if err := node.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%s: document %d: %w: %w", name, doc, ErrInvalidDocument, err)
		}
		value, err := jsonValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: document %d: %w: %w", name, doc, ErrInvalidDocument, err)
		}
		if err := schema.Validate(value); err != nil {
			return nil, fmt.Errorf("%s: document %d: %w: %w", name, doc, ErrInvalidDocument, err)
		}

		var f File
		if err := node.Decode(&f); err != nil {
			return nil, fmt.Errorf("%s: document %d: %w: %w", name, doc, ErrInvalidDocument, err)
		}
		if err := l.checkVersion(f.APIVersion); err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", name, doc, err)
		}

		for _, d := range f.Modes {
			out = append(out, d.Profile())
		}
	}
	return out, nil
}

func (l *Loader) checkVersion(raw string) error {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrUnsupportedVersion, raw, err)
	}
	if !l.constraint.Check(v) {
		return fmt.Errorf("%w %q: want %s", ErrUnsupportedVersion, raw, l.constraint)
	}
	return nil
}

// Expand resolves files and doublestar globs into a deduplicated file list. A literal
// path must exist; a glob may match nothing.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		pattern = filepath.Clean(pattern)

		if !isGlob(pattern) {
			info, err := os.Stat(pattern)
			if err != nil {
				return nil, fmt.Errorf("catalog path: %w", err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("catalog path %s is a directory; use a glob such as %s", pattern, filepath.Join(pattern, "*.yaml"))
			}
			add(pattern)
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
