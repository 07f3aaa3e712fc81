// Package registry owns the catalog of capability profiles: the slug, tier and
// category indices, the inheritance links between profiles, per-profile usage
// analytics, and the search and recommendation engines built on top of them.
//
// All mutation is serialized behind one write lock; reads take the read lock and
// return copies, so callers never observe a partially applied registration.
package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/bus"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

// DefaultTopN is the number of entries SystemSnapshot ranks by default.
const DefaultTopN = 5

// entry is one registered profile plus the behavior that drives its lifecycle.
type entry struct {
	profile  modes.Profile
	behavior modes.Behavior
}

// Registry is the in-memory profile catalog.
type Registry struct {
	mu sync.RWMutex

	entries    map[string]*entry
	order      []string // registration order
	byCategory map[string][]string
	byTier     map[int][]string
	analytics  map[string]*analyticsRecord

	now       func() time.Time
	handler   modes.TaskHandler
	topN      int
	publisher bus.Publisher
	log       zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, mainly for windowed analytics in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithTaskHandler sets the handler plugged into default tier behaviors.
func WithTaskHandler(h modes.TaskHandler) Option {
	return func(r *Registry) { r.handler = h }
}

// WithTopN sets how many entries SystemSnapshot ranks.
func WithTopN(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.topN = n
		}
	}
}

// WithPublisher sets where registration events are published.
func WithPublisher(p bus.Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries:    make(map[string]*entry),
		byCategory: make(map[string][]string),
		byTier:     make(map[int][]string),
		analytics:  make(map[string]*analyticsRecord),
		now:        time.Now,
		topN:       DefaultTopN,
		log:        log.With().Str("component", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterOption tunes a single registration.
type RegisterOption func(*entry)

// WithBehavior attaches a caller-supplied behavior instead of the tier default.
func WithBehavior(b modes.Behavior) RegisterOption {
	return func(e *entry) {
		if b != nil {
			e.behavior = b
		}
	}
}

// Register validates p, merges its tier defaults and adds it to every index.
// A failed registration leaves the registry untouched.
func (r *Registry) Register(p modes.Profile, opts ...RegisterOption) (modes.Profile, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return modes.Profile{}, err
	}
	p = modes.ApplyTierDefaults(p)
	p.State = modes.StateInactive
	p.ChildSlugs = nil

	r.mu.Lock()
	if _, exists := r.entries[p.Slug]; exists {
		r.mu.Unlock()
		return modes.Profile{}, fmt.Errorf("register %q: %w", p.Slug, modes.ErrDuplicateSlug)
	}

	p.Stats = modes.Stats{CreatedAt: r.now()}
	e := &entry{profile: p, behavior: modes.BehaviorForTier(p.Tier, r.handler)}
	for _, opt := range opts {
		opt(e)
	}

	// Parents must already be registered; later registrations never relink.
	if p.ParentSlug != "" {
		if parent, ok := r.entries[p.ParentSlug]; ok {
			parent.profile.ChildSlugs = append(parent.profile.ChildSlugs, p.Slug)
		} else {
			r.log.Debug().Str("slug", p.Slug).Str("parent", p.ParentSlug).Msg("parent not registered, link skipped")
		}
	}

	r.entries[p.Slug] = e
	r.order = append(r.order, p.Slug)
	r.byCategory[p.Category] = append(r.byCategory[p.Category], p.Slug)
	r.byTier[p.Tier] = append(r.byTier[p.Tier], p.Slug)
	r.analytics[p.Slug] = newAnalyticsRecord()
	out := e.profile.Clone()
	r.mu.Unlock()

	r.log.Debug().Str("slug", p.Slug).Int("tier", p.Tier).Str("category", p.Category).Msg("profile registered")

	event := bus.NewEvent(bus.EventProfileRegistered)
	event.Slug = p.Slug
	event.Tier = p.Tier
	event.Success = true
	if err := bus.Emit(r.publisher, event); err != nil {
		r.log.Debug().Err(err).Msg("publish registration event")
	}
	return out, nil
}

// Get returns a copy of the profile registered under slug.
func (r *Registry) Get(slug string) (modes.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[strings.TrimSpace(slug)]
	if !ok {
		return modes.Profile{}, fmt.Errorf("%q: %w", slug, modes.ErrNotFound)
	}
	return e.profile.Clone(), nil
}

// Has reports whether slug is registered.
func (r *Registry) Has(slug string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[strings.TrimSpace(slug)]
	return ok
}

// Behavior returns the behavior attached to slug.
func (r *Registry) Behavior(slug string) (modes.Behavior, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[strings.TrimSpace(slug)]
	if !ok {
		return nil, fmt.Errorf("%q: %w", slug, modes.ErrNotFound)
	}
	return e.behavior, nil
}

// List returns every profile in registration order.
func (r *Registry) List() []modes.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.order)
}

// ListByTier returns the profiles of one tier in registration order.
func (r *Registry) ListByTier(tier int) []modes.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byTier[tier])
}

// ListByCategory returns the profiles of one category in registration order.
func (r *Registry) ListByCategory(category string) []modes.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byCategory[strings.TrimSpace(category)])
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Categories returns every category in first-registration order.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.byCategory))
	var out []string
	for _, slug := range r.order {
		c := r.entries[slug].profile.Category
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SetState records the lifecycle state reported for slug.
func (r *Registry) SetState(slug string, state modes.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[slug]
	if !ok {
		return fmt.Errorf("%q: %w", slug, modes.ErrNotFound)
	}
	e.profile.State = state
	return nil
}

// RecordActivation bumps the activation counter and stamps the activation time.
func (r *Registry) RecordActivation(slug string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[slug]
	if !ok {
		return fmt.Errorf("%q: %w", slug, modes.ErrNotFound)
	}
	e.profile.Stats.ActivationCount++
	e.profile.Stats.LastActivated = &at
	return nil
}

// Now returns the registry clock's current time.
func (r *Registry) Now() time.Time {
	return r.now()
}

// collect must be called with mu held.
func (r *Registry) collect(slugs []string) []modes.Profile {
	out := make([]modes.Profile, 0, len(slugs))
	for _, slug := range slugs {
		out = append(out, r.entries[slug].profile.Clone())
	}
	return out
}
