// Package orchestrator provides the session-level coordination layer: it keeps at
// most one profile active, sequences switches between profiles, records the switch
// history and derives ecosystem statistics from the registry.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/bus"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/lifecycle"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/logging"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/registry"
)

// Switcher is the surface the control plane and CLI drive.
type Switcher interface {
	SwitchMode(ctx context.Context, slug string, c modes.Context) (*HistoryEntry, error)
	DeactivateActive(ctx context.Context) error
	ExecuteActive(ctx context.Context, task modes.Task, opts modes.ExecOptions) (modes.Result, error)
	Execute(ctx context.Context, slug string, task modes.Task, opts modes.ExecOptions) (modes.Result, error)
	Active() (string, bool)
	State(slug string) (modes.State, error)
	History() []HistoryEntry
	GetRecommendations(c modes.Context) []registry.Recommendation
	SearchModes(query string) registry.SearchResults
	GetEcosystemStats() EcosystemStats
	ExportConfig() Export
	Registry() *registry.Registry
}

// Verify Orchestrator implements Switcher at compile time.
var _ Switcher = (*Orchestrator)(nil)

// Config configures the Orchestrator.
type Config struct {
	// HookTimeout bounds every lifecycle hook. Zero uses lifecycle.DefaultHookTimeout.
	HookTimeout time.Duration

	// BaseContext is merged under every activation context.
	BaseContext modes.Context

	Publisher bus.Publisher
	Logger    *zerolog.Logger

	// Now overrides the clock. Defaults to the registry clock.
	Now func() time.Time
}

// Orchestrator owns the single active profile of a session.
type Orchestrator struct {
	// opMu serializes switches, deactivation and active execution.
	opMu sync.Mutex
	// mu guards the fields below for concurrent readers.
	mu sync.RWMutex

	registry    *registry.Registry
	controllers map[string]*lifecycle.Controller

	active         string
	history        []HistoryEntry
	todayDate      string
	todayUsed      map[string]struct{}
	sessionCount   int
	switchCount    int
	failedSwitches int
	startedAt      time.Time

	config *Config
	now    func() time.Time
	log    zerolog.Logger
}

// New creates an orchestrator over reg. A nil cfg uses defaults.
func New(reg *registry.Registry, cfg *Config) *Orchestrator {
	if cfg == nil {
		cfg = &Config{}
	}
	o := &Orchestrator{
		registry:    reg,
		controllers: make(map[string]*lifecycle.Controller),
		todayUsed:   make(map[string]struct{}),
		config:      cfg,
		now:         reg.Now,
		log:         log.With().Str("component", "orchestrator").Logger(),
	}
	if cfg.Now != nil {
		o.now = cfg.Now
	}
	if cfg.Logger != nil {
		o.log = cfg.Logger.With().Str("component", "orchestrator").Logger()
	}
	o.startedAt = o.now()
	return o
}

// Registry returns the registry the orchestrator delegates to.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// Active returns the slug of the active profile, if any.
func (o *Orchestrator) Active() (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active, o.active != ""
}

// State returns the lifecycle state of slug under this orchestrator.
func (o *Orchestrator) State(slug string) (modes.State, error) {
	p, err := o.registry.Get(slug)
	if err != nil {
		return "", err
	}
	return p.State, nil
}

// SwitchMode deactivates the active profile, even when it is slug itself, then
// activates slug. An unknown slug aborts before anything is deactivated. A failed
// activation leaves no profile active; the previous one is not restored.
func (o *Orchestrator) SwitchMode(ctx context.Context, slug string, c modes.Context) (*HistoryEntry, error) {
	slug = strings.TrimSpace(slug)
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if !o.registry.Has(slug) {
		err := &SwitchError{Slug: slug, Stage: StageLookup, Err: fmt.Errorf("%q: %w", slug, modes.ErrNotFound)}
		o.recordFailure(slug, "", err)
		return nil, err
	}

	o.mu.Lock()
	o.switchCount++
	previous := o.active
	o.mu.Unlock()

	if previous != "" {
		if err := o.deactivate(ctx, previous); err != nil {
			serr := &SwitchError{Slug: slug, Previous: previous, Stage: StageDeactivate, Err: err}
			o.recordFailure(slug, previous, serr)
			return nil, serr
		}
	}

	ctrl, err := o.controller(slug)
	if err == nil {
		err = ctrl.Activate(ctx, c)
	}
	if err != nil {
		serr := &SwitchError{Slug: slug, Previous: previous, Stage: StageActivate, Err: err}
		o.recordFailure(slug, previous, serr)
		return nil, serr
	}

	now := o.now()
	entry := HistoryEntry{
		ID:        uuid.NewString(),
		Slug:      slug,
		StartedAt: now,
		Context:   c.Clone(),
	}

	o.mu.Lock()
	o.history = append(o.history, entry)
	o.active = slug
	o.markUsedLocked(slug, now)
	o.sessionCount++
	o.mu.Unlock()

	o.log.Info().Str("slug", slug).Str("previous", previous).Msg("mode switched")
	event := bus.NewEvent(bus.EventModeSwitched)
	event.Slug = slug
	event.Previous = previous
	event.State = string(modes.StateActive)
	event.Success = true
	o.publish(event)

	out := entry.clone()
	return &out, nil
}

// DeactivateActive deactivates the active profile and clears it.
func (o *Orchestrator) DeactivateActive(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	active, ok := o.Active()
	if !ok {
		return modes.ErrNoActiveMode
	}
	return o.deactivate(ctx, active)
}

// ExecuteActive runs task against the active profile.
func (o *Orchestrator) ExecuteActive(ctx context.Context, task modes.Task, opts modes.ExecOptions) (modes.Result, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	active, ok := o.Active()
	if !ok {
		return modes.Result{}, modes.ErrNoActiveMode
	}
	ctrl, err := o.controller(active)
	if err != nil {
		return modes.Result{}, err
	}
	return ctrl.Execute(ctx, task, opts), nil
}

// Execute runs task against any registered profile, active or not.
func (o *Orchestrator) Execute(ctx context.Context, slug string, task modes.Task, opts modes.ExecOptions) (modes.Result, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	ctrl, err := o.controller(slug)
	if err != nil {
		return modes.Result{}, err
	}
	return ctrl.Execute(ctx, task, opts), nil
}

// deactivate backfills the open history entry, runs the deactivation hooks and
// clears the active slug whatever the outcome. Caller holds opMu.
func (o *Orchestrator) deactivate(ctx context.Context, slug string) error {
	o.mu.Lock()
	o.backfillLocked(o.now())
	o.mu.Unlock()

	ctrl, err := o.controller(slug)
	if err == nil {
		err = ctrl.Deactivate(ctx)
	}

	o.mu.Lock()
	o.active = ""
	o.mu.Unlock()

	if err != nil {
		o.log.Error().Err(err).Str("slug", slug).Msg("deactivation failed")
		return err
	}
	return nil
}

// controller returns the lifecycle controller for slug, creating it on first use.
// Caller holds opMu.
func (o *Orchestrator) controller(slug string) (*lifecycle.Controller, error) {
	slug = strings.TrimSpace(slug)
	if ctrl, ok := o.controllers[slug]; ok {
		return ctrl, nil
	}
	opts := []lifecycle.Option{
		lifecycle.WithHookTimeout(o.config.HookTimeout),
		lifecycle.WithBaseContext(o.config.BaseContext),
		lifecycle.WithPublisher(o.config.Publisher),
		lifecycle.WithLogger(logging.Component("lifecycle").With().Str("slug", slug).Logger()),
	}
	ctrl, err := lifecycle.New(o.registry, slug, opts...)
	if err != nil {
		return nil, err
	}
	o.controllers[slug] = ctrl
	return ctrl, nil
}

func (o *Orchestrator) recordFailure(slug, previous string, err error) {
	o.mu.Lock()
	o.failedSwitches++
	o.mu.Unlock()

	o.log.Warn().Err(err).Str("slug", slug).Str("previous", previous).Msg("switch failed")
	event := bus.NewEvent(bus.EventSwitchFailed)
	event.Slug = slug
	event.Previous = previous
	event.Error = err.Error()
	if serr, ok := err.(*SwitchError); ok {
		event.Details = serr.Stage
	}
	o.publish(event)
}

func (o *Orchestrator) publish(event bus.Event) {
	if err := bus.Emit(o.config.Publisher, event); err != nil {
		o.log.Debug().Err(err).Msg("publish event")
	}
}
