// Package lifecycle runs one profile through its activation state machine:
//
//	Inactive -> Activating -> Active -> Deactivating -> Inactive
//
// Any hook failure, panic or timeout moves the profile to Error, which is only left
// by a fresh activation attempt. Hooks run strictly in order, each under its own
// deadline.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/bus"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

const (
	// DefaultHookTimeout bounds each hook when no timeout is configured.
	DefaultHookTimeout = 30 * time.Second

	maxTransitions = 100
)

// Store is the slice of the registry a controller needs.
type Store interface {
	Get(slug string) (modes.Profile, error)
	Behavior(slug string) (modes.Behavior, error)
	TrackUsage(slug, operation string, d time.Duration)
	SetState(slug string, state modes.State) error
	RecordActivation(slug string, at time.Time) error
	Now() time.Time
}

// Transition records one state change for history and debugging.
type Transition struct {
	From      modes.State `json:"from"`
	To        modes.State `json:"to"`
	Trigger   string      `json:"trigger"`
	Timestamp time.Time   `json:"timestamp"`
}

// Controller drives the lifecycle of a single profile.
type Controller struct {
	// opMu serializes Activate, Execute and Deactivate. It may be held while
	// calling the store; mu never is.
	opMu sync.Mutex
	mu   sync.RWMutex

	slug     string
	store    Store
	behavior modes.Behavior

	state       modes.State
	base        modes.Context
	context     modes.Context
	runtime     *modes.Runtime
	lastErr     error
	transitions []Transition

	hookTimeout time.Duration
	publisher   bus.Publisher
	log         zerolog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithHookTimeout sets the per-hook deadline.
func WithHookTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.hookTimeout = d
		}
	}
}

// WithBaseContext sets the context every activation context is merged onto.
func WithBaseContext(base modes.Context) Option {
	return func(c *Controller) { c.base = base.Clone() }
}

// WithPublisher sets where lifecycle events are published.
func WithPublisher(p bus.Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithLogger sets the controller logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New creates a controller for a registered profile.
func New(store Store, slug string, opts ...Option) (*Controller, error) {
	p, err := store.Get(slug)
	if err != nil {
		return nil, err
	}
	behavior, err := store.Behavior(p.Slug)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		slug:        p.Slug,
		store:       store,
		behavior:    behavior,
		state:       modes.StateInactive,
		hookTimeout: DefaultHookTimeout,
		transitions: make([]Transition, 0, 16),
		log:         log.With().Str("component", "lifecycle").Str("slug", p.Slug).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Slug returns the profile this controller drives.
func (c *Controller) Slug() string { return c.slug }

// State returns the current lifecycle state.
func (c *Controller) State() modes.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsActive reports whether the profile is Active.
func (c *Controller) IsActive() bool {
	return c.State() == modes.StateActive
}

// Stats returns the profile's activation counters.
func (c *Controller) Stats() (modes.Stats, error) {
	p, err := c.store.Get(c.slug)
	if err != nil {
		return modes.Stats{}, err
	}
	return p.Stats, nil
}

// Context returns the context of the current or last activation.
func (c *Controller) Context() modes.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context.Clone()
}

// LastError returns the error that moved the profile to Error, if any.
func (c *Controller) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Transitions returns the recorded state changes, oldest first.
func (c *Controller) Transitions() []Transition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Transition, len(c.transitions))
	copy(out, c.transitions)
	return out
}

// Activate runs pre-activate, load-tools, load-capabilities and on-activate in order.
// It is allowed from Inactive and Error. A failing hook leaves the profile in Error
// and returns a *modes.HookError wrapping modes.ErrActivationFailed.
func (c *Controller) Activate(ctx context.Context, activation modes.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.begin(modes.StateActivating, "activate"); err != nil {
		return err
	}

	p, err := c.store.Get(c.slug)
	if err != nil {
		return c.fail("activate", modes.HookPreActivate, modes.ErrActivationFailed, err)
	}
	merged := c.base.Merge(activation)
	rt := modes.NewRuntime(p, merged)

	steps := []struct {
		hook modes.Hook
		run  func(context.Context, *modes.Runtime) error
	}{
		{modes.HookPreActivate, c.behavior.PreActivate},
		{modes.HookLoadTools, c.behavior.LoadTools},
		{modes.HookLoadCapabilities, c.behavior.LoadCapabilities},
		{modes.HookOnActivate, c.behavior.OnActivate},
	}
	for _, step := range steps {
		run := step.run
		if err := c.runHook(ctx, step.hook, c.hookTimeout, func(hctx context.Context) error {
			return run(hctx, rt)
		}); err != nil {
			return c.fail("activate", step.hook, modes.ErrActivationFailed, err)
		}
	}

	at := c.store.Now()
	c.mu.Lock()
	c.runtime = rt
	c.context = merged
	c.lastErr = nil
	c.transition(modes.StateActive, "activate")
	c.mu.Unlock()

	c.syncState(modes.StateActive)
	if err := c.store.RecordActivation(c.slug, at); err != nil {
		c.log.Warn().Err(err).Msg("record activation")
	}
	c.store.TrackUsage(c.slug, "activate", 0)

	c.log.Info().Str("domain", merged.Domain).Str("complexity", merged.Complexity).Msg("mode activated")
	c.emit(bus.EventModeActivated, func(e *bus.Event) {
		e.Success = true
		e.Tier = p.Tier
		e.Details = merged.Domain
	})
	return nil
}

// Deactivate runs pre-deactivate, on-deactivate and cleanup in order. It is only
// allowed from Active. A failing hook leaves the profile in Error and returns a
// *modes.HookError wrapping modes.ErrDeactivationFailed.
func (c *Controller) Deactivate(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.begin(modes.StateDeactivating, "deactivate"); err != nil {
		return err
	}

	c.mu.RLock()
	rt := c.runtime
	c.mu.RUnlock()
	if rt == nil {
		p, err := c.store.Get(c.slug)
		if err != nil {
			return c.fail("deactivate", modes.HookPreDeactivate, modes.ErrDeactivationFailed, err)
		}
		rt = modes.NewRuntime(p, c.Context())
	}

	steps := []struct {
		hook modes.Hook
		run  func(context.Context, *modes.Runtime) error
	}{
		{modes.HookPreDeactivate, c.behavior.PreDeactivate},
		{modes.HookOnDeactivate, c.behavior.OnDeactivate},
		{modes.HookCleanup, c.behavior.Cleanup},
	}
	for _, step := range steps {
		run := step.run
		if err := c.runHook(ctx, step.hook, c.hookTimeout, func(hctx context.Context) error {
			return run(hctx, rt)
		}); err != nil {
			return c.fail("deactivate", step.hook, modes.ErrDeactivationFailed, err)
		}
	}

	c.mu.Lock()
	c.runtime = nil
	c.transition(modes.StateInactive, "deactivate")
	c.mu.Unlock()

	c.syncState(modes.StateInactive)
	c.store.TrackUsage(c.slug, "deactivate", 0)

	c.log.Info().Msg("mode deactivated")
	c.emit(bus.EventModeDeactivated, func(e *bus.Event) { e.Success = true })
	return nil
}

// Execute runs task through the on-execute hook. The profile does not need to be
// Active. A task requiring capabilities or tools the profile lacks fails with
// modes.ErrCapabilityMismatch before any hook runs, and never changes state.
func (c *Controller) Execute(ctx context.Context, task modes.Task, opts modes.ExecOptions) modes.Result {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	p, err := c.store.Get(c.slug)
	if err != nil {
		return failure(err, 0)
	}

	missing := append(p.MissingCapabilities(task.RequiredCapabilities), p.MissingTools(task.RequiredTools)...)
	if len(missing) > 0 {
		res := failure(fmt.Errorf("%s lacks %v: %w", c.slug, missing, modes.ErrCapabilityMismatch), 0)
		res.Missing = missing
		c.log.Debug().Strs("missing", missing).Msg("task rejected")
		return res
	}

	// Each call gets its own runtime so an abandoned hook never touches
	// the one later activations and cleanups mutate.
	c.mu.RLock()
	rt := c.runtime
	if rt != nil {
		rt = rt.Clone()
	}
	execCtx := c.context
	c.mu.RUnlock()
	if rt == nil {
		rt = modes.NewRuntime(p, c.base.Merge(execCtx))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.hookTimeout
	}

	var output any
	start := time.Now()
	err = c.runHook(ctx, modes.HookOnExecute, timeout, func(hctx context.Context) error {
		out, err := c.behavior.OnExecute(hctx, rt, task)
		output = out
		return err
	})
	elapsed := time.Since(start)
	c.store.TrackUsage(c.slug, "execute", elapsed)

	var res modes.Result
	if err != nil {
		res = failure(fmt.Errorf("%s: %w: %w", c.slug, modes.ErrExecutionFailed, err), elapsed)
		c.log.Warn().Err(err).Str("task", task.Description).Msg("task failed")
	} else {
		res = modes.Result{
			Success:    true,
			Output:     output,
			Duration:   elapsed,
			DurationMs: elapsed.Milliseconds(),
		}
	}

	c.emit(bus.EventTaskExecuted, func(e *bus.Event) {
		e.Operation = "execute"
		e.Success = res.Success
		e.DurationMs = res.DurationMs
		e.Details = task.Description
		e.Error = res.ErrorMessage
	})
	return res
}

// begin validates and records the move into a transient state.
func (c *Controller) begin(next modes.State, trigger string) error {
	c.mu.Lock()
	from := c.state
	if !from.CanTransition(next) {
		c.mu.Unlock()
		return &modes.TransitionError{Slug: c.slug, From: from, To: next}
	}
	c.transition(next, trigger)
	c.mu.Unlock()

	c.syncState(next)
	return nil
}

// fail moves the profile to Error and returns the hook error.
func (c *Controller) fail(trigger string, hook modes.Hook, kind, cause error) error {
	herr := &modes.HookError{Slug: c.slug, Hook: hook, Kind: kind, Err: cause}

	c.mu.Lock()
	c.runtime = nil
	c.lastErr = herr
	c.transition(modes.StateError, trigger)
	c.mu.Unlock()

	c.syncState(modes.StateError)
	c.log.Error().Err(cause).Str("hook", string(hook)).Msg(trigger + " failed")
	c.emit(bus.EventModeError, func(e *bus.Event) {
		e.Operation = trigger
		e.Hook = string(hook)
		e.Error = herr.Error()
	})
	return herr
}

// transition must be called with mu held.
func (c *Controller) transition(to modes.State, trigger string) {
	c.transitions = append(c.transitions, Transition{
		From:      c.state,
		To:        to,
		Trigger:   trigger,
		Timestamp: time.Now(),
	})
	if len(c.transitions) > maxTransitions {
		c.transitions = c.transitions[len(c.transitions)-maxTransitions:]
	}
	c.state = to
}

func (c *Controller) syncState(state modes.State) {
	if err := c.store.SetState(c.slug, state); err != nil {
		c.log.Warn().Err(err).Str("state", string(state)).Msg("sync state")
	}
}

// runHook runs fn under its own deadline and converts panics into errors. A hook
// that outlives its deadline is abandoned; it should honor ctx to exit promptly.
func (c *Controller) runHook(ctx context.Context, hook modes.Hook, timeout time.Duration, fn func(context.Context) error) error {
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in %s: %v", hook, r)
			}
		}()
		done <- fn(hctx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(hctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%s after %s: %w", hook, timeout, modes.ErrHookTimeout)
		}
		return err
	case <-hctx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s after %s: %w", hook, timeout, modes.ErrHookTimeout)
	}
}

func (c *Controller) emit(t bus.EventType, fill func(*bus.Event)) {
	event := bus.NewEvent(t)
	event.Slug = c.slug
	event.State = string(c.State())
	fill(&event)
	if err := bus.Emit(c.publisher, event); err != nil {
		c.log.Debug().Err(err).Msg("publish event")
	}
}

func failure(err error, elapsed time.Duration) modes.Result {
	return modes.Result{
		Success:      false,
		Err:          err,
		ErrorMessage: err.Error(),
		Duration:     elapsed,
		DurationMs:   elapsed.Milliseconds(),
	}
}
