package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/bus"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/registry"
)

// =============================================================================
// TEST BEHAVIORS
// =============================================================================

// scriptedBehavior records hook order and fails or panics on request.
type scriptedBehavior struct {
	modes.BaseBehavior

	mu      sync.Mutex
	calls   []modes.Hook
	failOn  modes.Hook
	panicOn modes.Hook
	blockOn modes.Hook
}

func (b *scriptedBehavior) step(ctx context.Context, h modes.Hook) error {
	b.mu.Lock()
	b.calls = append(b.calls, h)
	b.mu.Unlock()

	switch h {
	case b.panicOn:
		panic("hook exploded")
	case b.failOn:
		return errors.New("hook refused")
	case b.blockOn:
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (b *scriptedBehavior) Calls() []modes.Hook {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]modes.Hook(nil), b.calls...)
}

func (b *scriptedBehavior) PreActivate(ctx context.Context, _ *modes.Runtime) error {
	return b.step(ctx, modes.HookPreActivate)
}

func (b *scriptedBehavior) LoadTools(ctx context.Context, rt *modes.Runtime) error {
	if err := b.step(ctx, modes.HookLoadTools); err != nil {
		return err
	}
	return b.BaseBehavior.LoadTools(ctx, rt)
}

func (b *scriptedBehavior) LoadCapabilities(ctx context.Context, rt *modes.Runtime) error {
	if err := b.step(ctx, modes.HookLoadCapabilities); err != nil {
		return err
	}
	return b.BaseBehavior.LoadCapabilities(ctx, rt)
}

func (b *scriptedBehavior) OnActivate(ctx context.Context, _ *modes.Runtime) error {
	return b.step(ctx, modes.HookOnActivate)
}

func (b *scriptedBehavior) OnExecute(ctx context.Context, rt *modes.Runtime, task modes.Task) (any, error) {
	if err := b.step(ctx, modes.HookOnExecute); err != nil {
		return nil, err
	}
	return "done: " + task.Description, nil
}

func (b *scriptedBehavior) PreDeactivate(ctx context.Context, _ *modes.Runtime) error {
	return b.step(ctx, modes.HookPreDeactivate)
}

func (b *scriptedBehavior) OnDeactivate(ctx context.Context, _ *modes.Runtime) error {
	return b.step(ctx, modes.HookOnDeactivate)
}

func (b *scriptedBehavior) Cleanup(ctx context.Context, rt *modes.Runtime) error {
	if err := b.step(ctx, modes.HookCleanup); err != nil {
		return err
	}
	return b.BaseBehavior.Cleanup(ctx, rt)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []bus.Event
}

func (p *recordingPublisher) Publish(e bus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Types() []bus.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bus.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func setup(t *testing.T, b modes.Behavior, opts ...Option) (*Controller, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	var ropts []registry.RegisterOption
	if b != nil {
		ropts = append(ropts, registry.WithBehavior(b))
	}
	_, err := reg.Register(modes.Profile{
		Slug:         "alpha",
		Tier:         6,
		Category:     "dev",
		Capabilities: []string{"x", "y"},
		Tools:        []string{"t"},
	}, ropts...)
	require.NoError(t, err)

	c, err := New(reg, "alpha", opts...)
	require.NoError(t, err)
	return c, reg
}

// =============================================================================
// ACTIVATION
// =============================================================================

func TestActivateRunsHooksInOrder(t *testing.T) {
	b := &scriptedBehavior{}
	c, reg := setup(t, b)

	require.NoError(t, c.Activate(context.Background(), modes.Context{Domain: "go"}))

	assert.Equal(t, []modes.Hook{
		modes.HookPreActivate, modes.HookLoadTools, modes.HookLoadCapabilities, modes.HookOnActivate,
	}, b.Calls())
	assert.Equal(t, modes.StateActive, c.State())
	assert.Equal(t, "go", c.Context().Domain)

	p, err := reg.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, modes.StateActive, p.State)
	assert.Equal(t, 1, p.Stats.ActivationCount)
	assert.NotNil(t, p.Stats.LastActivated)

	a, _ := reg.Analytics("alpha")
	assert.Equal(t, 1, a.Operations["activate"])
}

func TestActivateTwiceIsInvalidTransition(t *testing.T) {
	c, _ := setup(t, nil)
	require.NoError(t, c.Activate(context.Background(), modes.Context{}))

	err := c.Activate(context.Background(), modes.Context{})
	var terr *modes.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, modes.ErrInvalidTransition)
	assert.Equal(t, modes.StateActive, terr.From)
	assert.Equal(t, modes.StateActive, c.State())
}

func TestActivateHookFailureMovesToError(t *testing.T) {
	b := &scriptedBehavior{failOn: modes.HookLoadTools}
	pub := &recordingPublisher{}
	c, reg := setup(t, b, WithPublisher(pub))

	err := c.Activate(context.Background(), modes.Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, modes.ErrActivationFailed)

	var herr *modes.HookError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, modes.HookLoadTools, herr.Hook)

	assert.Equal(t, modes.StateError, c.State())
	assert.Equal(t, err, c.LastError())
	assert.Equal(t, []modes.Hook{modes.HookPreActivate, modes.HookLoadTools}, b.Calls())

	p, _ := reg.Get("alpha")
	assert.Equal(t, modes.StateError, p.State)
	assert.Zero(t, p.Stats.ActivationCount)
	assert.Equal(t, []bus.EventType{bus.EventModeError}, pub.Types())

	// Error is only cleared by a fresh activation.
	assert.ErrorIs(t, c.Deactivate(context.Background()), modes.ErrInvalidTransition)
	b.failOn = ""
	require.NoError(t, c.Activate(context.Background(), modes.Context{}))
	assert.Equal(t, modes.StateActive, c.State())
	assert.NoError(t, c.LastError())
}

func TestActivateRecoversPanics(t *testing.T) {
	b := &scriptedBehavior{panicOn: modes.HookOnActivate}
	c, _ := setup(t, b)

	err := c.Activate(context.Background(), modes.Context{})
	require.ErrorIs(t, err, modes.ErrActivationFailed)
	assert.Contains(t, err.Error(), "hook exploded")
	assert.Equal(t, modes.StateError, c.State())
}

func TestActivateHookTimeout(t *testing.T) {
	b := &scriptedBehavior{blockOn: modes.HookPreActivate}
	c, _ := setup(t, b, WithHookTimeout(20*time.Millisecond))

	err := c.Activate(context.Background(), modes.Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, modes.ErrHookTimeout)
	assert.ErrorIs(t, err, modes.ErrActivationFailed)
	assert.Equal(t, modes.StateError, c.State())
}

func TestActivateParentCancellation(t *testing.T) {
	b := &scriptedBehavior{blockOn: modes.HookPreActivate}
	c, _ := setup(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Activate(ctx, modes.Context{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, modes.ErrHookTimeout)
	assert.Equal(t, modes.StateError, c.State())
}

func TestActivateMergesBaseContext(t *testing.T) {
	c, _ := setup(t, nil, WithBaseContext(modes.Context{Domain: "ops", Complexity: "basic"}))
	require.NoError(t, c.Activate(context.Background(), modes.Context{Complexity: "expert"}))

	got := c.Context()
	assert.Equal(t, "ops", got.Domain)
	assert.Equal(t, "expert", got.Complexity)
}

// =============================================================================
// DEACTIVATION
// =============================================================================

func TestDeactivateRunsHooksInOrder(t *testing.T) {
	b := &scriptedBehavior{}
	pub := &recordingPublisher{}
	c, reg := setup(t, b, WithPublisher(pub))

	require.NoError(t, c.Activate(context.Background(), modes.Context{}))
	require.NoError(t, c.Deactivate(context.Background()))

	assert.Equal(t, []modes.Hook{
		modes.HookPreDeactivate, modes.HookOnDeactivate, modes.HookCleanup,
	}, b.Calls()[4:])
	assert.Equal(t, modes.StateInactive, c.State())

	a, _ := reg.Analytics("alpha")
	assert.Equal(t, 1, a.Operations["deactivate"])
	assert.Equal(t, []bus.EventType{bus.EventModeActivated, bus.EventModeDeactivated}, pub.Types())

	var trail []modes.State
	for _, tr := range c.Transitions() {
		trail = append(trail, tr.To)
	}
	assert.Equal(t, []modes.State{
		modes.StateActivating, modes.StateActive, modes.StateDeactivating, modes.StateInactive,
	}, trail)
}

func TestDeactivateFromInactiveIsInvalid(t *testing.T) {
	c, _ := setup(t, nil)
	err := c.Deactivate(context.Background())
	assert.ErrorIs(t, err, modes.ErrInvalidTransition)
	assert.Equal(t, modes.StateInactive, c.State())
}

func TestDeactivateFailureMovesToError(t *testing.T) {
	b := &scriptedBehavior{failOn: modes.HookOnDeactivate}
	c, _ := setup(t, b)

	require.NoError(t, c.Activate(context.Background(), modes.Context{}))
	err := c.Deactivate(context.Background())
	assert.ErrorIs(t, err, modes.ErrDeactivationFailed)
	assert.Equal(t, modes.StateError, c.State())
}

// =============================================================================
// EXECUTION
// =============================================================================

func TestExecuteCapabilityMismatch(t *testing.T) {
	c, reg := setup(t, nil)
	before := c.State()

	res := c.Execute(context.Background(), modes.Task{RequiredCapabilities: []string{"z"}}, modes.ExecOptions{})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, modes.ErrCapabilityMismatch)
	assert.Equal(t, []string{"z"}, res.Missing)
	assert.Equal(t, before, c.State())

	a, _ := reg.Analytics("alpha")
	assert.Zero(t, a.TotalUsageCount)
}

func TestExecuteMissingTool(t *testing.T) {
	c, _ := setup(t, nil)
	res := c.Execute(context.Background(), modes.Task{
		RequiredCapabilities: []string{"x"},
		RequiredTools:        []string{"hammer"},
	}, modes.ExecOptions{})
	assert.ErrorIs(t, res.Err, modes.ErrCapabilityMismatch)
	assert.Equal(t, []string{"hammer"}, res.Missing)
}

func TestExecuteDoesNotRequireActive(t *testing.T) {
	b := &scriptedBehavior{}
	pub := &recordingPublisher{}
	c, reg := setup(t, b, WithPublisher(pub))

	res := c.Execute(context.Background(), modes.Task{
		Description:          "build",
		RequiredCapabilities: []string{"x", "y"},
	}, modes.ExecOptions{})
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "done: build", res.Output)
	assert.NoError(t, res.Err)
	assert.Equal(t, modes.StateInactive, c.State())

	a, _ := reg.Analytics("alpha")
	assert.Equal(t, 1, a.Operations["execute"])
	assert.Equal(t, []bus.EventType{bus.EventTaskExecuted}, pub.Types())
}

func TestExecuteHandlerFailureAndPanic(t *testing.T) {
	b := &scriptedBehavior{failOn: modes.HookOnExecute}
	c, _ := setup(t, b)

	res := c.Execute(context.Background(), modes.Task{}, modes.ExecOptions{})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, modes.ErrExecutionFailed)
	assert.Contains(t, res.ErrorMessage, "hook refused")

	b.failOn = ""
	b.panicOn = modes.HookOnExecute
	res = c.Execute(context.Background(), modes.Task{}, modes.ExecOptions{})
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "hook exploded")
	assert.Equal(t, modes.StateInactive, c.State())
}

func TestExecuteTimeoutOption(t *testing.T) {
	b := &scriptedBehavior{blockOn: modes.HookOnExecute}
	c, _ := setup(t, b)

	res := c.Execute(context.Background(), modes.Task{}, modes.ExecOptions{Timeout: 20 * time.Millisecond})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, modes.ErrHookTimeout)
}

func TestAbandonedExecuteKeepsOwnRuntime(t *testing.T) {
	released := make(chan struct{})
	seen := make(chan any, 1)
	handler := func(_ context.Context, rt *modes.Runtime, _ modes.Task) (any, error) {
		<-released
		seen <- rt.Values["band"]
		rt.Values["touched"] = true
		return nil, nil
	}

	reg := registry.New()
	_, err := reg.Register(modes.Profile{Slug: "quick", Tier: 1, Category: "dev"},
		registry.WithBehavior(modes.BehaviorForTier(1, handler)))
	require.NoError(t, err)

	c, err := New(reg, "quick")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Activate(ctx, modes.Context{}))

	res := c.Execute(ctx, modes.Task{Description: "slow"}, modes.ExecOptions{Timeout: 5 * time.Millisecond})
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, modes.ErrHookTimeout)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Deactivate(ctx))
		require.NoError(t, c.Activate(ctx, modes.Context{}))
	}

	close(released)
	select {
	case band := <-seen:
		assert.NotNil(t, band)
	case <-time.After(time.Second):
		t.Fatal("handler never finished")
	}
	assert.Equal(t, modes.StateActive, c.State())
}

func TestExecuteUsesTaskHandler(t *testing.T) {
	reg := registry.New(registry.WithTaskHandler(func(_ context.Context, rt *modes.Runtime, task modes.Task) (any, error) {
		return rt.Profile.Slug + ":" + task.Description + ":" + rt.Context.Domain, nil
	}))
	_, err := reg.Register(modes.Profile{Slug: "svc", Tier: 3, Category: "api"})
	require.NoError(t, err)

	c, err := New(reg, "svc")
	require.NoError(t, err)
	require.NoError(t, c.Activate(context.Background(), modes.Context{Domain: "payments"}))

	res := c.Execute(context.Background(), modes.Task{Description: "refund"}, modes.ExecOptions{})
	require.True(t, res.Success)
	assert.Equal(t, "svc:refund:payments", res.Output)
}

func TestNewUnknownSlug(t *testing.T) {
	_, err := New(registry.New(), "ghost")
	assert.ErrorIs(t, err, modes.ErrNotFound)
}
