package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/bus"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/registry"
)

// =============================================================================
// HELPERS
// =============================================================================

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
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

func (p *recordingPublisher) OfType(t bus.EventType) []bus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []bus.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// failingBehavior fails the named hook.
type failingBehavior struct {
	modes.BaseBehavior
	hook modes.Hook
}

func (b failingBehavior) OnActivate(context.Context, *modes.Runtime) error {
	if b.hook == modes.HookOnActivate {
		return errors.New("cannot start")
	}
	return nil
}

func (b failingBehavior) OnDeactivate(context.Context, *modes.Runtime) error {
	if b.hook == modes.HookOnDeactivate {
		return errors.New("cannot stop")
	}
	return nil
}

type fixture struct {
	orch  *Orchestrator
	reg   *registry.Registry
	clock *fakeClock
	pub   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}
	reg := registry.New(registry.WithClock(clock.Now))

	for i, slug := range []string{"a", "b", "c"} {
		_, err := reg.Register(modes.Profile{
			Slug:      slug,
			Tier:      i + 1,
			Category:  "dev",
			Expertise: []string{"go"},
		})
		require.NoError(t, err)
	}
	_, err := reg.Register(modes.Profile{Slug: "broken-start", Tier: 5, Category: "ops"},
		registry.WithBehavior(failingBehavior{hook: modes.HookOnActivate}))
	require.NoError(t, err)
	_, err = reg.Register(modes.Profile{Slug: "broken-stop", Tier: 5, Category: "ops"},
		registry.WithBehavior(failingBehavior{hook: modes.HookOnDeactivate}))
	require.NoError(t, err)

	orch := New(reg, &Config{Publisher: pub, HookTimeout: time.Second})
	return &fixture{orch: orch, reg: reg, clock: clock, pub: pub}
}

func (f *fixture) state(t *testing.T, slug string) modes.State {
	t.Helper()
	s, err := f.orch.State(slug)
	require.NoError(t, err)
	return s
}

func (f *fixture) activeCount(t *testing.T) int {
	t.Helper()
	n := 0
	for _, p := range f.reg.List() {
		if p.State == modes.StateActive {
			n++
		}
	}
	return n
}

// =============================================================================
// SWITCHING
// =============================================================================

func TestSwitchModeActivatesTarget(t *testing.T) {
	f := newFixture(t)

	entry, err := f.orch.SwitchMode(context.Background(), "a", modes.Context{Domain: "go"})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "a", entry.Slug)
	assert.Equal(t, "go", entry.Context.Domain)
	assert.True(t, entry.Open())

	active, ok := f.orch.Active()
	assert.True(t, ok)
	assert.Equal(t, "a", active)
	assert.Equal(t, modes.StateActive, f.state(t, "a"))
	require.Len(t, f.pub.OfType(bus.EventModeSwitched), 1)
}

func TestSwitchModeTrimsSlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.orch.SwitchMode(ctx, " b ", modes.Context{})
	require.NoError(t, err)
	assert.Equal(t, "b", entry.Slug)

	active, ok := f.orch.Active()
	require.True(t, ok)
	assert.Equal(t, "b", active)
	assert.Equal(t, modes.StateActive, f.state(t, "b"))

	res, err := f.orch.Execute(ctx, "b\t", modes.Task{Description: "x"}, modes.ExecOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestControllersLogAsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	f := newFixture(t)
	_, err := f.orch.SwitchMode(context.Background(), "a", modes.Context{})
	require.NoError(t, err)

	var activated string
	for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
		if bytes.Contains(line, []byte(`"message":"mode activated"`)) {
			activated = string(line)
		}
	}
	require.NotEmpty(t, activated)
	assert.Contains(t, activated, `"component":"lifecycle"`)
	assert.Contains(t, activated, `"slug":"a"`)
}

func TestSwitchLeavesPreviousInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.SwitchMode(ctx, "a", modes.Context{})
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)
	_, err = f.orch.SwitchMode(ctx, "b", modes.Context{})
	require.NoError(t, err)

	assert.Equal(t, modes.StateInactive, f.state(t, "a"))
	assert.Equal(t, modes.StateActive, f.state(t, "b"))
	assert.Equal(t, 1, f.activeCount(t))

	history := f.orch.History()
	require.Len(t, history, 2)
	require.NotNil(t, history[0].Duration)
	assert.Equal(t, 90*time.Second, *history[0].Duration)
	assert.True(t, history[1].Open())

	switched := f.pub.OfType(bus.EventModeSwitched)
	require.Len(t, switched, 2)
	assert.Equal(t, "a", switched[1].Previous)
}

func TestSwitchUnknownSlugKeepsActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.SwitchMode(ctx, "a", modes.Context{})
	require.NoError(t, err)

	entry, err := f.orch.SwitchMode(ctx, "missing-slug", modes.Context{})
	assert.Nil(t, entry)
	assert.ErrorIs(t, err, modes.ErrSwitchFailed)
	assert.ErrorIs(t, err, modes.ErrNotFound)

	var serr *SwitchError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageLookup, serr.Stage)

	active, ok := f.orch.Active()
	assert.True(t, ok)
	assert.Equal(t, "a", active)
	assert.Equal(t, modes.StateActive, f.state(t, "a"))
	assert.Len(t, f.orch.History(), 1)
	assert.True(t, f.orch.History()[0].Open())
}

func TestSwitchToSameSlugCyclesFully(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.SwitchMode(ctx, "a", modes.Context{})
	require.NoError(t, err)
	_, err = f.orch.SwitchMode(ctx, "a", modes.Context{})
	require.NoError(t, err)

	history := f.orch.History()
	require.Len(t, history, 2)
	assert.Equal(t, "a", history[0].Slug)
	assert.Equal(t, "a", history[1].Slug)
	assert.NotNil(t, history[0].Duration)
	assert.NotEqual(t, history[0].ID, history[1].ID)

	a, _ := f.reg.Analytics("a")
	assert.Equal(t, 2, a.Operations["activate"])
	assert.Equal(t, 1, a.Operations["deactivate"])

	p, _ := f.reg.Get("a")
	assert.Equal(t, 2, p.Stats.ActivationCount)
}

func TestSwitchActivationFailureUnsetsActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.SwitchMode(ctx, "a", modes.Context{})
	require.NoError(t, err)

	_, err = f.orch.SwitchMode(ctx, "broken-start", modes.Context{})
	require.ErrorIs(t, err, modes.ErrSwitchFailed)
	assert.ErrorIs(t, err, modes.ErrActivationFailed)

	var serr *SwitchError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageActivate, serr.Stage)
	assert.Equal(t, "a", serr.Previous)

	_, ok := f.orch.Active()
	assert.False(t, ok)
	assert.Equal(t, modes.StateInactive, f.state(t, "a"), "no rollback to the previous profile")
	assert.Equal(t, modes.StateError, f.state(t, "broken-start"))
	assert.Zero(t, f.activeCount(t))
	require.Len(t, f.pub.OfType(bus.EventSwitchFailed), 1)
}

func TestSwitchDeactivationFailureAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.SwitchMode(ctx, "broken-stop", modes.Context{})
	require.NoError(t, err)

	_, err = f.orch.SwitchMode(ctx, "a", modes.Context{})
	require.ErrorIs(t, err, modes.ErrSwitchFailed)
	assert.ErrorIs(t, err, modes.ErrDeactivationFailed)

	var serr *SwitchError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageDeactivate, serr.Stage)

	_, ok := f.orch.Active()
	assert.False(t, ok)
	assert.Equal(t, modes.StateError, f.state(t, "broken-stop"))
	assert.Equal(t, modes.StateInactive, f.state(t, "a"))
	assert.NotNil(t, f.orch.History()[0].Duration)

	// The errored profile can be switched to again.
	_, err = f.orch.SwitchMode(ctx, "a", modes.Context{})
	require.NoError(t, err)
}

func TestAtMostOneActiveAcrossSwitches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sequence := []string{"a", "b", "b", "missing", "c", "broken-start", "a", "broken-stop", "c", "a"}
	for i, slug := range sequence {
		_, _ = f.orch.SwitchMode(ctx, slug, modes.Context{})
		assert.LessOrEqual(t, f.activeCount(t), 1, "after step %d (%s)", i, slug)

		if active, ok := f.orch.Active(); ok {
			assert.Equal(t, modes.StateActive, f.state(t, active))
		}
	}
}

func TestConcurrentSwitchesKeepInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.orch.SwitchMode(ctx, []string{"a", "b", "c"}[i%3], modes.Context{})
			_ = f.orch.GetEcosystemStats()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.activeCount(t))
	assert.Len(t, f.orch.History(), 20)
}

// =============================================================================
// DEACTIVATE / EXECUTE
// =============================================================================

func TestDeactivateActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.orch.DeactivateActive(ctx), modes.ErrNoActiveMode)

	_, err := f.orch.SwitchMode(ctx, "b", modes.Context{})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	require.NoError(t, f.orch.DeactivateActive(ctx))

	_, ok := f.orch.Active()
	assert.False(t, ok)
	assert.Equal(t, modes.StateInactive, f.state(t, "b"))
	assert.Equal(t, time.Minute, *f.orch.History()[0].Duration)
}

func TestExecuteActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.ExecuteActive(ctx, modes.Task{Description: "x"}, modes.ExecOptions{})
	assert.ErrorIs(t, err, modes.ErrNoActiveMode)

	_, err = f.orch.SwitchMode(ctx, "a", modes.Context{})
	require.NoError(t, err)

	res, err := f.orch.ExecuteActive(ctx, modes.Task{Description: "lint", RequiredCapabilities: []string{"debugging"}}, modes.ExecOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = f.orch.ExecuteActive(ctx, modes.Task{RequiredCapabilities: []string{"flying"}}, modes.ExecOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, modes.ErrCapabilityMismatch)
	assert.Equal(t, modes.StateActive, f.state(t, "a"))
}

func TestExecuteInactiveProfile(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.Execute(context.Background(), "c", modes.Task{Description: "ping"}, modes.ExecOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, modes.StateInactive, f.state(t, "c"))

	_, err = f.orch.Execute(context.Background(), "ghost", modes.Task{}, modes.ExecOptions{})
	assert.ErrorIs(t, err, modes.ErrNotFound)
}

// =============================================================================
// STATS & EXPORT
// =============================================================================

func TestGetEcosystemStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.orch.SwitchMode(ctx, "b", modes.Context{})
	_, _ = f.orch.SwitchMode(ctx, "a", modes.Context{})
	_, _ = f.orch.SwitchMode(ctx, "missing", modes.Context{})

	stats := f.orch.GetEcosystemStats()
	assert.Equal(t, 5, stats.ProfileCount)
	assert.Equal(t, "a", stats.ActiveSlug)
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1, 5: 2}, stats.TierCounts)
	assert.Equal(t, map[string]int{"dev": 3, "ops": 2}, stats.CategoryCounts)
	assert.Equal(t, []string{"a", "b"}, stats.TodayUsed)
	assert.Equal(t, 2, stats.SessionCount)
	assert.Equal(t, 2, stats.SwitchCount)
	assert.Equal(t, 1, stats.FailedSwitches)

	// Today's set resets with the date.
	f.clock.Advance(24 * time.Hour)
	assert.Empty(t, f.orch.GetEcosystemStats().TodayUsed)
	_, _ = f.orch.SwitchMode(ctx, "c", modes.Context{})
	assert.Equal(t, []string{"c"}, f.orch.GetEcosystemStats().TodayUsed)
}

func TestRecommendationsAndSearchDelegate(t *testing.T) {
	f := newFixture(t)

	recs := f.orch.GetRecommendations(modes.Context{Domain: "go", Complexity: "intermediate"})
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].Profile.Slug)
	assert.Equal(t, 0.7, recs[0].Score)

	res := f.orch.SearchModes("broken")
	assert.Len(t, res.Name, 2)
}

func TestExportConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.SwitchMode(ctx, "a", modes.Context{Domain: "go"})
	require.NoError(t, err)

	exp := f.orch.ExportConfig()
	assert.Equal(t, ExportVersion, exp.Version)
	assert.Equal(t, f.clock.Now(), exp.ExportedAt)
	assert.Equal(t, 5, exp.ProfileCount)
	assert.Equal(t, "a", exp.ActiveSlug)
	require.Len(t, exp.Analytics, 5)
	assert.Equal(t, "a", exp.Analytics[0].Slug)
	assert.Equal(t, 1, exp.Analytics[0].TotalUsageCount)
	assert.Equal(t, 1, exp.Analytics[0].RecentEvents)
	require.Len(t, exp.History, 1)
	assert.Equal(t, "go", exp.History[0].Context.Domain)
}

func TestSwitchErrorMessage(t *testing.T) {
	err := &SwitchError{Slug: "x", Stage: StageActivate, Err: fmt.Errorf("boom")}
	assert.Equal(t, `switch to "x" failed at activate: boom`, err.Error())
}
