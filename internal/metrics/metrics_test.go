package metrics

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/bus"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/orchestrator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func event(t bus.EventType, slug string, fill func(*bus.Event)) bus.Event {
	e := bus.NewEvent(t)
	e.Slug = slug
	if fill != nil {
		fill(&e)
	}
	return e
}

func plainRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return r
}

func TestCollectorAggregates(t *testing.T) {
	c := NewCollector(nil)

	c.handleEvent(event(bus.EventProfileRegistered, "alpha", nil))
	c.handleEvent(event(bus.EventModeActivated, "alpha", nil))
	c.handleEvent(event(bus.EventModeSwitched, "alpha", nil))
	c.handleEvent(event(bus.EventTaskExecuted, "alpha", func(e *bus.Event) { e.Success = true; e.DurationMs = 30 }))
	c.handleEvent(event(bus.EventTaskExecuted, "alpha", func(e *bus.Event) { e.DurationMs = 10 }))
	c.handleEvent(event(bus.EventSwitchFailed, "ghost", nil))

	s := c.GetSessionStats()
	assert.Equal(t, 1, s.Registrations)
	assert.Equal(t, 1, s.Activations)
	assert.Equal(t, 1, s.Switches)
	assert.Equal(t, 1, s.FailedSwitches)
	assert.Equal(t, 2, s.Executions)
	assert.Equal(t, 1, s.SuccessCount)
	assert.Equal(t, 1, s.FailureCount)
	assert.Equal(t, int64(40), s.TotalLatencyMs)
	assert.Equal(t, 20*time.Millisecond, s.AverageLatency())
	assert.InDelta(t, 50.0, s.SuccessRate(), 0.001)
	assert.Equal(t, "alpha", s.ActiveSlug)
	assert.Equal(t, "switch_failed: ghost", s.LastEvent)

	c.handleEvent(event(bus.EventModeDeactivated, "alpha", nil))
	s = c.GetSessionStats()
	assert.Equal(t, 1, s.Deactivations)
	assert.Empty(t, s.ActiveSlug)

	c.handleEvent(event(bus.EventModeSwitched, "beta", nil))
	c.handleEvent(event(bus.EventModeError, "beta", nil))
	s = c.GetSessionStats()
	assert.Equal(t, 1, s.Failures)
	assert.Empty(t, s.ActiveSlug)
}

func TestCollectorEmptyRates(t *testing.T) {
	s := NewCollector(nil).GetSessionStats()
	assert.Equal(t, time.Duration(0), s.AverageLatency())
	assert.Equal(t, 100.0, s.SuccessRate())
}

func TestCollectorRecentEventsBounded(t *testing.T) {
	c := NewCollector(nil)
	for i := 0; i < DefaultRecentEvents+10; i++ {
		c.handleEvent(event(bus.EventTaskExecuted, "alpha", nil))
	}
	assert.Len(t, c.GetRecentEvents(1000), DefaultRecentEvents)
	assert.Len(t, c.GetRecentEvents(3), 3)
	assert.Nil(t, c.GetRecentEvents(0))
}

func TestCollectorSubscribesToBus(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	c := NewCollector(b)
	c.Start()
	c.Start()
	assert.Equal(t, 1, b.WildcardSubscriptionsCount())

	require.NoError(t, b.Publish(event(bus.EventModeSwitched, "alpha", nil)))
	require.Eventually(t, func() bool {
		return c.GetSessionStats().Switches == 1
	}, time.Second, 5*time.Millisecond)

	c.Stop()
	c.Stop()
	assert.Equal(t, 0, b.WildcardSubscriptionsCount())
}

func TestDashboardRender(t *testing.T) {
	c := NewCollector(nil)
	c.handleEvent(event(bus.EventModeSwitched, "alpha", nil))
	c.handleEvent(event(bus.EventTaskExecuted, "alpha", func(e *bus.Event) { e.Success = true; e.DurationMs = 12 }))

	d := NewDashboard(c, plainRenderer())
	d.SetWidth(100)
	out := d.Render(orchestrator.EcosystemStats{
		ProfileCount: 3,
		ActiveSlug:   "alpha",
		TierCounts:   map[int]int{3: 1, 1: 2},
		TodayUsed:    []string{"alpha", "beta"},
		TotalUsage:   7,
		Uptime:       90 * time.Second,
	})

	for _, want := range []string{"SESSION", "ECOSYSTEM", "alpha", "12ms avg", "100%", "t1:2 t3:1", "alpha, beta", "1m30s"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "\x1b[", "ascii profile renders no escape codes")
}

func TestDashboardRenderEmpty(t *testing.T) {
	d := NewDashboard(NewCollector(nil), plainRenderer())
	out := d.Render(orchestrator.EcosystemStats{})
	assert.GreaterOrEqual(t, strings.Count(out, "none"), 3)
}

func TestDashboardRenderCompact(t *testing.T) {
	c := NewCollector(nil)
	c.handleEvent(event(bus.EventModeSwitched, "alpha", nil))
	out := NewDashboard(c, plainRenderer()).RenderCompact()
	assert.True(t, strings.HasPrefix(out, "[modes] alpha │ 1 switches"))
	assert.Contains(t, out, "●○○○○")
}
