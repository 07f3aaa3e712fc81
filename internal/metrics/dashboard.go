package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/orchestrator"
)

// Dashboard renders collector metrics and an ecosystem snapshot for the terminal.
type Dashboard struct {
	collector *Collector
	styles    DashboardStyles
	width     int
	now       func() time.Time
}

// DashboardStyles defines the styling for the dashboard.
type DashboardStyles struct {
	Border    lipgloss.Style
	Header    lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
}

// NewDashboard creates a dashboard renderer. A nil renderer uses lipgloss's default,
// which picks its colour profile from stdout.
func NewDashboard(collector *Collector, r *lipgloss.Renderer) *Dashboard {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return &Dashboard{
		collector: collector,
		width:     80,
		styles:    defaultDashboardStyles(r),
		now:       time.Now,
	}
}

func defaultDashboardStyles(r *lipgloss.Renderer) DashboardStyles {
	return DashboardStyles{
		Border: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		Header: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")),
		Label: r.NewStyle().
			Foreground(lipgloss.Color("245")),
		Value: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")),
		Success: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82")),
		Error: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		Highlight: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
	}
}

// SetWidth sets the dashboard width.
func (d *Dashboard) SetWidth(w int) {
	if w > 20 {
		d.width = w
	}
}

// Render returns the full dashboard: session counters from the collector followed by
// the ecosystem snapshot.
func (d *Dashboard) Render(eco orchestrator.EcosystemStats) string {
	stats := d.collector.GetSessionStats()

	var content strings.Builder

	content.WriteString(d.styles.Header.Render("SESSION"))
	content.WriteString("\n")

	active := eco.ActiveSlug
	if active == "" {
		active = "none"
	}
	content.WriteString(fmt.Sprintf("%s %s │ %s %s │ %s %s\n",
		d.styles.Label.Render("Active:"),
		d.styles.Highlight.Render(active),
		d.styles.Label.Render("Switches:"),
		d.styles.Value.Render(fmt.Sprintf("%d", stats.Switches)),
		d.styles.Label.Render("Failed:"),
		d.formatCount(stats.FailedSwitches),
	))
	content.WriteString(fmt.Sprintf("%s %s │ %s %s │ %s %s\n",
		d.styles.Label.Render("Executions:"),
		d.styles.Value.Render(fmt.Sprintf("%d", stats.Executions)),
		d.styles.Label.Render("Success:"),
		d.formatSuccessRate(stats.SuccessRate()),
		d.styles.Label.Render("Latency:"),
		d.styles.Value.Render(fmt.Sprintf("%dms avg", stats.AverageLatency().Milliseconds())),
	))
	content.WriteString(fmt.Sprintf("%s %s │ %s\n",
		d.styles.Label.Render("Last:"),
		d.styles.Value.Render(d.lastEvent(stats)),
		d.renderEventActivity(),
	))

	content.WriteString("\n")
	content.WriteString(d.styles.Header.Render("ECOSYSTEM"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("%s %s │ %s %s │ %s %s\n",
		d.styles.Label.Render("Profiles:"),
		d.styles.Value.Render(fmt.Sprintf("%d", eco.ProfileCount)),
		d.styles.Label.Render("Usage:"),
		d.styles.Value.Render(fmt.Sprintf("%d", eco.TotalUsage)),
		d.styles.Label.Render("Uptime:"),
		d.styles.Value.Render(eco.Uptime.Truncate(time.Second).String()),
	))
	content.WriteString(fmt.Sprintf("%s %s\n",
		d.styles.Label.Render("Tiers:"),
		d.styles.Value.Render(formatTierCounts(eco.TierCounts)),
	))
	today := "none"
	if len(eco.TodayUsed) > 0 {
		today = strings.Join(eco.TodayUsed, ", ")
	}
	content.WriteString(fmt.Sprintf("%s %s",
		d.styles.Label.Render("Today:"),
		d.styles.Value.Render(today),
	))

	return d.styles.Border.Width(d.width - 4).Render(content.String())
}

// RenderCompact returns a single-line summary.
func (d *Dashboard) RenderCompact() string {
	stats := d.collector.GetSessionStats()
	active := stats.ActiveSlug
	if active == "" {
		active = "none"
	}
	return fmt.Sprintf("[modes] %s │ %d switches │ %d exec │ %.0f%% ok │ %dms avg │ %s",
		active,
		stats.Switches,
		stats.Executions,
		stats.SuccessRate(),
		stats.AverageLatency().Milliseconds(),
		d.renderEventActivity(),
	)
}

func (d *Dashboard) lastEvent(stats SessionStats) string {
	if stats.LastEvent == "" {
		return "none"
	}
	last := stats.LastEvent
	if len(last) > 32 {
		last = last[:29] + "..."
	}

	elapsed := d.now().Sub(stats.LastEventTime)
	switch {
	case elapsed < time.Second:
		return last + " (now)"
	case elapsed < time.Minute:
		return fmt.Sprintf("%s (%.0fs)", last, elapsed.Seconds())
	default:
		return fmt.Sprintf("%s (%.0fm)", last, elapsed.Minutes())
	}
}

// formatSuccessRate formats the success rate with color.
func (d *Dashboard) formatSuccessRate(rate float64) string {
	formatted := fmt.Sprintf("%.0f%%", rate)
	if rate >= 90 {
		return d.styles.Success.Render(formatted)
	} else if rate >= 70 {
		return d.styles.Highlight.Render(formatted)
	}
	return d.styles.Error.Render(formatted)
}

func (d *Dashboard) formatCount(n int) string {
	if n == 0 {
		return d.styles.Success.Render("0")
	}
	return d.styles.Error.Render(fmt.Sprintf("%d", n))
}

// renderEventActivity renders a visual indicator of recent event activity.
func (d *Dashboard) renderEventActivity() string {
	events := d.collector.GetRecentEvents(5)

	activity := make([]string, 5)
	for i := 0; i < 5; i++ {
		if i < len(events) {
			activity[i] = "●"
		} else {
			activity[i] = "○"
		}
	}
	return strings.Join(activity, "")
}

func formatTierCounts(counts map[int]int) string {
	if len(counts) == 0 {
		return "none"
	}
	tiers := make([]int, 0, len(counts))
	for tier := range counts {
		tiers = append(tiers, tier)
	}
	sort.Ints(tiers)

	parts := make([]string, len(tiers))
	for i, tier := range tiers {
		parts[i] = fmt.Sprintf("t%d:%d", tier, counts[tier])
	}
	return strings.Join(parts, " ")
}
