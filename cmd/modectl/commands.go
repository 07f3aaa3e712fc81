package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/metrics"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

// ═══════════════════════════════════════════════════════════════════════════════
// QUERY COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func listCmd(opts *rootOptions) *cobra.Command {
	var (
		tier     int
		category string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered profiles",
		Long: `List registered profiles in registration order.

Examples:
  modectl list
  modectl list --tier 3
  modectl list --category backend --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("tier") && (tier < modes.MinTier || tier > modes.MaxTier) {
				return fmt.Errorf("--tier must be between %d and %d", modes.MinTier, modes.MaxTier)
			}

			e, err := opts.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			var profiles []modes.Profile
			switch {
			case cmd.Flags().Changed("tier"):
				profiles = e.registry.ListByTier(tier)
			case category != "":
				profiles = e.registry.ListByCategory(category)
			default:
				profiles = e.registry.List()
			}
			if cmd.Flags().Changed("tier") && category != "" {
				profiles = filterCategory(profiles, category)
			}

			if asJSON {
				return encode(cmd.OutOrStdout(), "json", profiles)
			}
			opts.printer(cmd).profiles(profiles)
			return nil
		},
	}

	cmd.Flags().IntVar(&tier, "tier", 0, "only profiles in this tier (1-10)")
	cmd.Flags().StringVar(&category, "category", "", "only profiles in this category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func filterCategory(profiles []modes.Profile, category string) []modes.Profile {
	out := profiles[:0]
	for _, p := range profiles {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func showCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <slug>",
		Short: "Show one profile and its usage analytics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			prof, err := e.registry.Get(args[0])
			if err != nil {
				return withSuggestion(err, e.registry.Suggest(args[0]))
			}

			if asJSON {
				analytics, _ := e.registry.Analytics(prof.Slug)
				return encode(cmd.OutOrStdout(), "json", map[string]any{
					"mode":      prof,
					"analytics": analytics,
				})
			}
			opts.printer(cmd).profile(prof)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// withSuggestion appends a "did you mean" hint to NotFound errors.
func withSuggestion(err error, suggestions []string) error {
	if !errors.Is(err, modes.ErrNotFound) || len(suggestions) == 0 {
		return err
	}
	return fmt.Errorf("%w (did you mean: %s?)", err, strings.Join(suggestions, ", "))
}

func searchCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search profiles by name, capability, expertise, category or tier",
		Long: `Search profiles. Each field is matched independently, so a profile may appear
in several groups. Tiers are only searched when the query mentions "tier".

Examples:
  modectl search react
  modectl search "tier 3"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			results := e.orch.SearchModes(strings.Join(args, " "))
			if asJSON {
				return encode(cmd.OutOrStdout(), "json", results)
			}

			p := opts.printer(cmd)
			if results.Total() == 0 {
				p.Printf("%s\n", p.dim.Render("no matches"))
				return nil
			}
			groups := []struct {
				name     string
				profiles []modes.Profile
			}{
				{"Name", results.Name},
				{"Capabilities", results.Capabilities},
				{"Expertise", results.Expertise},
				{"Category", results.Category},
				{"Tier", results.Tier},
			}
			for _, g := range groups {
				if len(g.profiles) == 0 {
					continue
				}
				slugs := make([]string, len(g.profiles))
				for i, prof := range g.profiles {
					slugs[i] = prof.Slug
				}
				p.field(g.name, strings.Join(slugs, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func recommendCmd(opts *rootOptions) *cobra.Command {
	var (
		c      modes.Context
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank profiles for a task context",
		Long: `Rank profiles by relevance to a domain and complexity. At most five profiles
scoring above 0.5 are returned.

Examples:
  modectl recommend --domain go
  modectl recommend --domain react --complexity intermediate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			recs := e.orch.GetRecommendations(c)
			if asJSON {
				return encode(cmd.OutOrStdout(), "json", recs)
			}

			p := opts.printer(cmd)
			if len(recs) == 0 {
				p.Printf("%s\n", p.dim.Render("no recommendations"))
				return nil
			}
			rows := make([][]string, len(recs))
			for i, r := range recs {
				rows[i] = []string{
					fmt.Sprintf("%.2f", r.Score),
					r.Profile.Slug,
					fmt.Sprintf("%d", r.Profile.Tier),
					r.Profile.Category,
				}
			}
			p.table([]string{"SCORE", "SLUG", "TIER", "CATEGORY"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&c.Domain, "domain", "", "task domain matched against expertise")
	cmd.Flags().StringVar(&c.Complexity, "complexity", "", "basic, intermediate, advanced or expert")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// SESSION COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func switchCmd(opts *rootOptions) *cobra.Command {
	var (
		c            modes.Context
		task         string
		capabilities []string
		tools        []string
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "switch <slug>",
		Short: "Activate a mode and optionally run a task in it",
		Long: `Activate a mode in a one-shot session, run its lifecycle hooks and, with --task,
execute a task against it. The mode is deactivated when the command exits; use
"modectl serve" for a long-lived session.

Examples:
  modectl switch backend-dev --domain go
  modectl switch sre --task "triage alert" --require monitoring`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.newEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close(ctx)

			entry, err := e.orch.SwitchMode(ctx, args[0], c)
			if err != nil {
				return withSuggestion(err, e.registry.Suggest(args[0]))
			}

			p := opts.printer(cmd)
			p.Printf("%s %s\n", p.label.Render("Activated"), p.accent.Render(entry.Slug))
			p.field("History ID", entry.ID)
			p.field("Started", entry.StartedAt.Format(time.RFC3339))

			if task == "" {
				return nil
			}
			result, err := e.orch.ExecuteActive(ctx, modes.Task{
				Description:          task,
				RequiredCapabilities: capabilities,
				RequiredTools:        tools,
			}, modes.ExecOptions{Timeout: timeout})
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("task failed: %w", result.Err)
			}
			p.field("Duration", result.Duration.String())
			return encode(cmd.OutOrStdout(), "json", result.Output)
		},
	}

	cmd.Flags().StringVar(&c.Domain, "domain", "", "activation context domain")
	cmd.Flags().StringVar(&c.Complexity, "complexity", "", "activation context complexity")
	cmd.Flags().StringVar(&task, "task", "", "task description to execute after activation")
	cmd.Flags().StringSliceVar(&capabilities, "require", nil, "capabilities the task requires")
	cmd.Flags().StringSliceVar(&tools, "tool", nil, "tools the task requires")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "execute hook timeout (default lifecycle.hook_timeout)")
	return cmd
}

func statsCmd(opts *rootOptions) *cobra.Command {
	var (
		compact bool
		width   int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the ecosystem dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			dash := metrics.NewDashboard(e.collector, opts.renderer(cmd.OutOrStdout()))
			dash.SetWidth(width)
			if compact {
				fmt.Fprintln(cmd.OutOrStdout(), dash.RenderCompact())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), dash.Render(e.orch.GetEcosystemStats()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&compact, "compact", false, "single-line summary")
	cmd.Flags().IntVar(&width, "width", 80, "dashboard width")
	return cmd
}
