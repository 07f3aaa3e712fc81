package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

func exportCmd(opts *rootOptions) *cobra.Command {
	var (
		format   string
		archive  bool
		label    string
		activate string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the session state",
		Long: `Export the registry and session state as JSON or YAML. With --archive the
export is also saved to the snapshot archive.

Examples:
  modectl export --format yaml
  modectl export --activate backend-dev --archive --label nightly`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.newEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close(ctx)

			if activate != "" {
				if _, err := e.orch.SwitchMode(ctx, activate, modes.Context{}); err != nil {
					return withSuggestion(err, e.registry.Suggest(activate))
				}
			}
			export := e.orch.ExportConfig()

			if archive {
				a, err := opts.openArchive()
				if err != nil {
					return err
				}
				defer a.Close()

				rec, err := a.Save(ctx, export, label)
				if err != nil {
					return fmt.Errorf("archive export: %w", err)
				}
				log.Info().Str("id", rec.ID).Str("path", opts.cfg.Archive.Path).Msg("export archived")
			}
			return encode(cmd.OutOrStdout(), format, export)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	cmd.Flags().BoolVar(&archive, "archive", false, "save the export to the snapshot archive")
	cmd.Flags().StringVar(&label, "label", "", "label for the archived snapshot")
	cmd.Flags().StringVar(&activate, "activate", "", "activate this mode before exporting")
	return cmd
}

func archiveCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse archived snapshots",
	}

	var limit int
	listArchived := &cobra.Command{
		Use:   "list",
		Short: "List archived snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openArchive()
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			p := opts.printer(cmd)
			if len(records) == 0 {
				p.Printf("%s\n", p.dim.Render("archive is empty"))
				return nil
			}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					r.ID,
					r.ArchivedAt.Local().Format(time.DateTime),
					r.Label,
					r.ActiveSlug,
					fmt.Sprintf("%d", r.ProfileCount),
					r.Version,
				}
			}
			p.table([]string{"ID", "ARCHIVED", "LABEL", "ACTIVE", "PROFILES", "VERSION"}, rows)
			return nil
		},
	}
	listArchived.Flags().IntVarP(&limit, "limit", "n", 20, "maximum snapshots to list (0 for all)")

	var format string
	showArchived := &cobra.Command{
		Use:   "show <id>",
		Short: "Print an archived export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openArchive()
			if err != nil {
				return err
			}
			defer a.Close()

			_, export, err := a.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return encode(cmd.OutOrStdout(), format, export)
		},
	}
	showArchived.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")

	switchesArchived := &cobra.Command{
		Use:   "switches <slug>",
		Short: "List archived switches into a mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openArchive()
			if err != nil {
				return err
			}
			defer a.Close()

			switches, err := a.Switches(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			p := opts.printer(cmd)
			if len(switches) == 0 {
				p.Printf("%s\n", p.dim.Render("no archived switches"))
				return nil
			}
			rows := make([][]string, len(switches))
			for i, s := range switches {
				duration := "open"
				if s.Duration != nil {
					duration = s.Duration.String()
				}
				rows[i] = []string{s.SnapshotID, s.StartedAt.Local().Format(time.DateTime), duration}
			}
			p.table([]string{"SNAPSHOT", "STARTED", "DURATION"}, rows)
			return nil
		},
	}

	deleteArchived := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an archived snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openArchive()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listArchived, showArchived, switchesArchived, deleteArchived)
	return cmd
}
