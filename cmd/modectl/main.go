// Package main is the entry point for the modectl CLI.
// modectl loads capability profiles from the built-in and on-disk catalogs and drives
// a single orchestrator session from the command line or over HTTP.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/config"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/logging"
)

var version = "0.1.0"

// rootOptions carries the persistent flags and everything derived from them.
type rootOptions struct {
	cfgPath   string
	catalog   []string
	noBuiltin bool
	noColor   bool
	verbose   bool

	cfg    *config.Config
	logger *logging.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "modectl",
		Short: "modectl - capability profile registry and orchestrator",
		Long: `modectl manages capability profiles ("modes") and the single active mode of a
session:
  • Profiles come from the built-in catalog and YAML files on disk
  • Exactly one mode is active at a time; switching runs the lifecycle hooks
  • Search and recommendations rank profiles against a task context
  • serve exposes the session over an HTTP/websocket control plane

List profiles:        modectl list --tier 3
Recommend a mode:     modectl recommend --domain go --complexity advanced
Serve the API:        modectl serve`,
		SilenceUsage:       true,
		PersistentPreRunE:  opts.init,
		PersistentPostRunE: opts.close,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.cfgPath, "config", "", "config file path (default ~/.modectl/config.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&opts.catalog, "catalog", nil, "catalog files or globs, replacing catalog.paths")
	rootCmd.PersistentFlags().BoolVar(&opts.noBuiltin, "no-builtin", false, "skip the built-in catalog")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable coloured output")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "modectl v%s\n", version)
		},
	})

	rootCmd.AddCommand(listCmd(opts))
	rootCmd.AddCommand(showCmd(opts))
	rootCmd.AddCommand(searchCmd(opts))
	rootCmd.AddCommand(recommendCmd(opts))
	rootCmd.AddCommand(switchCmd(opts))
	rootCmd.AddCommand(statsCmd(opts))
	rootCmd.AddCommand(exportCmd(opts))
	rootCmd.AddCommand(archiveCmd(opts))
	rootCmd.AddCommand(catalogCmd(opts))
	rootCmd.AddCommand(configCmd(opts))
	rootCmd.AddCommand(serveCmd(opts))

	return rootCmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

// init loads the configuration, applies flag overrides and installs the global logger.
func (o *rootOptions) init(cmd *cobra.Command, args []string) error {
	path := o.cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}
	if len(o.catalog) > 0 {
		cfg.Catalog.Paths = o.catalog
	}
	if o.noBuiltin {
		cfg.Catalog.Builtin = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	o.cfgPath = path
	o.cfg = cfg

	var lc *logging.Config
	if o.verbose {
		lc = logging.VerboseConfig()
	} else {
		lc = logging.DefaultConfig()
		lc.Level = cfg.Logging.Level
	}
	lc.FilePath = cfg.Logging.File
	lc.JSON = cfg.Logging.JSON
	lc.Colored = !o.noColor
	lc.Output = cmd.ErrOrStderr()

	logger, err := logging.Setup(lc)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	o.logger = logger

	log.Debug().
		Str("config", path).
		Strs("catalog", cfg.Catalog.Paths).
		Bool("builtin", cfg.Catalog.Builtin).
		Msg("configuration loaded")
	return nil
}

func (o *rootOptions) close(cmd *cobra.Command, args []string) error {
	if o.logger == nil {
		return nil
	}
	return o.logger.Close()
}

// renderer returns a lipgloss renderer for w. --no-color forces the ASCII profile.
func (o *rootOptions) renderer(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if o.noColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return r
}
