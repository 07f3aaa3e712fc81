package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/catalog"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/logging"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/server"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP/websocket control plane",
		Long: `Serve one orchestrator session over HTTP until interrupted. Events are streamed
to websocket clients at /api/v1/events. On shutdown the active mode is deactivated.

Examples:
  modectl serve
  modectl serve --addr 0.0.0.0:7890 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				cfg.Catalog.Watch = watch
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := opts.newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := logging.DetachContextWithTimeout(ctx, cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := e.Close(ctx); err != nil {
					log.Warn().Err(err).Msg("engine shutdown")
				}
			}()

			if cfg.Catalog.Watch {
				w, err := startWatcher(ctx, e, cfg.Catalog.Paths)
				if err != nil {
					return err
				}
				defer w.Stop()
			}

			srv := server.New(e.orch, e.bus, &server.Config{
				Addr:            cfg.Server.Addr,
				Version:         version,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				ReplayHistory:   cfg.Server.ReplayHistory,
				HistoryCount:    cfg.Server.HistoryCount,
			},
				server.WithCollector(e.collector),
				server.WithLogger(logging.Component("server")),
			)

			log.Info().
				Str("addr", cfg.Server.Addr).
				Int("profiles", e.registry.Len()).
				Bool("watch", cfg.Catalog.Watch).
				Msg("control plane listening")
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().BoolVar(&watch, "watch", false, "hot-register profiles from new catalog files")
	return cmd
}

func startWatcher(ctx context.Context, e *engine, patterns []string) (*catalog.Watcher, error) {
	w, err := catalog.NewWatcher(e.loader, e.registry, patterns)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}
