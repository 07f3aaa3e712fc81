package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/bus"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/catalog"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/data"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/logging"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/metrics"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/orchestrator"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/registry"
)

// engine is one in-process session: a populated registry, its orchestrator, the
// bus both publish to and a collector subscribed before the first registration.
type engine struct {
	bus       *bus.Bus
	collector *metrics.Collector
	registry  *registry.Registry
	orch      *orchestrator.Orchestrator
	loader    *catalog.Loader
}

// newEngine builds a session from the loaded configuration. Registration failures
// (duplicate slugs across files) are logged by the loader and do not abort; a catalog
// file that fails to load does.
func (o *rootOptions) newEngine(ctx context.Context) (*engine, error) {
	cfg := o.cfg
	eventBus := bus.NewBusWithConfig(cfg.Server.HistoryCount)
	collector := metrics.NewCollector(eventBus)
	collector.Start()
	abort := func() {
		collector.Stop()
		eventBus.Close()
	}

	reg := registry.New(
		registry.WithTopN(cfg.Registry.TopN),
		registry.WithPublisher(eventBus),
		registry.WithLogger(logging.Component("registry")),
	)

	loader, err := catalog.NewLoader(cfg.Catalog.APIConstraint,
		catalog.WithLogger(logging.Component("catalog")))
	if err != nil {
		abort()
		return nil, err
	}

	src := catalog.Source{Builtin: cfg.Catalog.Builtin, Patterns: cfg.Catalog.Paths}
	if _, err := loader.Populate(ctx, reg, src); err != nil && reg.Len() == 0 {
		abort()
		return nil, fmt.Errorf("populate registry: %w", err)
	}

	orchLog := logging.Component("orchestrator")
	orch := orchestrator.New(reg, &orchestrator.Config{
		HookTimeout: cfg.Lifecycle.HookTimeout,
		Publisher:   eventBus,
		Logger:      &orchLog,
	})

	return &engine{bus: eventBus, collector: collector, registry: reg, orch: orch, loader: loader}, nil
}

// Close deactivates the active mode, if any, then stops the collector and shuts the
// bus down.
func (e *engine) Close(ctx context.Context) error {
	var errs []error
	if _, ok := e.orch.Active(); ok {
		errs = append(errs, e.orch.DeactivateActive(ctx))
	}
	e.collector.Stop()
	errs = append(errs, e.bus.Close())
	return errors.Join(errs...)
}

// openArchive opens the snapshot archive named by the configuration.
func (o *rootOptions) openArchive() (*data.Archive, error) {
	if err := o.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return data.Open(o.cfg.Archive.Driver, o.cfg.Archive.Path)
}
