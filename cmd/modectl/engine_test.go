package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/catalog"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/config"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

func TestEngineCollectorCountsRegistrations(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	cfg := config.Default()
	cfg.Catalog.Paths = []string{filepath.Join(dir, "modes", "*.yaml")}
	opts := &rootOptions{cfg: cfg}

	ctx := context.Background()
	e, err := opts.newEngine(ctx)
	require.NoError(t, err)
	defer e.Close(ctx)

	builtin, err := catalog.Builtin()
	require.NoError(t, err)
	require.Equal(t, len(builtin), e.registry.Len())

	assert.Eventually(t, func() bool {
		return e.collector.GetSessionStats().Registrations == len(builtin)
	}, time.Second, 10*time.Millisecond)

	_, err = e.orch.SwitchMode(ctx, builtin[0].Slug, modes.Context{})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		stats := e.collector.GetSessionStats()
		return stats.Switches == 1 && stats.ActiveSlug == builtin[0].Slug
	}, time.Second, 10*time.Millisecond)
}
