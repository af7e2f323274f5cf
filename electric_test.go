package electric

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltlab/electric/pkg/adapters/memory"
	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

// echoLauncher pretends the engine ran and wrote a state dump whose
// force column pulls every dipole toward zero.
type echoLauncher struct {
	statePath string
	calls     int
}

func (l *echoLauncher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.LaunchResult, error) {
	l.calls++
	dump := "2 echoed\n" +
		"1 O 0.0 0.0 0.0 -0.8 0.0 0.0 0.0 0.0 0.0 0.0\n" +
		"2 H 1.0 0.0 0.0 0.4 0.0 0.0 0.0 0.0 0.0 0.0\n"
	if err := os.WriteFile(l.statePath, []byte(dump), 0o644); err != nil {
		return ports.LaunchResult{}, &domain.LaunchError{Path: spec.Path, Err: err}
	}
	return ports.LaunchResult{ExitCode: 0}, nil
}

func testDriverConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	exe := filepath.Join(dir, "dynamic")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	template := filepath.Join(dir, "system.key")
	require.NoError(t, os.WriteFile(template, []byte("parameters amoeba09\n"), 0o644))

	return Config{
		Engine:        exe,
		WorkDir:       dir,
		Template:      template,
		Params:        filepath.Join(dir, "step.key"),
		State:         filepath.Join(dir, "state.dump"),
		Tolerance:     1e-6,
		MaxIterations: 50,
		InitialParams: domain.EmbeddingParameters{
			{Charge: -0.8, Dipole: [3]float64{0.2, 0, 0}},
			{Charge: 0.4, Dipole: [3]float64{-0.1, 0, 0}},
		},
	}
}

func TestDriver_RunConverges(t *testing.T) {
	cfg := testDriverConfig(t)
	launcher := &echoLauncher{statePath: cfg.State}
	store := memory.NewStore()

	d := New(cfg, WithLauncher(launcher), WithStore(store))
	res, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunConverged, res.Status)
	assert.NotEmpty(t, res.History)
	assert.Equal(t, len(res.History), launcher.calls)

	// The zero-force engine pulls every dipole to the fixed point.
	for _, site := range res.Params {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, 0, site.Dipole[c], 1e-5)
		}
	}

	// Charges pass through the update rule untouched.
	assert.InDelta(t, -0.8, res.Params[0].Charge, 0)

	status, err := store.Status(context.Background(), d.RunID())
	require.NoError(t, err)
	assert.Equal(t, domain.RunConverged, status)
}

func TestNew_Defaults(t *testing.T) {
	d := New(Config{})

	assert.NotEmpty(t, d.RunID())
	assert.InDelta(t, 0.5, d.cfg.Mixing, 0)
	assert.InDelta(t, 1.0, d.cfg.Polarizability, 0)
	assert.NotNil(t, d.launcher)
	assert.NotNil(t, d.codec)
	assert.NotNil(t, d.rule)
}

func TestDriver_Validate(t *testing.T) {
	cfg := testDriverConfig(t)
	cfg.Engine = filepath.Join(cfg.WorkDir, "missing")

	d := New(cfg)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, d.Validate(), &cfgErr)
	assert.Equal(t, "executable", cfgErr.Field)
}
