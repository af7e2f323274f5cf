package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltlab/electric/pkg/adapters/memory"
	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

// fakeLauncher counts invocations and fails the first `failures` calls
// with failWith.
type fakeLauncher struct {
	calls    int
	failures int
	failWith error
}

func (l *fakeLauncher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.LaunchResult, error) {
	l.calls++
	if l.calls <= l.failures {
		return ports.LaunchResult{ExitCode: 1}, l.failWith
	}
	return ports.LaunchResult{ExitCode: 0, Duration: time.Millisecond}, nil
}

// fakeCodec records every encoded parameter set and serves a canned
// state on decode.
type fakeCodec struct {
	encoded   []domain.EmbeddingParameters
	state     *domain.SimulationState
	decodeErr error
}

func (c *fakeCodec) Encode(params domain.EmbeddingParameters, templatePath, outPath string) error {
	c.encoded = append(c.encoded, params.Clone())
	return nil
}

func (c *fakeCodec) Decode(path string) (*domain.SimulationState, error) {
	if c.decodeErr != nil {
		return nil, c.decodeErr
	}
	return c.state, nil
}

// contractionRule shrinks every component by a constant factor, so the
// residual decays geometrically and the fixed point is zero.
type contractionRule struct {
	rate float64
}

func (r contractionRule) Update(params domain.EmbeddingParameters, state *domain.SimulationState) (domain.EmbeddingParameters, float64, error) {
	next := make(domain.EmbeddingParameters, len(params))
	for i, p := range params {
		next[i].Charge = p.Charge * r.rate
		for c := 0; c < 3; c++ {
			next[i].Dipole[c] = p.Dipole[c] * r.rate
		}
	}
	residual, _, _ := params.MaxDelta(next)
	return next, residual, nil
}

// failingRule returns its error on the call numbered failOn.
type failingRule struct {
	inner  ports.UpdateRule
	failOn int
	err    error
	calls  int
}

func (r *failingRule) Update(params domain.EmbeddingParameters, state *domain.SimulationState) (domain.EmbeddingParameters, float64, error) {
	r.calls++
	if r.calls == r.failOn {
		return nil, 0, r.err
	}
	return r.inner.Update(params, state)
}

func testState(n int) *domain.SimulationState {
	s := &domain.SimulationState{Particles: make([]domain.Particle, n)}
	for i := range s.Particles {
		s.Particles[i] = domain.Particle{Index: i + 1, Name: "O", Charge: -0.8}
	}
	return s
}

func testParams(n int) domain.EmbeddingParameters {
	params := make(domain.EmbeddingParameters, n)
	for i := range params {
		params[i] = domain.SiteParams{Charge: -0.8, Dipole: [3]float64{1, 0.5, -0.25}}
	}
	return params
}

// testConfig lays out a runnable fixture: an executable stand-in, a
// template and a working directory, all under t.TempDir.
func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	exe := filepath.Join(dir, "dynamic")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	template := filepath.Join(dir, "system.key")
	require.NoError(t, os.WriteFile(template, []byte("parameters amoeba09\n"), 0o644))

	workdir := filepath.Join(dir, "work")
	require.NoError(t, os.Mkdir(workdir, 0o755))

	return Config{
		RunID:          "test-run",
		ExecutablePath: exe,
		WorkDir:        workdir,
		TemplatePath:   template,
		ParamsPath:     filepath.Join(workdir, "step.key"),
		StatePath:      filepath.Join(workdir, "state.dump"),
		InitialParams:  testParams(3),
		Tolerance:      1e-6,
		MaxIterations:  50,
	}
}

func TestEngine_Converges(t *testing.T) {
	cfg := testConfig(t)
	launcher := &fakeLauncher{}
	codec := &fakeCodec{state: testState(3)}
	store := memory.NewStore()

	eng := NewEngine(cfg, launcher, codec, contractionRule{rate: 0.5}, WithStore(store))
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunConverged, res.Status)
	assert.NoError(t, res.Cause)
	assert.Equal(t, domain.Converged, domain.StatusOf(res.Status))

	// Geometric decay from 1.0 at rate 0.5 crosses 1e-6 at iteration 20.
	require.Len(t, res.History, 20)
	for i := 1; i < len(res.History); i++ {
		assert.Less(t, res.History[i].Residual, res.History[i-1].Residual)
		assert.Equal(t, i+1, res.History[i].Index)
	}
	assert.Less(t, res.History[len(res.History)-1].Residual, cfg.Tolerance)

	// One engine invocation and one encode per iteration.
	assert.Equal(t, len(res.History), launcher.calls)
	assert.Equal(t, len(res.History), len(codec.encoded))

	status, err := store.Status(context.Background(), cfg.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunConverged, status)

	history, err := store.History(context.Background(), cfg.RunID)
	require.NoError(t, err)
	assert.Len(t, history, len(res.History))
}

func TestEngine_ExhaustsBudget(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxIterations = 5

	eng := NewEngine(cfg, &fakeLauncher{}, &fakeCodec{state: testState(3)}, contractionRule{rate: 0.99})
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunExhaustedBudget, res.Status)
	assert.NoError(t, res.Cause)
	assert.Len(t, res.History, 5)
	assert.Equal(t, domain.MaxIterationsExceeded, domain.StatusOf(res.Status))
}

func TestEngine_ConfigValidation(t *testing.T) {
	t.Run("Missing Executable", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.ExecutablePath = filepath.Join(cfg.WorkDir, "no-such-engine")
		launcher := &fakeLauncher{}

		eng := NewEngine(cfg, launcher, &fakeCodec{state: testState(3)}, contractionRule{rate: 0.5})
		res, err := eng.Run(context.Background())

		assert.Nil(t, res)
		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "executable", cfgErr.Field)
		assert.Zero(t, launcher.calls)
	})

	t.Run("Non-Positive Tolerance", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Tolerance = 0

		eng := NewEngine(cfg, &fakeLauncher{}, &fakeCodec{state: testState(3)}, contractionRule{rate: 0.5})
		_, err := eng.Run(context.Background())

		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "tolerance", cfgErr.Field)
	})

	t.Run("Zero Max Iterations", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.MaxIterations = 0

		eng := NewEngine(cfg, &fakeLauncher{}, &fakeCodec{state: testState(3)}, contractionRule{rate: 0.5})
		_, err := eng.Run(context.Background())

		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "max_iterations", cfgErr.Field)
	})
}

func TestEngine_RetriesEngineFailureOnce(t *testing.T) {
	cfg := testConfig(t)
	launcher := &fakeLauncher{failures: 1, failWith: &domain.RuntimeError{ExitCode: 137, Stderr: "killed"}}

	var retries int
	hooks := domain.LifecycleHooks{
		OnRetry: func(ctx context.Context, event *domain.EngineEvent) { retries++ },
	}

	eng := NewEngine(cfg, launcher, &fakeCodec{state: testState(3)}, contractionRule{rate: 0.5}, WithHooks(hooks))
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunConverged, res.Status)
	assert.Equal(t, 1, retries)
	assert.True(t, res.History[0].Retried)
	for _, rec := range res.History[1:] {
		assert.False(t, rec.Retried)
	}
	// 21 iterations plus the one failed attempt.
	assert.Equal(t, len(res.History)+1, launcher.calls)
}

func TestEngine_SecondFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	launcher := &fakeLauncher{failures: 2, failWith: &domain.RuntimeError{ExitCode: 1, Stderr: "boom"}}
	store := memory.NewStore()

	eng := NewEngine(cfg, launcher, &fakeCodec{state: testState(3)}, contractionRule{rate: 0.5}, WithStore(store))
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunDiverged, res.Status)
	assert.Empty(t, res.History)
	assert.Equal(t, 2, launcher.calls)

	var iterErr *domain.IterationError
	require.ErrorAs(t, res.Cause, &iterErr)
	assert.Equal(t, 1, iterErr.Index)
	var runtimeErr *domain.RuntimeError
	assert.ErrorAs(t, res.Cause, &runtimeErr)

	status, err := store.Status(context.Background(), cfg.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunDiverged, status)
}

func TestEngine_ParseErrorIsNotRetried(t *testing.T) {
	cfg := testConfig(t)
	launcher := &fakeLauncher{}
	codec := &fakeCodec{decodeErr: &domain.ParseError{File: "state.dump", Line: 3, Field: "charge", Err: errors.New("bad float")}}

	eng := NewEngine(cfg, launcher, codec, contractionRule{rate: 0.5})
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunDiverged, res.Status)
	assert.Equal(t, 1, launcher.calls)

	var parseErr *domain.ParseError
	assert.ErrorAs(t, res.Cause, &parseErr)
}

func TestEngine_ParticleCountChangeIsFatal(t *testing.T) {
	cfg := testConfig(t)
	codec := &fakeCodec{state: testState(5)}

	eng := NewEngine(cfg, &fakeLauncher{}, codec, contractionRule{rate: 0.5})
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunDiverged, res.Status)
	var parseErr *domain.ParseError
	require.ErrorAs(t, res.Cause, &parseErr)
	assert.Equal(t, "natoms", parseErr.Field)
}

func TestEngine_DivergenceCarriesIteration(t *testing.T) {
	cfg := testConfig(t)
	rule := &failingRule{
		inner:  contractionRule{rate: 0.5},
		failOn: 3,
		err:    &domain.DivergenceError{Particle: 1, Component: 2},
	}

	eng := NewEngine(cfg, &fakeLauncher{}, &fakeCodec{state: testState(3)}, rule)
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunDiverged, res.Status)
	assert.Len(t, res.History, 2)

	var divErr *domain.DivergenceError
	require.ErrorAs(t, res.Cause, &divErr)
	assert.Equal(t, 3, divErr.Iteration)
	assert.Equal(t, 1, divErr.Particle)
	assert.Equal(t, 2, divErr.Component)
}

func TestEngine_Cancellation(t *testing.T) {
	cfg := testConfig(t)
	codec := &fakeCodec{state: testState(3)}

	ctx, cancel := context.WithCancel(context.Background())
	hooks := domain.LifecycleHooks{
		OnIterationEnd: func(ctx context.Context, event *domain.IterationEvent) {
			if event.Index == 4 {
				cancel()
			}
		},
	}

	eng := NewEngine(cfg, &fakeLauncher{}, codec, contractionRule{rate: 0.9}, WithHooks(hooks))
	res, err := eng.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.RunDiverged, res.Status)
	assert.ErrorIs(t, res.Cause, domain.ErrCanceled)
	assert.Len(t, res.History, 4)
}

func TestEngine_SeedsParamsFromFirstState(t *testing.T) {
	cfg := testConfig(t)
	cfg.InitialParams = nil
	codec := &fakeCodec{state: testState(3)}

	eng := NewEngine(cfg, &fakeLauncher{}, codec, contractionRule{rate: 0.5})
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunConverged, res.Status)
	require.Len(t, res.Params, 3)
	// No parameters existed before the first launch, so nothing was encoded
	// for iteration one.
	assert.Equal(t, len(res.History)-1, len(codec.encoded))
}

func TestLockDir(t *testing.T) {
	dir := t.TempDir()

	release, err := lockDir(dir)
	require.NoError(t, err)

	t.Run("Second Run Is Refused", func(t *testing.T) {
		_, err := lockDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already in use")
	})

	t.Run("Release Frees The Directory", func(t *testing.T) {
		release()
		_, err := os.Stat(filepath.Join(dir, lockFileName))
		assert.True(t, errors.Is(err, os.ErrNotExist))

		release2, err := lockDir(dir)
		require.NoError(t, err)
		release2()
	})
}

func TestEngine_RefusesLockedWorkDir(t *testing.T) {
	cfg := testConfig(t)

	release, err := lockDir(cfg.WorkDir)
	require.NoError(t, err)
	defer release()

	eng := NewEngine(cfg, &fakeLauncher{}, &fakeCodec{state: testState(3)}, contractionRule{rate: 0.5})
	res, err := eng.Run(context.Background())
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in use")
}
