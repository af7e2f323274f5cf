// Package runtime contains the convergence loop: the state machine
// that drives the external engine to self-consistency.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

// launchAttempts is the total number of tries per iteration: the
// initial invocation plus the single permitted retry.
const launchAttempts = 2

// Config is the explicit per-run configuration threaded through the
// loop and its components. Its lifecycle is scoped to one run; there is
// no process-wide state.
type Config struct {
	// RunID identifies the run in stores, hooks and logs.
	RunID string

	// ExecutablePath is the external dynamics engine binary.
	ExecutablePath string

	// Args are passed to the engine on every invocation.
	Args []string

	// WorkDir is the directory holding the engine's input and output
	// files. The run takes exclusive use of it.
	WorkDir string

	// TemplatePath is the keyfile template whose non-embedding lines
	// are preserved on every encode.
	TemplatePath string

	// ParamsPath is where the encoded keyfile is written for the
	// engine to consume.
	ParamsPath string

	// StatePath is the engine's per-step state dump, decoded after
	// every invocation.
	StatePath string

	// InitialParams seeds the first iteration. If nil, the parameters
	// echoed in the first engine state are used.
	InitialParams domain.EmbeddingParameters

	// Tolerance is the convergence threshold on the residual. Must be
	// positive.
	Tolerance float64

	// MaxIterations bounds the loop. Must be at least 1.
	MaxIterations int

	// StepTimeout is the wall-clock budget per engine invocation.
	// Zero disables the per-step limit.
	StepTimeout time.Duration

	// LockTTL bounds distributed lock ownership when a locker is
	// configured. Defaults to one hour.
	LockTTL time.Duration
}

// Engine executes the convergence loop:
//
//	Init → Running → {Converged, Diverged, ExhaustedBudget}
//
// Each Running cycle encodes the current parameters, launches the
// external engine, decodes its state dump and applies the update rule.
// The loop owns retry policy: one retry per iteration for transient
// engine failures, nothing else.
type Engine struct {
	cfg      Config
	launcher ports.EngineLauncher
	codec    ports.StateCodec
	rule     ports.UpdateRule
	store    ports.RecordStore
	locker   ports.Locker
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithStore sets the record store receiving history and status.
func WithStore(store ports.RecordStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker adds a distributed lock on the working directory, for
// deployments where several driver instances could reach the same
// directory. The local lockfile guard is always in place.
func WithLocker(locker ports.Locker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// NewEngine creates a convergence loop around the three exchange
// components.
func NewEngine(cfg Config, launcher ports.EngineLauncher, codec ports.StateCodec, rule ports.UpdateRule, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		launcher: launcher,
		codec:    codec,
		rule:     rule,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate implements the Init state: every configuration fault is
// reported as a *domain.ConfigError before any iteration runs.
func (e *Engine) Validate() error {
	if e.launcher == nil || e.codec == nil || e.rule == nil {
		return &domain.ConfigError{Field: "components", Reason: "launcher, codec and rule are required"}
	}
	if e.cfg.Tolerance <= 0 {
		return &domain.ConfigError{Field: "tolerance", Reason: "must be positive"}
	}
	if e.cfg.MaxIterations < 1 {
		return &domain.ConfigError{Field: "max_iterations", Reason: "must be at least 1"}
	}
	if e.cfg.StepTimeout < 0 {
		return &domain.ConfigError{Field: "step_timeout", Reason: "must not be negative"}
	}

	info, err := os.Stat(e.cfg.ExecutablePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &domain.ConfigError{Field: "executable", Reason: fmt.Sprintf("%s does not exist", e.cfg.ExecutablePath)}
		}
		return &domain.ConfigError{Field: "executable", Reason: err.Error()}
	}
	if info.IsDir() {
		return &domain.ConfigError{Field: "executable", Reason: "path is a directory"}
	}
	if goruntime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return &domain.ConfigError{Field: "executable", Reason: "file is not executable"}
	}

	if dir, err := os.Stat(e.cfg.WorkDir); err != nil || !dir.IsDir() {
		return &domain.ConfigError{Field: "workdir", Reason: fmt.Sprintf("%s is not a directory", e.cfg.WorkDir)}
	}
	if _, err := os.Stat(e.cfg.TemplatePath); err != nil {
		return &domain.ConfigError{Field: "template", Reason: fmt.Sprintf("%s does not exist", e.cfg.TemplatePath)}
	}
	if e.cfg.ParamsPath == "" || e.cfg.StatePath == "" {
		return &domain.ConfigError{Field: "files", Reason: "params and state paths are required"}
	}
	return nil
}

// Run drives the loop to a terminal state. A non-nil error is returned
// only when the run could not start (configuration or lock failure);
// once iterating, failures terminate the run and are reported in
// Result.Cause with Status RunDiverged. The iteration history is
// populated in every case.
func (e *Engine) Run(ctx context.Context) (*domain.Result, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	release, err := lockDir(e.cfg.WorkDir)
	if err != nil {
		return nil, err
	}
	defer release()

	if e.locker != nil {
		ttl := e.cfg.LockTTL
		if ttl == 0 {
			ttl = time.Hour
		}
		unlock, err := e.locker.Lock(ctx, e.cfg.WorkDir, ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire working directory lock: %w", err)
		}
		defer func() {
			if err := unlock(context.Background()); err != nil {
				e.logger.Warn("failed to release lock", "err", err)
			}
		}()
	}

	e.setStatus(ctx, domain.RunRunning)
	e.logger.Info("run started",
		"run_id", e.cfg.RunID,
		"engine", e.cfg.ExecutablePath,
		"tolerance", e.cfg.Tolerance,
		"max_iterations", e.cfg.MaxIterations)

	res := &domain.Result{
		RunID:  e.cfg.RunID,
		Params: e.cfg.InitialParams.Clone(),
		Status: domain.RunRunning,
	}
	params := e.cfg.InitialParams.Clone()

	for i := 1; i <= e.cfg.MaxIterations; i++ {
		if ctx.Err() != nil {
			return e.finish(res, domain.RunDiverged, fmt.Errorf("%w: %v", domain.ErrCanceled, ctx.Err())), nil
		}

		start := time.Now()
		e.fireIterationStart(ctx, i)

		state, retried, err := e.iterate(ctx, i, params)
		if err != nil {
			return e.finish(res, domain.RunDiverged, wrapIteration(i, start, err)), nil
		}
		res.State = state

		if len(params) == 0 {
			// No seed parameters: adopt the set echoed by the engine.
			params = domain.ParamsFromState(state)
		}

		next, residual, err := e.rule.Update(params, state)
		if err != nil {
			var divErr *domain.DivergenceError
			if errors.As(err, &divErr) {
				divErr.Iteration = i
			}
			return e.finish(res, domain.RunDiverged, wrapIteration(i, start, err)), nil
		}
		params = next
		res.Params = params

		rec := domain.IterationRecord{
			Index:    i,
			Residual: residual,
			Retried:  retried,
			WallTime: time.Since(start),
		}
		res.History = append(res.History, rec)
		e.appendRecord(ctx, rec)
		e.fireIterationEnd(ctx, &rec)

		e.logger.Debug("iteration complete",
			"run_id", e.cfg.RunID,
			"iteration", i,
			"residual", residual,
			"retried", retried)

		if residual < e.cfg.Tolerance {
			return e.finish(res, domain.RunConverged, nil), nil
		}
	}

	return e.finish(res, domain.RunExhaustedBudget, nil), nil
}

// iterate performs one Encode → Launch → Decode cycle and returns the
// fresh snapshot. Engine failures are retried exactly once.
func (e *Engine) iterate(ctx context.Context, index int, params domain.EmbeddingParameters) (*domain.SimulationState, bool, error) {
	if len(params) > 0 {
		if err := e.codec.Encode(params, e.cfg.TemplatePath, e.cfg.ParamsPath); err != nil {
			return nil, false, err
		}
	}

	spec := ports.LaunchSpec{
		Path:    e.cfg.ExecutablePath,
		Args:    e.cfg.Args,
		Dir:     e.cfg.WorkDir,
		Timeout: e.cfg.StepTimeout,
	}

	retried := false
	var launchErr error
	for attempt := 1; attempt <= launchAttempts; attempt++ {
		event := &domain.EngineEvent{RunID: e.cfg.RunID, Iteration: index, Attempt: attempt}
		e.fireEngineLaunch(ctx, event)

		result, err := e.launcher.Launch(ctx, spec)
		event.ExitCode = result.ExitCode
		event.Duration = result.Duration
		event.Err = err
		e.fireEngineExit(ctx, event)

		if err == nil {
			launchErr = nil
			break
		}
		launchErr = err

		if attempt < launchAttempts && domain.Retryable(err) && ctx.Err() == nil {
			retried = true
			e.logger.Warn("engine invocation failed, retrying once",
				"run_id", e.cfg.RunID, "iteration", index, "err", err)
			e.fireRetry(ctx, event)
			continue
		}
		break
	}
	if launchErr != nil {
		return nil, retried, launchErr
	}

	state, err := e.codec.Decode(e.cfg.StatePath)
	if err != nil {
		return nil, retried, err
	}
	if expect := len(params); expect > 0 && state.Len() != expect {
		return nil, retried, &domain.ParseError{
			File: e.cfg.StatePath, Line: 1, Field: "natoms",
			Err: fmt.Errorf("particle count changed: have %d, want %d", state.Len(), expect),
		}
	}
	return state, retried, nil
}

// finish moves the run to a terminal state and reports it everywhere:
// store, hooks, logger, result.
func (e *Engine) finish(res *domain.Result, status domain.RunState, cause error) *domain.Result {
	res.Status = status
	res.Cause = cause

	// Persist and notify with a fresh context: the run context may
	// already be canceled.
	ctx := context.Background()
	e.setStatus(ctx, status)
	if e.hooks.OnFinish != nil {
		e.hooks.OnFinish(ctx, &domain.FinishEvent{
			RunID:      e.cfg.RunID,
			Status:     status,
			Iterations: len(res.History),
		})
	}

	if cause != nil {
		e.logger.Error("run terminated", "run_id", e.cfg.RunID, "status", status, "err", cause)
	} else {
		e.logger.Info("run finished", "run_id", e.cfg.RunID, "status", status, "iterations", len(res.History))
	}
	return res
}

func wrapIteration(index int, start time.Time, err error) error {
	return &domain.IterationError{Index: index, Elapsed: time.Since(start), Err: err}
}

func (e *Engine) setStatus(ctx context.Context, status domain.RunState) {
	if e.store == nil {
		return
	}
	if err := e.store.SetStatus(ctx, e.cfg.RunID, status); err != nil {
		e.logger.Warn("failed to persist run status", "run_id", e.cfg.RunID, "err", err)
	}
}

func (e *Engine) appendRecord(ctx context.Context, rec domain.IterationRecord) {
	if e.store == nil {
		return
	}
	if err := e.store.Append(ctx, e.cfg.RunID, rec); err != nil {
		e.logger.Warn("failed to persist iteration record", "run_id", e.cfg.RunID, "err", err)
	}
}

func (e *Engine) fireIterationStart(ctx context.Context, index int) {
	if e.hooks.OnIterationStart != nil {
		e.hooks.OnIterationStart(ctx, &domain.IterationEvent{RunID: e.cfg.RunID, Index: index})
	}
}

func (e *Engine) fireIterationEnd(ctx context.Context, rec *domain.IterationRecord) {
	if e.hooks.OnIterationEnd != nil {
		e.hooks.OnIterationEnd(ctx, &domain.IterationEvent{
			RunID:    e.cfg.RunID,
			Index:    rec.Index,
			Residual: rec.Residual,
			WallTime: rec.WallTime,
		})
	}
}

func (e *Engine) fireEngineLaunch(ctx context.Context, event *domain.EngineEvent) {
	if e.hooks.OnEngineLaunch != nil {
		e.hooks.OnEngineLaunch(ctx, event)
	}
}

func (e *Engine) fireEngineExit(ctx context.Context, event *domain.EngineEvent) {
	if e.hooks.OnEngineExit != nil {
		e.hooks.OnEngineExit(ctx, event)
	}
}

func (e *Engine) fireRetry(ctx context.Context, event *domain.EngineEvent) {
	if e.hooks.OnRetry != nil {
		e.hooks.OnRetry(ctx, event)
	}
}
