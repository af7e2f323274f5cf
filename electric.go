// Package electric drives an external molecular dynamics engine to a
// self-consistent electric embedding. It wraps the internal convergence
// runtime behind a small, option-based API.
package electric

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voltlab/electric/internal/logging"
	"github.com/voltlab/electric/internal/runtime"
	"github.com/voltlab/electric/pkg/adapters/process"
	"github.com/voltlab/electric/pkg/adapters/tinker"
	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
	"github.com/voltlab/electric/pkg/rule"
)

// Version is stamped at build time.
var Version = "0.2.0"

// Config describes one convergence run.
type Config struct {
	// RunID labels the run in stores and logs. A random ID is
	// generated when empty.
	RunID string

	// Engine is the path to the external dynamics binary. Args are
	// passed on every invocation; WorkDir holds the exchange files.
	Engine  string
	Args    []string
	WorkDir string

	// Template is the keyfile whose non-embedding lines survive every
	// encode. Params receives the encoded keyfile; State is the
	// engine's per-step dump.
	Template string
	Params   string
	State    string

	// InitialParams seeds the loop. When nil the parameters echoed in
	// the first engine state are adopted.
	InitialParams domain.EmbeddingParameters

	// Tolerance and MaxIterations bound the loop.
	Tolerance     float64
	MaxIterations int

	// Mixing and Polarizability tune the update rule. Zero values
	// select the defaults (0.5 and 1.0).
	Mixing         float64
	Polarizability float64

	// StepTimeout limits one engine invocation; zero disables it.
	// LockTTL bounds distributed lock ownership when a locker is set.
	StepTimeout time.Duration
	LockTTL     time.Duration
}

// Driver is the public face of the convergence loop.
type Driver struct {
	cfg      Config
	launcher ports.EngineLauncher
	codec    ports.StateCodec
	rule     ports.UpdateRule
	store    ports.RecordStore
	locker   ports.Locker
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option configures the driver.
type Option func(*Driver)

// WithLauncher replaces the default subprocess launcher.
func WithLauncher(l ports.EngineLauncher) Option {
	return func(d *Driver) { d.launcher = l }
}

// WithCodec replaces the default Tinker state codec.
func WithCodec(c ports.StateCodec) Option {
	return func(d *Driver) { d.codec = c }
}

// WithRule replaces the default damped self-consistent update rule.
func WithRule(r ports.UpdateRule) Option {
	return func(d *Driver) { d.rule = r }
}

// WithStore persists iteration records and run status.
func WithStore(s ports.RecordStore) Option {
	return func(d *Driver) { d.store = s }
}

// WithLocker guards the working directory across driver instances.
func WithLocker(l ports.Locker) Option {
	return func(d *Driver) { d.locker = l }
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Driver) { d.hooks = hooks }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New assembles a driver with Tinker-flavored defaults.
func New(cfg Config, opts ...Option) *Driver {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Mixing == 0 {
		cfg.Mixing = 0.5
	}
	if cfg.Polarizability == 0 {
		cfg.Polarizability = 1.0
	}

	d := &Driver{cfg: cfg, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(d)
	}

	if d.launcher == nil {
		d.launcher = process.NewLauncher(process.WithLogger(d.logger))
	}
	if d.codec == nil {
		d.codec = tinker.NewCodec()
	}
	if d.rule == nil {
		d.rule = &rule.SCF{Polarizability: cfg.Polarizability, Mixing: cfg.Mixing}
	}
	return d
}

// RunID returns the identifier the driver will report under.
func (d *Driver) RunID() string { return d.cfg.RunID }

// Validate checks the configuration without starting the run.
func (d *Driver) Validate() error {
	return d.engine().Validate()
}

// Run executes the loop to a terminal state. The returned error is
// non-nil only when the run could not start; terminal failures are
// reported in Result.Cause.
func (d *Driver) Run(ctx context.Context) (*domain.Result, error) {
	return d.engine().Run(ctx)
}

func (d *Driver) engine() *runtime.Engine {
	rcfg := runtime.Config{
		RunID:          d.cfg.RunID,
		ExecutablePath: d.cfg.Engine,
		Args:           d.cfg.Args,
		WorkDir:        d.cfg.WorkDir,
		TemplatePath:   d.cfg.Template,
		ParamsPath:     d.cfg.Params,
		StatePath:      d.cfg.State,
		InitialParams:  d.cfg.InitialParams,
		Tolerance:      d.cfg.Tolerance,
		MaxIterations:  d.cfg.MaxIterations,
		StepTimeout:    d.cfg.StepTimeout,
		LockTTL:        d.cfg.LockTTL,
	}

	opts := []runtime.Option{
		runtime.WithLogger(d.logger),
		runtime.WithHooks(d.hooks),
	}
	if d.store != nil {
		opts = append(opts, runtime.WithStore(d.store))
	}
	if d.locker != nil {
		opts = append(opts, runtime.WithLocker(d.locker))
	}
	return runtime.NewEngine(rcfg, d.launcher, d.codec, d.rule, opts...)
}
