// Package config loads and validates the driver's run configuration
// from YAML, with CLI overrides applied on top.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voltlab/electric/pkg/domain"
)

// Duration wraps time.Duration so YAML can carry values like "30s".
type Duration time.Duration

// UnmarshalYAML accepts either a Go duration string or a number of
// seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		dur, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(dur)
		return nil
	}

	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration at line %d", value.Line)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// EngineConfig locates the external dynamics engine.
type EngineConfig struct {
	Path        string   `yaml:"path"`
	Args        []string `yaml:"args"`
	WorkDir     string   `yaml:"workdir"`
	StepTimeout Duration `yaml:"step_timeout"`
}

// ConvergenceConfig tunes the self-consistency loop.
type ConvergenceConfig struct {
	Tolerance      float64 `yaml:"tolerance"`
	MaxIterations  int     `yaml:"max_iterations"`
	Mixing         float64 `yaml:"mixing"`
	Polarizability float64 `yaml:"polarizability"`
}

// FilesConfig names the exchange files inside the working directory.
type FilesConfig struct {
	Template string `yaml:"template"`
	Params   string `yaml:"params"`
	State    string `yaml:"state"`
	Snapshot string `yaml:"snapshot"`
	Fields   string `yaml:"fields"`
	Topology string `yaml:"topology"`
}

// AnalysisConfig selects the probe atoms and the fragment grouping used
// by field analysis.
type AnalysisConfig struct {
	Probes  []int  `yaml:"probes"`
	GroupBy string `yaml:"group_by"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the root of the driver configuration file.
type Config struct {
	RunID       string            `yaml:"run_id"`
	LogLevel    string            `yaml:"log_level"`
	StatusAddr  string            `yaml:"status_addr"`
	Engine      EngineConfig      `yaml:"engine"`
	Convergence ConvergenceConfig `yaml:"convergence"`
	Files       FilesConfig       `yaml:"files"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Store       StoreConfig       `yaml:"store"`
}

// Default returns the configuration used when the file omits a value.
func Default() Config {
	return Config{
		LogLevel: "info",
		Engine: EngineConfig{
			WorkDir: ".",
		},
		Convergence: ConvergenceConfig{
			Tolerance:      1e-6,
			MaxIterations:  100,
			Mixing:         0.5,
			Polarizability: 1.0,
		},
		Files: FilesConfig{
			Template: "system.key",
			Params:   "step.key",
			State:    "state.dump",
		},
		Analysis: AnalysisConfig{
			GroupBy: "atom",
		},
		Store: StoreConfig{
			Backend: "memory",
		},
	}
}

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the semantic constraints the loop depends on. File
// existence is checked later, by the runtime, so a config can be
// validated on a machine that does not hold the data.
func (c *Config) Validate() error {
	if c.Engine.Path == "" {
		return &domain.ConfigError{Field: "engine.path", Reason: "is required"}
	}
	if c.Engine.StepTimeout < 0 {
		return &domain.ConfigError{Field: "engine.step_timeout", Reason: "must not be negative"}
	}
	if c.Convergence.Tolerance <= 0 {
		return &domain.ConfigError{Field: "convergence.tolerance", Reason: "must be positive"}
	}
	if c.Convergence.MaxIterations < 1 {
		return &domain.ConfigError{Field: "convergence.max_iterations", Reason: "must be at least 1"}
	}
	if c.Convergence.Mixing <= 0 || c.Convergence.Mixing > 1 {
		return &domain.ConfigError{Field: "convergence.mixing", Reason: "must be in (0, 1]"}
	}
	if c.Convergence.Polarizability <= 0 {
		return &domain.ConfigError{Field: "convergence.polarizability", Reason: "must be positive"}
	}
	if c.Files.Template == "" || c.Files.Params == "" || c.Files.State == "" {
		return &domain.ConfigError{Field: "files", Reason: "template, params and state are required"}
	}
	switch c.Analysis.GroupBy {
	case "atom", "residue", "molecule":
	default:
		return &domain.ConfigError{Field: "analysis.group_by", Reason: "must be one of atom, residue, molecule"}
	}
	for _, p := range c.Analysis.Probes {
		if p < 1 {
			return &domain.ConfigError{Field: "analysis.probes", Reason: "atom numbers are 1-based"}
		}
	}
	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return &domain.ConfigError{Field: "store.path", Reason: "is required for the sqlite backend"}
		}
	case "redis":
		if c.Store.Addr == "" {
			return &domain.ConfigError{Field: "store.addr", Reason: "is required for the redis backend"}
		}
	default:
		return &domain.ConfigError{Field: "store.backend", Reason: "must be one of memory, sqlite, redis"}
	}
	return nil
}
