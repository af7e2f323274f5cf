package ports

import (
	"context"
	"time"
)

// LaunchSpec describes one engine invocation.
type LaunchSpec struct {
	// Path is the engine executable.
	Path string

	// Args are passed verbatim.
	Args []string

	// Dir is the working directory containing the engine's input files.
	Dir string

	// Env entries are appended to the inherited environment.
	Env map[string]string

	// Timeout is the wall-clock budget for this invocation. Zero means
	// no per-invocation limit (the context may still impose one).
	Timeout time.Duration
}

// LaunchResult is the outcome of a completed engine invocation.
type LaunchResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// EngineLauncher starts the external dynamics engine and waits for it
// to finish. Implementations must terminate the subprocess on context
// cancellation and must not retry; retry policy belongs to the loop.
//
// Failure modes map onto the domain taxonomy: *domain.LaunchError when
// the process cannot start, *domain.TimeoutError when the budget is
// exceeded, *domain.RuntimeError on non-zero exit.
type EngineLauncher interface {
	Launch(ctx context.Context, spec LaunchSpec) (LaunchResult, error)
}
