package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrCanceled is returned when an external cancellation (signal or
// deadline) terminates a run mid-iteration.
var ErrCanceled = errors.New("run canceled")

// ErrRunNotFound is returned by record stores when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// ConfigError reports invalid run configuration. It is fatal and never
// retried; the loop refuses to start.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// LaunchError reports that the engine executable could not be started
// (missing path, not executable, fork failure).
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("engine launch failed: %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// TimeoutError reports that an engine invocation exceeded its
// wall-clock budget and was forcibly terminated.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("engine timed out after %s", e.Timeout)
}

// RuntimeError reports a non-zero engine exit, carrying the captured
// stderr for diagnosis.
type RuntimeError struct {
	ExitCode int
	Stderr   string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("engine exited with code %d: %s", e.ExitCode, e.Stderr)
}

// ParseError reports malformed or truncated engine output. It names the
// file, line and field that failed. Fatal: a parse failure indicates an
// engine/driver format mismatch, not a transient condition.
type ParseError struct {
	File  string
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: line %d, field %q: %v", e.File, e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DivergenceError reports that a parameter update produced a non-finite
// value. The run aborts rather than clamping. Particle and Component
// use EmbeddingParameters.MaxDelta numbering (0 = charge, 1..3 = dipole).
type DivergenceError struct {
	Iteration int
	Particle  int
	Component int
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("numerical divergence at iteration %d: particle %d, component %d is not finite",
		e.Iteration, e.Particle, e.Component)
}

// IterationError wraps a component failure with its iteration context
// before it is re-raised to the loop.
type IterationError struct {
	Index   int
	Elapsed time.Duration
	Err     error
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("iteration %d (after %s): %v", e.Index, e.Elapsed, e.Err)
}

func (e *IterationError) Unwrap() error { return e.Err }

// Retryable reports whether an error may be retried once by the loop.
// Only engine invocation failures are transient; configuration, parse
// and divergence errors are fatal, as is cancellation.
func Retryable(err error) bool {
	if errors.Is(err, ErrCanceled) {
		return false
	}
	var launch *LaunchError
	var timeout *TimeoutError
	var runtime *RuntimeError
	return errors.As(err, &launch) || errors.As(err, &timeout) || errors.As(err, &runtime)
}
