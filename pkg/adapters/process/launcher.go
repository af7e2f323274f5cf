// Package process implements ports.EngineLauncher on top of os/exec.
//
// Each Launch starts the engine executable synchronously in the run's
// working directory, captures both output streams, and enforces the
// per-invocation wall-clock budget. The subprocess is killed on context
// cancellation or timeout; no invocation outlives its Launch call.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

// Launcher starts engine subprocesses. Zero value is usable; options
// configure logging.
type Launcher struct {
	logger *slog.Logger
}

// Option configures the launcher.
type Option func(*Launcher)

// WithLogger sets a structured logger for subprocess lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// NewLauncher creates a launcher.
func NewLauncher(opts ...Option) *Launcher {
	l := &Launcher{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ ports.EngineLauncher = (*Launcher)(nil)

// Launch runs the engine once and waits for completion.
func (l *Launcher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.LaunchResult, error) {
	if err := checkExecutable(spec.Path); err != nil {
		return ports.LaunchResult{}, err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir

	env := cmd.Environ()
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if l.logger != nil {
		l.logger.Debug("launching engine", "path", spec.Path, "dir", spec.Dir, "timeout", spec.Timeout)
	}

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := ports.LaunchResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	if err != nil {
		// Distinguish budget overrun from external cancellation before
		// inspecting the exit error: a killed process also reports a
		// generic non-zero exit.
		if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return result, &domain.TimeoutError{Timeout: spec.Timeout}
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("%w: %v", domain.ErrCanceled, ctx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &domain.RuntimeError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return result, &domain.LaunchError{Path: spec.Path, Err: err}
	}

	return result, nil
}

// checkExecutable verifies the engine binary exists and is runnable.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &domain.LaunchError{Path: path, Err: errors.New("executable not found")}
		}
		return &domain.LaunchError{Path: path, Err: err}
	}
	if info.IsDir() {
		return &domain.LaunchError{Path: path, Err: errors.New("path is a directory")}
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return &domain.LaunchError{Path: path, Err: errors.New("file is not executable")}
	}
	return nil
}
