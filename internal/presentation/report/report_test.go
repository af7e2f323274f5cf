package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltlab/electric/pkg/domain"
)

func TestBuild_ConvergedRun(t *testing.T) {
	md := Build(&domain.Result{
		RunID:  "water-box",
		Status: domain.RunConverged,
		State:  &domain.SimulationState{Particles: make([]domain.Particle, 6)},
		History: []domain.IterationRecord{
			{Index: 1, Residual: 0.5, WallTime: 120 * time.Millisecond},
			{Index: 2, Residual: 1e-7, Retried: true, WallTime: 90 * time.Millisecond},
		},
	})

	assert.Contains(t, md, "# Run water-box")
	assert.Contains(t, md, "**Outcome**: converged")
	assert.Contains(t, md, "**Iterations**: 2")
	assert.Contains(t, md, "**Particles**: 6")
	assert.Contains(t, md, "**Final residual**: 1.000e-07")
	assert.Contains(t, md, "| 2 | 1.000e-07 | yes | 90ms |")
	assert.NotContains(t, md, "Cause")
}

func TestBuild_FailedRun(t *testing.T) {
	md := Build(&domain.Result{
		RunID:  "bad",
		Status: domain.RunDiverged,
		Cause:  errors.New("engine exited with code 1"),
	})

	assert.Contains(t, md, "**Outcome**: engine_failure")
	assert.Contains(t, md, "**Cause**: engine exited with code 1")
	assert.NotContains(t, md, "## Iterations")
}

func TestRender_NonTerminalPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	md := Build(&domain.Result{RunID: "r", Status: domain.RunExhaustedBudget})

	require.NoError(t, Render(&buf, md))
	assert.Equal(t, md, buf.String())
}
