package domain

// Particle is one per-atom record of a simulation snapshot.
type Particle struct {
	// Index is the 1-based atom number as the engine reports it.
	Index int

	// Name is the atom label from the engine output (e.g. "O", "HW").
	Name string

	// Position in bohr.
	Position [3]float64

	// Velocity in atomic units. Only meaningful if the enclosing
	// state has HasVelocities set.
	Velocity [3]float64

	// Charge is the permanent partial charge at this site.
	Charge float64

	// Dipole is the induced dipole at this site, as last seen by the engine.
	Dipole [3]float64

	// Force is the force (field response) reported by the engine at this site.
	Force [3]float64
}

// SimulationState is an immutable snapshot of the engine state for one
// iteration. A fresh state is produced by the codec each cycle; it is
// never mutated in place.
//
// Particle ordering is stable and defines particle identity: index i in
// Particles refers to the same physical site across iterations. The
// runtime enforces that the record count never changes during a run.
type SimulationState struct {
	Particles []Particle

	// Box holds periodic box parameters (lengths and angles) when the
	// engine dump included them.
	Box *[6]float64

	// HasVelocities reports whether velocity columns were present in
	// the decoded dump.
	HasVelocities bool
}

// Len returns the particle count.
func (s *SimulationState) Len() int {
	return len(s.Particles)
}

// RunState is the state machine position of a convergence run.
type RunState string

const (
	RunInit            RunState = "init"
	RunRunning         RunState = "running"
	RunConverged       RunState = "converged"
	RunDiverged        RunState = "diverged"
	RunExhaustedBudget RunState = "exhausted_budget"
)

// Terminal reports whether the run state is terminal.
func (s RunState) Terminal() bool {
	switch s {
	case RunConverged, RunDiverged, RunExhaustedBudget:
		return true
	}
	return false
}

// ConvergenceStatus is the user-facing outcome of a finished run.
type ConvergenceStatus string

const (
	Converged             ConvergenceStatus = "converged"
	MaxIterationsExceeded ConvergenceStatus = "max_iterations_exceeded"
	EngineFailure         ConvergenceStatus = "engine_failure"
)

// StatusOf maps a terminal run state to its convergence status.
func StatusOf(s RunState) ConvergenceStatus {
	switch s {
	case RunConverged:
		return Converged
	case RunExhaustedBudget:
		return MaxIterationsExceeded
	default:
		return EngineFailure
	}
}

// Result is the single output object of a run: the last good snapshot
// (nil if the first decode never succeeded), the final parameters, the
// full iteration history and the terminal status.
//
// History is populated even when the run fails, so partial progress
// stays inspectable.
type Result struct {
	RunID   string
	State   *SimulationState
	Params  EmbeddingParameters
	History []IterationRecord
	Status  RunState

	// Cause carries the fatal error for diverged runs, nil otherwise.
	Cause error
}
