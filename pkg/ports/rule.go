package ports

import "github.com/voltlab/electric/pkg/domain"

// UpdateRule computes the next embedding parameters from the current
// ones and a freshly decoded engine state.
//
// Implementations must be deterministic given identical inputs, do all
// arithmetic in double precision, and return a *domain.DivergenceError
// (never a clamped value) when an update would produce a non-finite
// component. The residual is the maximum absolute component change.
type UpdateRule interface {
	Update(params domain.EmbeddingParameters, state *domain.SimulationState) (next domain.EmbeddingParameters, residual float64, err error)
}
