// Package rule provides embedding parameter update rules.
package rule

import (
	"fmt"

	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

// SCF is a damped successive-substitution rule for induced dipoles:
//
//	μ' = (1−ω)·μ + ω·α·F
//
// where F is the engine-reported field response at each site, α the
// site polarizability and ω the mixing factor. Charges are treated as
// fixed and passed through unchanged. With ω in (0,1] the iteration is
// a contraction whenever the underlying response is, so the loop
// converges geometrically.
//
// The rule is deterministic and does all arithmetic in double
// precision. A non-finite update aborts with a divergence error rather
// than clamping.
type SCF struct {
	// Polarizability is the isotropic site polarizability α.
	Polarizability float64

	// Mixing is the damping factor ω. 1 means plain substitution.
	Mixing float64
}

var _ ports.UpdateRule = (*SCF)(nil)

// Update computes the next parameter set and the residual (maximum
// absolute component change).
func (r *SCF) Update(params domain.EmbeddingParameters, state *domain.SimulationState) (domain.EmbeddingParameters, float64, error) {
	if len(params) != state.Len() {
		return nil, 0, fmt.Errorf("parameter set has %d sites, state has %d particles", len(params), state.Len())
	}
	if r.Mixing <= 0 || r.Mixing > 1 {
		return nil, 0, &domain.ConfigError{Field: "mixing", Reason: "must be in (0, 1]"}
	}

	next := params.Clone()
	for i := range next {
		target := state.Particles[i].Force
		for c := 0; c < 3; c++ {
			next[i].Dipole[c] = (1-r.Mixing)*params[i].Dipole[c] + r.Mixing*r.Polarizability*target[c]
		}
	}

	if ok, particle, component := next.Finite(); !ok {
		return nil, 0, &domain.DivergenceError{Particle: particle, Component: component}
	}

	residual, _, _ := params.MaxDelta(next)
	return next, residual, nil
}
