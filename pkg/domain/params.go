package domain

import "math"

// SiteParams holds the embedding descriptors for one particle: a partial
// charge and an induced dipole vector.
type SiteParams struct {
	Charge float64
	Dipole [3]float64
}

// EmbeddingParameters maps particle identity (slice index) to its
// embedding descriptors. It is owned by the update rule between
// iterations and persisted to disk by the codec for the engine to
// consume.
type EmbeddingParameters []SiteParams

// Clone returns a deep copy.
func (p EmbeddingParameters) Clone() EmbeddingParameters {
	out := make(EmbeddingParameters, len(p))
	copy(out, p)
	return out
}

// Len returns the number of sites.
func (p EmbeddingParameters) Len() int { return len(p) }

// MaxDelta returns the maximum absolute component change between p and
// other, along with the particle index and component where it occurs.
// Component 0 is the charge; components 1..3 are the dipole axes.
//
// Both parameter sets must have the same length; the caller (the
// runtime) guarantees this via the constant-record-count invariant.
func (p EmbeddingParameters) MaxDelta(other EmbeddingParameters) (delta float64, particle, component int) {
	for i := range p {
		if d := math.Abs(other[i].Charge - p[i].Charge); d > delta {
			delta, particle, component = d, i, 0
		}
		for c := 0; c < 3; c++ {
			if d := math.Abs(other[i].Dipole[c] - p[i].Dipole[c]); d > delta {
				delta, particle, component = d, i, c+1
			}
		}
	}
	return delta, particle, component
}

// Finite reports whether every component is a finite float. A false
// return carries the offending particle index and component using the
// same numbering as MaxDelta.
func (p EmbeddingParameters) Finite() (ok bool, particle, component int) {
	for i := range p {
		if !finite(p[i].Charge) {
			return false, i, 0
		}
		for c := 0; c < 3; c++ {
			if !finite(p[i].Dipole[c]) {
				return false, i, c + 1
			}
		}
	}
	return true, 0, 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ParamsFromState extracts the embedding parameters currently visible
// in a snapshot. Used to seed a run from an engine-echoed state.
func ParamsFromState(s *SimulationState) EmbeddingParameters {
	out := make(EmbeddingParameters, s.Len())
	for i, pt := range s.Particles {
		out[i] = SiteParams{Charge: pt.Charge, Dipole: pt.Dipole}
	}
	return out
}
