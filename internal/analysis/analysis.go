// Package analysis aggregates pairwise electric field contributions
// from probe sites over topology fragments.
package analysis

import (
	"fmt"

	"github.com/voltlab/electric/pkg/domain"
)

// Analyzer reduces per-pole field matrices to per-fragment totals for a
// fixed set of probe atoms. It is built once per trajectory and applied
// to every frame.
type Analyzer struct {
	topo      *domain.Topology
	probes    []int
	poles     []int
	fragments []domain.Fragment
}

// New validates the probe selection against the topology and prepares
// the fragment partition.
func New(topo *domain.Topology, probes []int, by domain.GroupBy) (*Analyzer, error) {
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	if len(probes) == 0 {
		return nil, &domain.ConfigError{Field: "probes", Reason: "at least one probe atom is required"}
	}
	poles, err := topo.ProbePoles(probes)
	if err != nil {
		return nil, err
	}
	fragments, err := topo.Fragments(by)
	if err != nil {
		return nil, err
	}
	return &Analyzer{topo: topo, probes: probes, poles: poles, fragments: fragments}, nil
}

// Probes returns the probe atom numbers, in input order.
func (a *Analyzer) Probes() []int { return a.probes }

// Fragments returns the aggregation units, in label order.
func (a *Analyzer) Fragments() []domain.Fragment { return a.fragments }

// CheckFrame verifies a trajectory frame is compatible with the
// topology the analyzer was built from.
func (a *Analyzer) CheckFrame(natoms int) error {
	if natoms != a.topo.NAtoms {
		return fmt.Errorf("frame has %d atoms, topology has %d", natoms, a.topo.NAtoms)
	}
	return nil
}

// Reduce sums the per-pole field vectors at each probe over every
// fragment's poles. fields is indexed [probe][pole]; the result is
// indexed [probe][fragment].
func (a *Analyzer) Reduce(fields [][][3]float64) ([][][3]float64, error) {
	if len(fields) != len(a.probes) {
		return nil, fmt.Errorf("field matrix has %d probe rows, want %d", len(fields), len(a.probes))
	}

	out := make([][][3]float64, len(a.probes))
	for p, row := range fields {
		if len(row) != a.topo.NPoles {
			return nil, fmt.Errorf("probe %d: field row has %d poles, want %d", a.probes[p], len(row), a.topo.NPoles)
		}
		sums := make([][3]float64, len(a.fragments))
		for f, frag := range a.fragments {
			for _, pole := range frag.Poles {
				v := row[pole-1]
				sums[f][0] += v[0]
				sums[f][1] += v[1]
				sums[f][2] += v[2]
			}
		}
		out[p] = sums
	}
	return out, nil
}
