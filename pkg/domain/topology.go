package domain

import (
	"fmt"
	"sort"
)

// GroupBy selects how pairwise field contributions are aggregated.
type GroupBy string

const (
	ByAtom     GroupBy = "atom"
	ByResidue  GroupBy = "residue"
	ByMolecule GroupBy = "molecule"
)

// Topology describes the static bookkeeping the engine reports once per
// run: atom count, multipole centers, and the residue/molecule each atom
// belongs to. All per-atom slices are indexed by atom number minus one;
// the values they carry are 1-based, matching the engine's convention.
type Topology struct {
	NAtoms int
	NPoles int

	// IPoles gives the pole index for each atom.
	IPoles []int

	// Molecules gives the molecule number for each atom.
	Molecules []int

	// Residues gives the residue number for each atom.
	Residues []int
}

// Validate checks internal consistency.
func (t *Topology) Validate() error {
	if t.NAtoms <= 0 {
		return &ConfigError{Field: "topology.natoms", Reason: "must be positive"}
	}
	if t.NPoles <= 0 {
		return &ConfigError{Field: "topology.npoles", Reason: "must be positive"}
	}
	if len(t.IPoles) != t.NAtoms {
		return &ConfigError{Field: "topology.ipoles", Reason: fmt.Sprintf("have %d entries, want %d", len(t.IPoles), t.NAtoms)}
	}
	for i, p := range t.IPoles {
		if p < 1 || p > t.NPoles {
			return &ConfigError{Field: "topology.ipoles", Reason: fmt.Sprintf("atom %d: pole index %d out of range [1,%d]", i+1, p, t.NPoles)}
		}
	}
	if len(t.Molecules) != 0 && len(t.Molecules) != t.NAtoms {
		return &ConfigError{Field: "topology.molecules", Reason: fmt.Sprintf("have %d entries, want %d", len(t.Molecules), t.NAtoms)}
	}
	if len(t.Residues) != 0 && len(t.Residues) != t.NAtoms {
		return &ConfigError{Field: "topology.residues", Reason: fmt.Sprintf("have %d entries, want %d", len(t.Residues), t.NAtoms)}
	}
	return nil
}

// ProbePoles maps user-supplied probe atom numbers (1-based) to their
// pole indices. The probe is given as an atom number, which need not
// coincide with its pole index; IPoles provides the mapping.
func (t *Topology) ProbePoles(probes []int) ([]int, error) {
	out := make([]int, len(probes))
	for i, atom := range probes {
		if atom < 1 || atom > t.NAtoms {
			return nil, &ConfigError{Field: "probes", Reason: fmt.Sprintf("atom number %d out of range [1,%d]", atom, t.NAtoms)}
		}
		out[i] = t.IPoles[atom-1]
	}
	return out, nil
}

// Fragment is one aggregation unit: an atom, a residue or a molecule,
// with the atoms and pole indices it contains.
type Fragment struct {
	Label int
	Atoms []int
	Poles []int
}

// Fragments partitions the topology according to by. For ByAtom each
// atom is its own fragment. For ByResidue and ByMolecule, atoms sharing
// a residue/molecule number are grouped; labels appear in ascending
// order.
func (t *Topology) Fragments(by GroupBy) ([]Fragment, error) {
	switch by {
	case ByAtom, "":
		out := make([]Fragment, t.NAtoms)
		for i := 0; i < t.NAtoms; i++ {
			out[i] = Fragment{Label: i + 1, Atoms: []int{i + 1}, Poles: []int{t.IPoles[i]}}
		}
		return out, nil
	case ByResidue:
		if len(t.Residues) == 0 {
			return nil, &ConfigError{Field: "group_by", Reason: "engine reported no residue information"}
		}
		return t.groupBy(t.Residues), nil
	case ByMolecule:
		if len(t.Molecules) == 0 {
			return nil, &ConfigError{Field: "group_by", Reason: "engine reported no molecule information"}
		}
		return t.groupBy(t.Molecules), nil
	default:
		return nil, &ConfigError{Field: "group_by", Reason: fmt.Sprintf("unknown grouping %q", by)}
	}
}

func (t *Topology) groupBy(membership []int) []Fragment {
	byLabel := make(map[int]*Fragment)
	var order []int
	for i, label := range membership {
		frag, ok := byLabel[label]
		if !ok {
			frag = &Fragment{Label: label}
			byLabel[label] = frag
			order = append(order, label)
		}
		frag.Atoms = append(frag.Atoms, i+1)
		frag.Poles = append(frag.Poles, t.IPoles[i])
	}
	// Membership numbers come ordered from the engine, but sort anyway
	// so output columns are deterministic.
	sort.Ints(order)
	out := make([]Fragment, len(order))
	for i, label := range order {
		out[i] = *byLabel[label]
	}
	return out
}
