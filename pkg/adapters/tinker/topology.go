package tinker

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/voltlab/electric/pkg/domain"
)

// DecodeTopology parses the engine's one-shot bookkeeping dump: atom
// and pole counts plus the pole/molecule/residue membership of each
// atom.
//
// Layout:
//
//	natoms npoles
//	atom ipole molecule residue        (natoms rows)
func DecodeTopology(path string) (*domain.Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ParseError{File: path, Line: 0, Field: "file", Err: err}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	next := func() ([]string, bool) {
		if !sc.Scan() {
			return nil, false
		}
		line++
		return strings.Fields(sc.Text()), true
	}

	header, ok := next()
	if !ok || len(header) != 2 {
		return nil, &domain.ParseError{File: path, Line: 1, Field: "header", Err: errors.New("want \"natoms npoles\"")}
	}

	topo := &domain.Topology{}
	if topo.NAtoms, err = strconv.Atoi(header[0]); err != nil {
		return nil, &domain.ParseError{File: path, Line: 1, Field: "natoms", Err: err}
	}
	if topo.NPoles, err = strconv.Atoi(header[1]); err != nil {
		return nil, &domain.ParseError{File: path, Line: 1, Field: "npoles", Err: err}
	}
	if topo.NAtoms <= 0 || topo.NPoles <= 0 {
		return nil, &domain.ParseError{File: path, Line: 1, Field: "header", Err: errors.New("counts must be positive")}
	}

	topo.IPoles = make([]int, 0, topo.NAtoms)
	topo.Molecules = make([]int, 0, topo.NAtoms)
	topo.Residues = make([]int, 0, topo.NAtoms)

	for i := 0; i < topo.NAtoms; i++ {
		fields, ok := next()
		if !ok {
			return nil, &domain.ParseError{File: path, Line: line + 1, Field: "atom",
				Err: fmt.Errorf("truncated dump: want %d rows", topo.NAtoms)}
		}
		if len(fields) != 4 {
			return nil, &domain.ParseError{File: path, Line: line, Field: "atom",
				Err: fmt.Errorf("have %d columns, want 4", len(fields))}
		}
		atom, aerr := strconv.Atoi(fields[0])
		if aerr != nil || atom != i+1 {
			return nil, &domain.ParseError{File: path, Line: line, Field: "atom",
				Err: fmt.Errorf("have %q, want %d", fields[0], i+1)}
		}
		vals := [3]int{}
		names := [3]string{"ipole", "molecule", "residue"}
		for j := 0; j < 3; j++ {
			v, verr := strconv.Atoi(fields[1+j])
			if verr != nil {
				return nil, &domain.ParseError{File: path, Line: line, Field: names[j], Err: verr}
			}
			vals[j] = v
		}
		topo.IPoles = append(topo.IPoles, vals[0])
		topo.Molecules = append(topo.Molecules, vals[1])
		topo.Residues = append(topo.Residues, vals[2])
	}

	if err := topo.Validate(); err != nil {
		return nil, &domain.ParseError{File: path, Line: line, Field: "topology", Err: err}
	}
	return topo, nil
}
