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

// DecodeFields parses the engine's pairwise probe field dump: the
// direct (permanent multipole) and induced (dipole) field at each probe
// site broken down per pole.
//
// Layout:
//
//	nprobes npoles
//	iprobe ipole dx dy dz ux uy uz     (nprobes*npoles rows)
//
// Both returned matrices are indexed [probe][pole], 0-based, in the
// row order of the dump.
func DecodeFields(path string) (direct, induced [][][3]float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &domain.ParseError{File: path, Line: 0, Field: "file", Err: err}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
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
		return nil, nil, &domain.ParseError{File: path, Line: 1, Field: "header", Err: errors.New("want \"nprobes npoles\"")}
	}
	nprobes, err := strconv.Atoi(header[0])
	if err != nil || nprobes <= 0 {
		return nil, nil, &domain.ParseError{File: path, Line: 1, Field: "nprobes", Err: fmt.Errorf("invalid count %q", header[0])}
	}
	npoles, err := strconv.Atoi(header[1])
	if err != nil || npoles <= 0 {
		return nil, nil, &domain.ParseError{File: path, Line: 1, Field: "npoles", Err: fmt.Errorf("invalid count %q", header[1])}
	}

	direct = newFieldMatrix(nprobes, npoles)
	induced = newFieldMatrix(nprobes, npoles)

	for p := 0; p < nprobes; p++ {
		for q := 0; q < npoles; q++ {
			fields, ok := next()
			if !ok {
				return nil, nil, &domain.ParseError{File: path, Line: line + 1, Field: "row",
					Err: fmt.Errorf("truncated dump: want %d rows", nprobes*npoles)}
			}
			if len(fields) != 8 {
				return nil, nil, &domain.ParseError{File: path, Line: line, Field: "row",
					Err: fmt.Errorf("have %d columns, want 8", len(fields))}
			}
			iprobe, aerr := strconv.Atoi(fields[0])
			if aerr != nil || iprobe != p+1 {
				return nil, nil, &domain.ParseError{File: path, Line: line, Field: "iprobe",
					Err: fmt.Errorf("have %q, want %d", fields[0], p+1)}
			}
			ipole, aerr := strconv.Atoi(fields[1])
			if aerr != nil || ipole != q+1 {
				return nil, nil, &domain.ParseError{File: path, Line: line, Field: "ipole",
					Err: fmt.Errorf("have %q, want %d", fields[1], q+1)}
			}
			for c := 0; c < 3; c++ {
				v, ferr := strconv.ParseFloat(fields[2+c], 64)
				if ferr != nil {
					return nil, nil, &domain.ParseError{File: path, Line: line, Field: "dfield", Err: ferr}
				}
				direct[p][q][c] = v
			}
			for c := 0; c < 3; c++ {
				v, ferr := strconv.ParseFloat(fields[5+c], 64)
				if ferr != nil {
					return nil, nil, &domain.ParseError{File: path, Line: line, Field: "ufield", Err: ferr}
				}
				induced[p][q][c] = v
			}
		}
	}

	if err := sc.Err(); err != nil {
		return nil, nil, &domain.ParseError{File: path, Line: line, Field: "file", Err: err}
	}
	return direct, induced, nil
}

func newFieldMatrix(nprobes, npoles int) [][][3]float64 {
	m := make([][][3]float64, nprobes)
	for i := range m {
		m[i] = make([][3]float64, npoles)
	}
	return m
}
