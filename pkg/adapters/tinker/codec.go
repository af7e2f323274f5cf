// Package tinker implements the state exchange codec for a
// Tinker-flavoured dynamics engine.
//
// Four file shapes are handled: the per-step state dump (Decode), the
// keyfile carrying embedding directives (Encode), multi-frame xyz/arc
// trajectories (Trajectory), and the pairwise probe field dump
// (DecodeFields). The engine owns these formats; this package only
// understands the fields the driver exchanges.
package tinker

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

// AngstromToBohr converts trajectory coordinates (angstrom) to the
// atomic units the engine exchanges.
const AngstromToBohr = 1.8897261254578281

// Codec reads engine state dumps and writes keyfiles.
type Codec struct{}

// NewCodec creates a codec.
func NewCodec() *Codec { return &Codec{} }

var _ ports.StateCodec = (*Codec)(nil)

// Field counts for one particle row of a state dump. The base layout is
//
//	idx name x y z q ux uy uz fx fy fz
//
// and dumps written with velocities carry three extra columns after the
// position.
const (
	stateFields    = 12
	stateFieldsVel = 15
)

// Decode parses an engine state dump into an immutable snapshot.
func (c *Codec) Decode(path string) (*domain.SimulationState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ParseError{File: path, Line: 0, Field: "file", Err: err}
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
	if !ok || len(header) == 0 {
		return nil, &domain.ParseError{File: path, Line: 1, Field: "natoms", Err: errors.New("missing header line")}
	}
	natoms, err := strconv.Atoi(header[0])
	if err != nil || natoms <= 0 {
		return nil, &domain.ParseError{File: path, Line: 1, Field: "natoms", Err: fmt.Errorf("invalid atom count %q", header[0])}
	}

	state := &domain.SimulationState{Particles: make([]domain.Particle, 0, natoms)}

	fields, ok := next()
	if !ok {
		return nil, &domain.ParseError{File: path, Line: line + 1, Field: "particle", Err: errors.New("truncated dump")}
	}

	// A six-float line after the header is the periodic box, same
	// convention as trajectory files.
	if box, isBox := parseBoxLine(fields); isBox {
		state.Box = box
		fields, ok = next()
		if !ok {
			return nil, &domain.ParseError{File: path, Line: line + 1, Field: "particle", Err: errors.New("truncated dump")}
		}
	}

	for i := 0; i < natoms; i++ {
		if i > 0 {
			fields, ok = next()
			if !ok {
				return nil, &domain.ParseError{File: path, Line: line + 1, Field: "particle", Err: fmt.Errorf("expected %d particle rows, got %d", natoms, i)}
			}
		}
		p, hasVel, perr := parseParticle(path, line, fields)
		if perr != nil {
			return nil, perr
		}
		if i == 0 {
			state.HasVelocities = hasVel
		} else if hasVel != state.HasVelocities {
			return nil, &domain.ParseError{File: path, Line: line, Field: "velocity", Err: errors.New("inconsistent velocity columns")}
		}
		state.Particles = append(state.Particles, p)
	}

	if err := sc.Err(); err != nil {
		return nil, &domain.ParseError{File: path, Line: line, Field: "file", Err: err}
	}
	return state, nil
}

func parseParticle(path string, line int, fields []string) (domain.Particle, bool, error) {
	hasVel := false
	switch len(fields) {
	case stateFields:
	case stateFieldsVel:
		hasVel = true
	default:
		return domain.Particle{}, false, &domain.ParseError{
			File: path, Line: line, Field: "particle",
			Err: fmt.Errorf("have %d columns, want %d or %d", len(fields), stateFields, stateFieldsVel),
		}
	}

	var p domain.Particle
	var err error

	if p.Index, err = strconv.Atoi(fields[0]); err != nil {
		return p, false, &domain.ParseError{File: path, Line: line, Field: "index", Err: err}
	}
	p.Name = fields[1]

	cursor := 2
	read3 := func(dst *[3]float64, name string) error {
		for c := 0; c < 3; c++ {
			v, ferr := strconv.ParseFloat(fields[cursor], 64)
			if ferr != nil {
				return &domain.ParseError{File: path, Line: line, Field: name, Err: ferr}
			}
			dst[c] = v
			cursor++
		}
		return nil
	}

	if err := read3(&p.Position, "position"); err != nil {
		return p, false, err
	}
	if hasVel {
		if err := read3(&p.Velocity, "velocity"); err != nil {
			return p, false, err
		}
	}
	if p.Charge, err = strconv.ParseFloat(fields[cursor], 64); err != nil {
		return p, false, &domain.ParseError{File: path, Line: line, Field: "charge", Err: err}
	}
	cursor++
	if err := read3(&p.Dipole, "dipole"); err != nil {
		return p, false, err
	}
	if err := read3(&p.Force, "force"); err != nil {
		return p, false, err
	}
	return p, hasVel, nil
}

func parseBoxLine(fields []string) (*[6]float64, bool) {
	if len(fields) != 6 {
		return nil, false
	}
	var box [6]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, false
		}
		box[i] = v
	}
	return &box, true
}

// Embedding directive keywords in a keyfile. Lines starting with one of
// these are owned by the driver; everything else in the template is
// copied through untouched.
const (
	keywordCharge = "charge"
	keywordDipole = "induced-dipole"
)

// Encode rewrites the keyfile template with fresh embedding directives.
// Non-embedding lines (topology, box parameters, run directives) pass
// through byte for byte. The output is written to a temporary file and
// renamed into place so a concurrent reader never sees a partial write.
func (c *Codec) Encode(params domain.EmbeddingParameters, templatePath, outPath string) error {
	tmpl, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("read keyfile template: %w", err)
	}

	var out strings.Builder
	sc := bufio.NewScanner(strings.NewReader(string(tmpl)))
	for sc.Scan() {
		text := sc.Text()
		fields := strings.Fields(text)
		if len(fields) > 0 {
			switch strings.ToLower(fields[0]) {
			case keywordCharge, keywordDipole:
				continue
			}
		}
		out.WriteString(text)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read keyfile template: %w", err)
	}

	for i, site := range params {
		fmt.Fprintf(&out, "%s %6d %20.12f\n", keywordCharge, i+1, site.Charge)
		fmt.Fprintf(&out, "%s %6d %20.12f %20.12f %20.12f\n",
			keywordDipole, i+1, site.Dipole[0], site.Dipole[1], site.Dipole[2])
	}

	tmp := outPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("write keyfile: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write keyfile: %w", err)
	}
	return nil
}
