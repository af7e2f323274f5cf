package tinker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/voltlab/electric/pkg/domain"
)

// Frame is one trajectory snapshot. Coordinates are in angstrom, as
// stored on disk; callers convert with AngstromToBohr when handing them
// to the engine.
type Frame struct {
	Names  []string
	Coords [][3]float64
	Box    *[6]float64
}

// Trajectory streams frames from a Tinker xyz/arc file. Frames share a
// fixed atom count; the reader rejects files that change it mid-stream.
type Trajectory struct {
	f      *os.File
	sc     *bufio.Scanner
	path   string
	line   int
	natoms int
	hasBox bool
}

// OpenTrajectory opens path and reads enough of the first frame header
// to learn the atom count and whether a box line is present. The layout
// follows the engine's convention: if the second line of the file has
// six numeric fields it is box information, and every frame carries it.
func OpenTrajectory(path string) (*Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ParseError{File: path, Line: 0, Field: "file", Err: err}
	}

	probe := bufio.NewScanner(f)
	probe.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !probe.Scan() {
		f.Close()
		return nil, &domain.ParseError{File: path, Line: 1, Field: "natoms", Err: errors.New("empty trajectory")}
	}
	header := strings.Fields(probe.Text())
	if len(header) == 0 {
		f.Close()
		return nil, &domain.ParseError{File: path, Line: 1, Field: "natoms", Err: errors.New("blank header line")}
	}
	natoms, err := strconv.Atoi(header[0])
	if err != nil || natoms <= 0 {
		f.Close()
		return nil, &domain.ParseError{File: path, Line: 1, Field: "natoms", Err: fmt.Errorf("invalid atom count %q", header[0])}
	}

	hasBox := false
	if probe.Scan() {
		if _, ok := parseBoxLine(strings.Fields(probe.Text())); ok {
			hasBox = true
		}
	}

	// Rewind and scan again from the top so Next sees whole frames.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, &domain.ParseError{File: path, Line: 0, Field: "file", Err: err}
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &Trajectory{f: f, sc: sc, path: path, natoms: natoms, hasBox: hasBox}, nil
}

// NAtoms returns the per-frame atom count.
func (t *Trajectory) NAtoms() int { return t.natoms }

// Close releases the underlying file.
func (t *Trajectory) Close() error { return t.f.Close() }

// Next returns the next frame, or io.EOF after the last one. A frame
// cut short mid-way is a parse error, not EOF.
func (t *Trajectory) Next() (*Frame, error) {
	fields, ok := t.scan()
	if !ok {
		return nil, io.EOF
	}
	if len(fields) == 0 {
		return nil, &domain.ParseError{File: t.path, Line: t.line, Field: "natoms", Err: errors.New("blank header line")}
	}
	natoms, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, &domain.ParseError{File: t.path, Line: t.line, Field: "natoms", Err: err}
	}
	if natoms != t.natoms {
		return nil, &domain.ParseError{File: t.path, Line: t.line, Field: "natoms",
			Err: fmt.Errorf("frame has %d atoms, trajectory started with %d", natoms, t.natoms)}
	}

	frame := &Frame{
		Names:  make([]string, 0, natoms),
		Coords: make([][3]float64, 0, natoms),
	}

	if t.hasBox {
		fields, ok = t.scan()
		if !ok {
			return nil, t.truncated("box")
		}
		box, isBox := parseBoxLine(fields)
		if !isBox {
			return nil, &domain.ParseError{File: t.path, Line: t.line, Field: "box", Err: errors.New("expected six box fields")}
		}
		frame.Box = box
	}

	for i := 0; i < natoms; i++ {
		fields, ok = t.scan()
		if !ok {
			return nil, t.truncated("particle")
		}
		// Atom rows are "idx name x y z type [bonds...]"; only the
		// label and coordinates matter here.
		if len(fields) < 5 {
			return nil, &domain.ParseError{File: t.path, Line: t.line, Field: "particle",
				Err: fmt.Errorf("have %d columns, want at least 5", len(fields))}
		}
		var xyz [3]float64
		for c := 0; c < 3; c++ {
			v, ferr := strconv.ParseFloat(fields[2+c], 64)
			if ferr != nil {
				return nil, &domain.ParseError{File: t.path, Line: t.line, Field: "position", Err: ferr}
			}
			xyz[c] = v
		}
		frame.Names = append(frame.Names, fields[1])
		frame.Coords = append(frame.Coords, xyz)
	}

	return frame, nil
}

func (t *Trajectory) scan() ([]string, bool) {
	if !t.sc.Scan() {
		return nil, false
	}
	t.line++
	return strings.Fields(t.sc.Text()), true
}

func (t *Trajectory) truncated(field string) error {
	return &domain.ParseError{File: t.path, Line: t.line + 1, Field: field, Err: errors.New("truncated frame")}
}

// WriteSnapshot writes a single frame in xyz layout for the engine to
// consume, converting coordinates to bohr. Written atomically like
// Encode.
func WriteSnapshot(frame *Frame, outPath string) error {
	var out strings.Builder
	fmt.Fprintf(&out, "%6d\n", len(frame.Coords))
	if frame.Box != nil {
		fmt.Fprintf(&out, "%14.6f %14.6f %14.6f %10.4f %10.4f %10.4f\n",
			frame.Box[0], frame.Box[1], frame.Box[2], frame.Box[3], frame.Box[4], frame.Box[5])
	}
	for i, xyz := range frame.Coords {
		fmt.Fprintf(&out, "%6d %-4s %18.10f %18.10f %18.10f\n",
			i+1, frame.Names[i],
			xyz[0]*AngstromToBohr, xyz[1]*AngstromToBohr, xyz[2]*AngstromToBohr)
	}

	tmp := outPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
