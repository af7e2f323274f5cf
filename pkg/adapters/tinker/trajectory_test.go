package tinker

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltlab/electric/pkg/domain"
)

const twoFrameArc = `3  frame one
1 O   0.000  0.000  0.000  1  2  3
2 H   0.957  0.000  0.000  2  1
3 H  -0.240  0.927  0.000  2  1
3  frame two
1 O   0.010  0.000  0.000  1  2  3
2 H   0.967  0.000  0.000  2  1
3 H  -0.230  0.927  0.000  2  1
`

const boxedArc = `2
10.0 10.0 10.0 90.0 90.0 90.0
1 Na  1.0 1.0 1.0  1
2 Cl  5.0 5.0 5.0  2
2
10.0 10.0 10.0 90.0 90.0 90.0
1 Na  1.1 1.0 1.0  1
2 Cl  5.0 5.1 5.0  2
`

func TestTrajectory_Next(t *testing.T) {
	dir := t.TempDir()

	t.Run("Streams All Frames", func(t *testing.T) {
		path := writeFile(t, dir, "traj.arc", twoFrameArc)

		traj, err := OpenTrajectory(path)
		require.NoError(t, err)
		defer traj.Close()
		assert.Equal(t, 3, traj.NAtoms())

		first, err := traj.Next()
		require.NoError(t, err)
		assert.Equal(t, []string{"O", "H", "H"}, first.Names)
		assert.InDelta(t, 0.957, first.Coords[1][0], 1e-12)
		assert.Nil(t, first.Box)

		second, err := traj.Next()
		require.NoError(t, err)
		assert.InDelta(t, 0.010, second.Coords[0][0], 1e-12)

		_, err = traj.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("Detects Box Line From Second Line", func(t *testing.T) {
		path := writeFile(t, dir, "boxed.arc", boxedArc)

		traj, err := OpenTrajectory(path)
		require.NoError(t, err)
		defer traj.Close()

		frame, err := traj.Next()
		require.NoError(t, err)
		require.NotNil(t, frame.Box)
		assert.InDelta(t, 10.0, frame.Box[0], 1e-12)

		frame, err = traj.Next()
		require.NoError(t, err)
		require.NotNil(t, frame.Box)
	})

	t.Run("Truncated Frame Is Parse Error Not EOF", func(t *testing.T) {
		path := writeFile(t, dir, "trunc.arc", "3\n1 O 0 0 0 1\n2 H 1 0 0 2\n")

		traj, err := OpenTrajectory(path)
		require.NoError(t, err)
		defer traj.Close()

		_, err = traj.Next()
		var parseErr *domain.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "particle", parseErr.Field)
	})

	t.Run("Changed Atom Count Is Rejected", func(t *testing.T) {
		path := writeFile(t, dir, "mixed.arc", "1\n1 O 0 0 0 1\n2\n1 O 0 0 0 1\n2 H 1 0 0 2\n")

		traj, err := OpenTrajectory(path)
		require.NoError(t, err)
		defer traj.Close()

		_, err = traj.Next()
		require.NoError(t, err)

		_, err = traj.Next()
		var parseErr *domain.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "natoms", parseErr.Field)
	})

	t.Run("Empty File Fails To Open", func(t *testing.T) {
		path := writeFile(t, dir, "empty.arc", "")
		_, err := OpenTrajectory(path)
		assert.Error(t, err)
	})
}

func TestWriteSnapshot(t *testing.T) {
	dir := t.TempDir()

	frame := &Frame{
		Names:  []string{"O", "H"},
		Coords: [][3]float64{{1.0, 0, 0}, {0, 1.0, 0}},
	}
	outPath := filepath.Join(dir, "snap.xyz")
	require.NoError(t, WriteSnapshot(frame, outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	text := string(data)

	// Coordinates are converted to bohr on the way out.
	assert.Contains(t, text, "1.8897261255")
	assert.Contains(t, text, "O")

	_, err = os.Stat(outPath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
