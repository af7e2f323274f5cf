package analysis

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltlab/electric/pkg/domain"
)

// waterDimer is two three-atom molecules with identity pole mapping.
func waterDimer() *domain.Topology {
	return &domain.Topology{
		NAtoms:    6,
		NPoles:    6,
		IPoles:    []int{1, 2, 3, 4, 5, 6},
		Molecules: []int{1, 1, 1, 2, 2, 2},
		Residues:  []int{1, 1, 1, 2, 2, 2},
	}
}

// dimerFields builds a [probe][pole] matrix where the x component is
// the pole index times scale, so fragment sums are easy to verify.
func dimerFields(nprobes int, scale float64) [][][3]float64 {
	out := make([][][3]float64, nprobes)
	for p := range out {
		out[p] = make([][3]float64, 6)
		for q := range out[p] {
			out[p][q] = [3]float64{scale * float64(q+1), scale * 0.5, scale * -0.25}
		}
	}
	return out
}

func TestAnalyzer_Reduce(t *testing.T) {
	a, err := New(waterDimer(), []int{1, 4}, domain.ByMolecule)
	require.NoError(t, err)
	require.Len(t, a.Fragments(), 2)

	reduced, err := a.Reduce(dimerFields(2, 1))
	require.NoError(t, err)
	require.Len(t, reduced, 2)

	// Molecule 1 holds poles 1..3, molecule 2 holds poles 4..6.
	assert.Equal(t, [3]float64{6, 1.5, -0.75}, reduced[0][0])
	assert.Equal(t, [3]float64{15, 1.5, -0.75}, reduced[0][1])
	assert.Equal(t, reduced[0], reduced[1])
}

func TestAnalyzer_ReduceByAtom(t *testing.T) {
	a, err := New(waterDimer(), []int{1}, domain.ByAtom)
	require.NoError(t, err)
	require.Len(t, a.Fragments(), 6)

	reduced, err := a.Reduce(dimerFields(1, 1))
	require.NoError(t, err)
	for q := 0; q < 6; q++ {
		assert.Equal(t, [3]float64{float64(q + 1), 0.5, -0.25}, reduced[0][q])
	}
}

func TestAnalyzer_Validation(t *testing.T) {
	t.Run("No Probes", func(t *testing.T) {
		_, err := New(waterDimer(), nil, domain.ByAtom)
		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "probes", cfgErr.Field)
	})

	t.Run("Probe Out Of Range", func(t *testing.T) {
		_, err := New(waterDimer(), []int{7}, domain.ByAtom)
		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("Wrong Probe Row Count", func(t *testing.T) {
		a, err := New(waterDimer(), []int{1, 4}, domain.ByMolecule)
		require.NoError(t, err)

		_, err = a.Reduce(dimerFields(1, 1))
		assert.Error(t, err)
	})

	t.Run("Wrong Pole Count", func(t *testing.T) {
		a, err := New(waterDimer(), []int{1}, domain.ByMolecule)
		require.NoError(t, err)

		_, err = a.Reduce([][][3]float64{make([][3]float64, 4)})
		assert.Error(t, err)
	})

	t.Run("Frame Atom Count", func(t *testing.T) {
		a, err := New(waterDimer(), []int{1}, domain.ByAtom)
		require.NoError(t, err)
		assert.NoError(t, a.CheckFrame(6))
		assert.Error(t, a.CheckFrame(5))
	})
}

func TestCSVWriter_Golden(t *testing.T) {
	a, err := New(waterDimer(), []int{1, 4}, domain.ByMolecule)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewCSVWriter(&buf, a)

	for frame, scale := range []float64{1, 2} {
		reduced, err := a.Reduce(dimerFields(2, scale))
		require.NoError(t, err)
		require.NoError(t, w.WriteFrame(frame+1, reduced))
	}
	require.NoError(t, w.Flush())

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "dfield", buf.Bytes())
}
