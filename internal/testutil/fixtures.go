package testutil

import (
	"math/rand/v2"
	"testing"

	"github.com/MeKo-Tech/goctc/internal/alphabet"
	"github.com/MeKo-Tech/goctc/internal/emission"
	"github.com/stretchr/testify/require"
)

// Row builds one distribution over the default alphabet from symbol weights.
// Symbols not mentioned get 0.
func Row(t *testing.T, weights map[rune]float64) []float64 {
	t.Helper()

	ab := alphabet.Default()
	row := make([]float64, ab.Size())
	for r, w := range weights {
		k, ok := ab.Index(r)
		require.True(t, ok, "symbol %q not in alphabet", r)
		row[k] = w
	}
	return row
}

// Rows builds a matrix of rows via Row.
func Rows(t *testing.T, weights ...map[rune]float64) [][]float64 {
	t.Helper()

	out := make([][]float64, len(weights))
	for i, w := range weights {
		out[i] = Row(t, w)
	}
	return out
}

// Matrix builds an emission matrix via Rows.
func Matrix(t *testing.T, weights ...map[rune]float64) *emission.Matrix {
	t.Helper()

	m, err := emission.New(Rows(t, weights...))
	require.NoError(t, err)
	return m
}

// PeakedPath builds a matrix whose arg-max at step t is path[t]. The peak
// symbol gets peak and the rest is spread uniformly.
func PeakedPath(t *testing.T, path string, peak float64) *emission.Matrix {
	t.Helper()

	ab := alphabet.Default()
	rest := (1 - peak) / float64(ab.Size()-1)
	rows := make([][]float64, 0, len(path))
	for _, r := range path {
		k, ok := ab.Index(r)
		require.True(t, ok, "symbol %q not in alphabet", r)
		row := make([]float64, ab.Size())
		for c := range row {
			row[c] = rest
		}
		row[k] = peak
		rows = append(rows, row)
	}
	m, err := emission.New(rows)
	require.NoError(t, err)
	return m
}

// RandomMatrix returns a strictly positive random T x 27 matrix with a fixed
// seed.
func RandomMatrix(steps int, seed uint64) *emission.Matrix {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return emission.Random(steps, alphabet.Default().Size(), 0.05, rng)
}
