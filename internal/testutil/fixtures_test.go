package testutil

import (
	"testing"

	"github.com/MeKo-Tech/goctc/internal/alphabet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestRow(t *testing.T) {
	row := Row(t, map[rune]float64{'a': 0.4, '0': 0.6})
	assert.Len(t, row, 27)
	assert.Equal(t, 0.4, row[0])
	assert.Equal(t, 0.6, row[26])
	assert.InDelta(t, 1.0, floats.Sum(row), 1e-12)
}

func TestPeakedPath(t *testing.T) {
	m := PeakedPath(t, "ab0", 0.9)
	require.NoError(t, m.Validate(27, 1e-9))
	assert.Equal(t, 0, floats.MaxIdx(m.Row(0)))
	assert.Equal(t, 1, floats.MaxIdx(m.Row(1)))
	assert.Equal(t, alphabet.Default().Blank(), floats.MaxIdx(m.Row(2)))
}

func TestRandomMatrix_Deterministic(t *testing.T) {
	a := RandomMatrix(5, 7)
	b := RandomMatrix(5, 7)
	assert.Equal(t, a.Rows(), b.Rows())
	require.NoError(t, a.Validate(27, 1e-9))
}
