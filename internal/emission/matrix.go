// Package emission holds the per-time-step symbol distributions produced by an
// upstream sequence model, plus their validation and file codecs.
package emission

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultRowSumTolerance is the allowed deviation of a row sum from 1.
const DefaultRowSumTolerance = 1e-4

var (
	// ErrEmpty is returned for matrices without rows or columns.
	ErrEmpty = errors.New("emission matrix is empty")
	// ErrMalformed is returned when the matrix is not a valid T x K table of
	// probability distributions.
	ErrMalformed = errors.New("malformed emission matrix")
)

// ValidationError pinpoints the cell or row that failed validation.
// Col is -1 for row-level problems.
type ValidationError struct {
	Row    int
	Col    int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Col < 0 {
		return fmt.Sprintf("malformed emission matrix: row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("malformed emission matrix: row %d col %d: %s", e.Row, e.Col, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrMalformed }

// Matrix is a T x K table; row t is the distribution over the alphabet at
// time step t. The core never writes to it.
type Matrix struct {
	d *mat.Dense
}

// New copies rows into a Matrix. All rows must have the same length.
func New(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmpty
	}
	k := len(rows[0])
	data := make([]float64, 0, len(rows)*k)
	for t, row := range rows {
		if len(row) != k {
			return nil, &ValidationError{Row: t, Col: -1, Reason: fmt.Sprintf("has %d columns, want %d", len(row), k)}
		}
		data = append(data, row...)
	}
	return &Matrix{d: mat.NewDense(len(rows), k, data)}, nil
}

// FromLogits builds a Matrix by applying a softmax to every row of raw scores.
func FromLogits(rows [][]float64) (*Matrix, error) {
	m, err := New(rows)
	if err != nil {
		return nil, err
	}
	for t := range m.Steps() {
		softmaxInPlace(m.d.RawRowView(t))
	}
	return m, nil
}

// FromDense wraps an existing dense matrix without copying.
func FromDense(d *mat.Dense) *Matrix {
	return &Matrix{d: d}
}

// Dense exposes the backing matrix. Callers must treat it as read-only.
func (m *Matrix) Dense() *mat.Dense { return m.d }

// Steps returns T.
func (m *Matrix) Steps() int {
	r, _ := m.d.Dims()
	return r
}

// Classes returns K.
func (m *Matrix) Classes() int {
	_, c := m.d.Dims()
	return c
}

// Row returns a view of row t.
func (m *Matrix) Row(t int) []float64 { return m.d.RawRowView(t) }

// At returns the probability of class k at step t.
func (m *Matrix) At(t, k int) float64 { return m.d.At(t, k) }

// Rows returns a deep copy as nested slices.
func (m *Matrix) Rows() [][]float64 {
	out := make([][]float64, m.Steps())
	for t := range out {
		out[t] = append([]float64(nil), m.Row(t)...)
	}
	return out
}

// Validate checks that the matrix has the given number of classes, holds only
// finite non-negative entries and that each row sums to 1 within tol.
func (m *Matrix) Validate(classes int, tol float64) error {
	if m == nil || m.d == nil || m.d.IsEmpty() {
		return ErrEmpty
	}
	if got := m.Classes(); got != classes {
		return &ValidationError{Row: 0, Col: -1, Reason: fmt.Sprintf("has %d columns, want %d", got, classes)}
	}
	for t := range m.Steps() {
		row := m.Row(t)
		for k, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &ValidationError{Row: t, Col: k, Reason: "non-finite value"}
			}
			if v < 0 {
				return &ValidationError{Row: t, Col: k, Reason: fmt.Sprintf("negative value %g", v)}
			}
		}
		if sum := floats.Sum(row); math.Abs(sum-1) > tol {
			return &ValidationError{Row: t, Col: -1, Reason: fmt.Sprintf("sums to %g, want 1", sum)}
		}
	}
	return nil
}

// softmaxInPlace applies a max-shifted softmax to v.
func softmaxInPlace(v []float64) {
	m := floats.Max(v)
	var denom float64
	for i, x := range v {
		v[i] = math.Exp(x - m)
		denom += v[i]
	}
	if denom == 0 {
		return
	}
	floats.Scale(1/denom, v)
}
