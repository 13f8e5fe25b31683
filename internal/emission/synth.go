package emission

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// AlignedPath returns a raw path of the given length that collapses to label.
// Blanks are inserted between equal neighbours and the remaining frames are
// spread evenly by repeating path elements.
func AlignedPath(label []int, blank, steps int) ([]int, error) {
	minimal := make([]int, 0, 2*len(label))
	for i, k := range label {
		minimal = append(minimal, k)
		if i+1 < len(label) && label[i+1] == k {
			minimal = append(minimal, blank)
		}
	}
	if len(minimal) == 0 {
		minimal = append(minimal, blank)
	}
	if steps < len(minimal) {
		return nil, fmt.Errorf("label needs at least %d steps, got %d", len(minimal), steps)
	}
	path := make([]int, 0, steps)
	for i, k := range minimal {
		n := steps / len(minimal)
		if i < steps%len(minimal) {
			n++
		}
		for range n {
			path = append(path, k)
		}
	}
	return path, nil
}

// Synthesize builds a matrix whose arg-max path collapses to label. Each row
// puts peak on the aligned symbol and spreads the rest uniformly.
func Synthesize(label []int, blank, classes, steps int, peak float64) (*Matrix, error) {
	if classes < 2 {
		return nil, errors.New("need at least two classes")
	}
	if peak <= 1/float64(classes) || peak > 1 {
		return nil, fmt.Errorf("peak must be in (1/%d, 1], got %g", classes, peak)
	}
	path, err := AlignedPath(label, blank, steps)
	if err != nil {
		return nil, err
	}
	rest := (1 - peak) / float64(classes-1)
	d := mat.NewDense(steps, classes, nil)
	for t, k := range path {
		row := d.RawRowView(t)
		for c := range row {
			row[c] = rest
		}
		row[k] = peak
	}
	return FromDense(d), nil
}

// Random draws each row uniformly and normalizes it. Every entry is at least
// floor before normalization so the result stays strictly positive.
func Random(steps, classes int, floor float64, rng *rand.Rand) *Matrix {
	d := mat.NewDense(steps, classes, nil)
	for t := range steps {
		row := d.RawRowView(t)
		for c := range row {
			row[c] = floor + rng.Float64()
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return FromDense(d)
}
