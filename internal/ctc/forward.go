package ctc

import (
	"gonum.org/v1/gonum/mat"
)

// Forward fills alpha[t][s], the probability mass of all paths that have
// emitted ext[0..s] by time t, ending in ext[s]. em is T x K; ext comes from
// Extend.
func Forward(em *mat.Dense, ext []int, blank int) *mat.Dense {
	T, _ := em.Dims()
	S := len(ext)
	alpha := mat.NewDense(T, S, nil)

	y := em.RawRowView(0)
	row := alpha.RawRowView(0)
	row[0] = y[blank]
	if S > 1 {
		row[1] = y[ext[1]]
	}

	for t := 1; t < T; t++ {
		forwardRow(alpha.RawRowView(t), alpha.RawRowView(t-1), em.RawRowView(t), ext, blank)
	}
	return alpha
}

// forwardRow computes one alpha row from the previous one. A skip from s-2 is
// allowed only onto a label that differs from the label two positions back.
func forwardRow(cur, prev, y []float64, ext []int, blank int) {
	for s, k := range ext {
		a := prev[s]
		if s >= 1 {
			a += prev[s-1]
		}
		if k != blank && s >= 2 && ext[s-2] != k {
			a += prev[s-2]
		}
		cur[s] = a * y[k]
	}
}
