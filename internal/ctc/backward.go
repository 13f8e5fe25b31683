package ctc

import (
	"gonum.org/v1/gonum/mat"
)

// Backward fills beta[t][s], the probability mass of all paths that start in
// ext[s] at time t and emit ext[s..] by the final step. Like alpha, each cell
// includes the emission at (t, ext[s]).
func Backward(em *mat.Dense, ext []int, blank int) *mat.Dense {
	T, _ := em.Dims()
	S := len(ext)
	beta := mat.NewDense(T, S, nil)

	last := em.RawRowView(T - 1)
	row := beta.RawRowView(T - 1)
	row[S-1] = last[blank]
	if S > 1 {
		row[S-2] = last[ext[S-2]]
	}

	for t := T - 2; t >= 0; t-- {
		cur := beta.RawRowView(t)
		next := beta.RawRowView(t + 1)
		y := em.RawRowView(t)
		for s := S - 1; s >= 0; s-- {
			k := ext[s]
			b := next[s]
			if s+1 < S {
				b += next[s+1]
			}
			if k != blank && s+2 < S && ext[s+2] != k {
				b += next[s+2]
			}
			cur[s] = b * y[k]
		}
	}
	return beta
}
