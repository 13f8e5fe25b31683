package ctc

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ArgmaxPath returns the most probable class at every step. Ties go to the
// lowest class index.
func ArgmaxPath(em *mat.Dense) []int {
	T, _ := em.Dims()
	path := make([]int, T)
	for t := range T {
		path[t] = floats.MaxIdx(em.RawRowView(t))
	}
	return path
}

// Collapse applies the CTC reduction to a raw path: consecutive repeats are
// merged first, then blanks are dropped. A blank between two equal symbols
// therefore keeps both.
func Collapse(path []int, blank int) []int {
	out := make([]int, 0, len(path))
	prev := -1
	for _, k := range path {
		if k != prev && k != blank {
			out = append(out, k)
		}
		prev = k
	}
	return out
}

// BestPath is the greedy decode: Collapse(ArgmaxPath(em)). It approximates the
// most likely labelling without summing over the paths of each candidate.
func BestPath(em *mat.Dense, blank int) []int {
	return Collapse(ArgmaxPath(em), blank)
}
