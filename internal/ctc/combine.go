package ctc

import (
	"math"

	"github.com/MeKo-Tech/goctc/internal/mempool"
	"gonum.org/v1/gonum/mat"
)

// Probability reads P(l|x) off a completed alpha table: the mass ending on the
// trailing blank plus the mass ending on the last label.
func Probability(alpha *mat.Dense) float64 {
	T, S := alpha.Dims()
	last := alpha.RawRowView(T - 1)
	if S == 1 {
		return last[0]
	}
	return last[S-1] + last[S-2]
}

// ForwardProbability computes the same value as Probability(Forward(...))
// while keeping only two alpha rows alive.
func ForwardProbability(em *mat.Dense, ext []int, blank int) float64 {
	T, _ := em.Dims()
	S := len(ext)
	prev := mempool.GetFloat64(S)
	cur := mempool.GetFloat64(S)
	defer func() {
		mempool.PutFloat64(prev)
		mempool.PutFloat64(cur)
	}()

	y := em.RawRowView(0)
	prev[0] = y[blank]
	if S > 1 {
		prev[1] = y[ext[1]]
	}
	for t := 1; t < T; t++ {
		forwardRow(cur, prev, em.RawRowView(t), ext, blank)
		prev, cur = cur, prev
	}
	if S == 1 {
		return prev[0]
	}
	return prev[S-1] + prev[S-2]
}

// Gradient returns d(-log P)/d y[t][k] for every cell of em:
//
//	-(sum over s with ext[s] == k of alpha[t][s]*beta[t][s]) / y[t][k]^2 / p
//
// Classes that never occur in ext get exactly 0. Zero emissions for classes in
// ext, or p == 0, produce Inf or NaN entries; see CheckFinite.
func Gradient(em *mat.Dense, ext []int, alpha, beta *mat.Dense, p float64) *mat.Dense {
	T, K := em.Dims()
	grad := mat.NewDense(T, K, nil)

	positions := make([][]int, K)
	for s, k := range ext {
		positions[k] = append(positions[k], s)
	}

	for t := range T {
		y := em.RawRowView(t)
		a := alpha.RawRowView(t)
		b := beta.RawRowView(t)
		g := grad.RawRowView(t)
		for k, ss := range positions {
			if len(ss) == 0 {
				continue
			}
			var sum float64
			for _, s := range ss {
				sum += a[s] * b[s]
			}
			sum /= y[k] * y[k]
			g[k] = -sum / p
		}
	}
	return grad
}

// CheckFinite returns a *NumericalError for the first non-finite cell of grad
// in row-major order, or nil.
func CheckFinite(grad *mat.Dense) error {
	T, _ := grad.Dims()
	for t := range T {
		for k, v := range grad.RawRowView(t) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &NumericalError{Step: t, Class: k, Value: v}
			}
		}
	}
	return nil
}
