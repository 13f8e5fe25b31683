// Package ctc implements the connectionist temporal classification
// forward-backward recurrences in the probability domain: the total
// probability of a label sequence under a T x K emission matrix, the gradient
// of its negative log with respect to every emission entry, and greedy
// best-path decoding.
//
// The recurrences run directly on probabilities, so long inputs underflow.
// Callers that need stability on long sequences must bound T.
package ctc

// Extend interleaves blank around and between the labels:
// [blank, l0, blank, l1, ..., blank]. The result has length 2*len(label)+1.
func Extend(label []int, blank int) []int {
	ext := make([]int, 2*len(label)+1)
	for s := range ext {
		ext[s] = blank
	}
	for i, k := range label {
		ext[2*i+1] = k
	}
	return ext
}

// MinSteps is the shortest emission length that can align with label: one
// frame per symbol plus one blank between each pair of equal neighbours.
func MinSteps(label []int) int {
	n := len(label)
	for i := 1; i < len(label); i++ {
		if label[i] == label[i-1] {
			n++
		}
	}
	return n
}
