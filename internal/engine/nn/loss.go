package nn

import (
	"math"

	"github.com/crimson-sun/repairclass/internal/engine/tensor"
)

const probEpsilon = 1e-7

// crossEntropy returns the mean categorical cross-entropy of probs against
// one-hot targets, the number of argmax hits, and the logits gradient
// (probs - targets) / batch.
func crossEntropy(probs, targets *tensor.Matrix) (loss float64, hits int, grad *tensor.Matrix) {
	grad = tensor.New(probs.Rows, probs.Cols)
	n := float32(probs.Rows)
	for i := 0; i < probs.Rows; i++ {
		p, y, g := probs.Row(i), targets.Row(i), grad.Row(i)
		for j := range p {
			if y[j] > 0 {
				pv := math.Min(math.Max(float64(p[j]), probEpsilon), 1-probEpsilon)
				loss -= float64(y[j]) * math.Log(pv)
			}
			g[j] = (p[j] - y[j]) / n
		}
		if probs.ArgMax(i) == targets.ArgMax(i) {
			hits++
		}
	}
	return loss / float64(probs.Rows), hits, grad
}
