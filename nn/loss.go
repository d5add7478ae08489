package nn

import "math"

// Epsilon clips probabilities away from 0 and 1 before taking logarithms.
const Epsilon = 1e-7

// BinaryCrossEntropy returns the loss of predicted probability p for label y
// (0 or 1) and its derivative with respect to p.
func BinaryCrossEntropy(p, y float32) (loss float64, grad float32) {
	pc := math.Min(math.Max(float64(p), Epsilon), 1-Epsilon)
	t := float64(y)
	loss = -(t*math.Log(pc) + (1-t)*math.Log(1-pc))
	grad = float32(-(t / pc) + (1-t)/(1-pc))
	return loss, grad
}

// Correct reports whether p agrees with label y at the 0.5 threshold.
func Correct(p, y float32) bool {
	return (p > 0.5) == (y > 0.5)
}
