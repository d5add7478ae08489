package nn

import "math"

const (
	DefaultLearningRate = 1e-4
	DefaultRho          = 0.9
)

// RMSprop keeps a moving average of squared gradients per parameter and
// divides each step by its root.
type RMSprop struct {
	LearningRate float64
	Rho          float64
	Epsilon      float64

	acc map[*Param][]float32
}

func NewRMSprop(learningRate float64) *RMSprop {
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}
	return &RMSprop{
		LearningRate: learningRate,
		Rho:          DefaultRho,
		Epsilon:      Epsilon,
		acc:          make(map[*Param][]float32),
	}
}

// Step applies one update; grads is aligned with params.
func (o *RMSprop) Step(params []*Param, grads [][]float32) {
	lr := float32(o.LearningRate)
	rho := float32(o.Rho)
	eps := float32(o.Epsilon)
	for i, p := range params {
		a, ok := o.acc[p]
		if !ok {
			a = make([]float32, len(p.Value))
			o.acc[p] = a
		}
		g := grads[i]
		for j := range p.Value {
			a[j] = rho*a[j] + (1-rho)*g[j]*g[j]
			p.Value[j] -= lr * g[j] / (float32(math.Sqrt(float64(a[j]))) + eps)
		}
	}
}
