package nn

import (
	"fmt"
	"math"
)

type Activation int

const (
	Linear Activation = iota
	ReLU
	Sigmoid
)

func (a Activation) String() string {
	switch a {
	case Linear:
		return "linear"
	case ReLU:
		return "relu"
	case Sigmoid:
		return "sigmoid"
	default:
		return fmt.Sprintf("activation(%d)", int(a))
	}
}

func (a Activation) apply(v []float32) {
	switch a {
	case ReLU:
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case Sigmoid:
		for i, x := range v {
			v[i] = sigmoid(x)
		}
	}
}

// derive turns dL/dy into dL/dz in place, given the activated outputs y.
func (a Activation) derive(dy, y []float32) {
	switch a {
	case ReLU:
		for i := range dy {
			if y[i] <= 0 {
				dy[i] = 0
			}
		}
	case Sigmoid:
		for i := range dy {
			dy[i] *= y[i] * (1 - y[i])
		}
	}
}

func sigmoid(x float32) float32 {
	if x >= 0 {
		return float32(1 / (1 + math.Exp(-float64(x))))
	}
	e := math.Exp(float64(x))
	return float32(e / (1 + e))
}
