package nn

import (
	"math"
	"math/rand"
)

// Layer is one stage of a Sequential network. Forward and Backward work on a
// single sample and must not mutate layer state, so one layer can serve
// several goroutines at once; anything Backward needs is returned by Forward
// as an opaque cache.
type Layer interface {
	// Kind names the layer type, e.g. "conv2d".
	Kind() string
	// Build validates the input shape, allocates and initialises parameters
	// and returns the output shape.
	Build(in Shape, rng *rand.Rand) (Shape, error)
	// Params returns the trainable parameters (nil for parameter-free layers).
	Params() []*Param
	Forward(x []float32, training bool, rng *rand.Rand) (y []float32, cache any)
	// Backward adds parameter gradients into grads (aligned with Params) and
	// returns the gradient with respect to the layer input.
	Backward(dy []float32, cache any, grads [][]float32) []float32
}

// glorotUniform fills v from U(-l, l) with l = sqrt(6 / (fanIn + fanOut)).
func glorotUniform(v []float32, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range v {
		v[i] = float32((rng.Float64()*2 - 1) * limit)
	}
}

type activationCache struct {
	x []float32
	y []float32
}
