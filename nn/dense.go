package nn

import (
	"fmt"
	"math/rand"
)

// Flatten reshapes its input to a vector; data order is unchanged.
type Flatten struct {
	in Shape
}

func NewFlatten() *Flatten { return &Flatten{} }

func (l *Flatten) Kind() string { return "flatten" }

func (l *Flatten) Build(in Shape, _ *rand.Rand) (Shape, error) {
	if in.Size() < 1 {
		return nil, fmt.Errorf("flatten got empty input shape %s", in)
	}
	l.in = in
	return Shape{in.Size()}, nil
}

func (l *Flatten) Params() []*Param { return nil }

func (l *Flatten) Forward(x []float32, _ bool, _ *rand.Rand) ([]float32, any) {
	return x, nil
}

func (l *Flatten) Backward(dy []float32, _ any, _ [][]float32) []float32 {
	return dy
}

// Dense is a fully connected layer with kernel (inputs, units).
type Dense struct {
	Units      int
	Activation Activation

	inputs int
	kernel *Param
	bias   *Param
}

func NewDense(units int, act Activation) *Dense {
	return &Dense{Units: units, Activation: act}
}

func (d *Dense) Kind() string { return "dense" }

func (d *Dense) Build(in Shape, rng *rand.Rand) (Shape, error) {
	if len(in) != 1 {
		return nil, fmt.Errorf("dense expects a flat input, got %s", in)
	}
	if d.Units < 1 {
		return nil, fmt.Errorf("dense needs at least one unit, got %d", d.Units)
	}
	d.inputs = in[0]
	d.kernel = newParam("kernel", Shape{d.inputs, d.Units})
	d.bias = newParam("bias", Shape{d.Units})
	glorotUniform(d.kernel.Value, d.inputs, d.Units, rng)
	return Shape{d.Units}, nil
}

func (d *Dense) Params() []*Param { return []*Param{d.kernel, d.bias} }

func (d *Dense) Forward(x []float32, _ bool, _ *rand.Rand) ([]float32, any) {
	u := d.Units
	kernel := d.kernel.Value
	y := make([]float32, u)
	copy(y, d.bias.Value)
	for i, xv := range x {
		if xv == 0 {
			continue
		}
		row := kernel[i*u : (i+1)*u]
		for j, kv := range row {
			y[j] += xv * kv
		}
	}
	d.Activation.apply(y)
	return y, activationCache{x: x, y: y}
}

func (d *Dense) Backward(dy []float32, cache any, grads [][]float32) []float32 {
	cc := cache.(activationCache)
	u := d.Units
	kernel := d.kernel.Value
	gKernel, gBias := grads[0], grads[1]

	dz := make([]float32, u)
	copy(dz, dy)
	d.Activation.derive(dz, cc.y)

	for j, g := range dz {
		gBias[j] += g
	}
	dx := make([]float32, d.inputs)
	for i, xv := range cc.x {
		row := kernel[i*u : (i+1)*u]
		gRow := gKernel[i*u : (i+1)*u]
		var acc float32
		for j, g := range dz {
			gRow[j] += xv * g
			acc += row[j] * g
		}
		dx[i] = acc
	}
	return dx
}

// Dropout zeroes a fraction Rate of its inputs while training and scales the
// survivors by 1/(1-Rate). At inference it is the identity.
type Dropout struct {
	Rate float64
}

func NewDropout(rate float64) *Dropout { return &Dropout{Rate: rate} }

func (l *Dropout) Kind() string { return "dropout" }

func (l *Dropout) Build(in Shape, _ *rand.Rand) (Shape, error) {
	if l.Rate < 0 || l.Rate >= 1 {
		return nil, fmt.Errorf("dropout rate must be in [0, 1), got %v", l.Rate)
	}
	return in, nil
}

func (l *Dropout) Params() []*Param { return nil }

func (l *Dropout) Forward(x []float32, training bool, rng *rand.Rand) ([]float32, any) {
	if !training || l.Rate == 0 {
		return x, nil
	}
	scale := float32(1 / (1 - l.Rate))
	mask := make([]float32, len(x))
	y := make([]float32, len(x))
	for i, v := range x {
		if rng.Float64() >= l.Rate {
			mask[i] = scale
			y[i] = v * scale
		}
	}
	return y, mask
}

func (l *Dropout) Backward(dy []float32, cache any, _ [][]float32) []float32 {
	mask, ok := cache.([]float32)
	if !ok {
		return dy
	}
	dx := make([]float32, len(dy))
	for i, g := range dy {
		dx[i] = g * mask[i]
	}
	return dx
}
