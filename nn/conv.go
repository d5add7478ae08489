package nn

import (
	"fmt"
	"math/rand"
)

// Conv2D is a stride 1 convolution without padding. The kernel is stored as
// (kh, kw, in_channels, filters).
type Conv2D struct {
	Filters    int
	KernelSize int
	Activation Activation

	in, out Shape
	kernel  *Param
	bias    *Param
}

func NewConv2D(filters, kernelSize int, act Activation) *Conv2D {
	return &Conv2D{Filters: filters, KernelSize: kernelSize, Activation: act}
}

func (c *Conv2D) Kind() string { return "conv2d" }

func (c *Conv2D) Build(in Shape, rng *rand.Rand) (Shape, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("conv2d expects (h, w, c) input, got %s", in)
	}
	if c.Filters < 1 || c.KernelSize < 1 {
		return nil, fmt.Errorf("conv2d needs positive filters and kernel size, got %d and %d", c.Filters, c.KernelSize)
	}
	oh, ow := in[0]-c.KernelSize+1, in[1]-c.KernelSize+1
	if oh < 1 || ow < 1 {
		return nil, fmt.Errorf("conv2d kernel %d does not fit input %s", c.KernelSize, in)
	}

	k := c.KernelSize
	c.in = in
	c.out = Shape{oh, ow, c.Filters}
	c.kernel = newParam("kernel", Shape{k, k, in[2], c.Filters})
	c.bias = newParam("bias", Shape{c.Filters})
	glorotUniform(c.kernel.Value, k*k*in[2], k*k*c.Filters, rng)
	return c.out, nil
}

func (c *Conv2D) Params() []*Param { return []*Param{c.kernel, c.bias} }

func (c *Conv2D) Forward(x []float32, _ bool, _ *rand.Rand) ([]float32, any) {
	inW, inC := c.in[1], c.in[2]
	oh, ow, f := c.out[0], c.out[1], c.out[2]
	k := c.KernelSize
	kernel, bias := c.kernel.Value, c.bias.Value

	y := make([]float32, oh*ow*f)
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			out := y[(oy*ow+ox)*f : (oy*ow+ox+1)*f]
			copy(out, bias)
			for ky := 0; ky < k; ky++ {
				rowBase := ((oy+ky)*inW + ox) * inC
				for kx := 0; kx < k; kx++ {
					px := x[rowBase+kx*inC : rowBase+(kx+1)*inC]
					kBase := (ky*k + kx) * inC * f
					for ci, xv := range px {
						if xv == 0 {
							continue
						}
						row := kernel[kBase+ci*f : kBase+(ci+1)*f]
						for fi, kv := range row {
							out[fi] += xv * kv
						}
					}
				}
			}
		}
	}
	c.Activation.apply(y)
	return y, activationCache{x: x, y: y}
}

func (c *Conv2D) Backward(dy []float32, cache any, grads [][]float32) []float32 {
	cc := cache.(activationCache)
	x := cc.x
	inW, inC := c.in[1], c.in[2]
	oh, ow, f := c.out[0], c.out[1], c.out[2]
	k := c.KernelSize
	kernel := c.kernel.Value
	gKernel, gBias := grads[0], grads[1]

	dz := make([]float32, len(dy))
	copy(dz, dy)
	c.Activation.derive(dz, cc.y)

	dx := make([]float32, len(x))
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			g := dz[(oy*ow+ox)*f : (oy*ow+ox+1)*f]
			nonZero := false
			for fi, gv := range g {
				if gv != 0 {
					gBias[fi] += gv
					nonZero = true
				}
			}
			if !nonZero {
				continue
			}
			for ky := 0; ky < k; ky++ {
				rowBase := ((oy+ky)*inW + ox) * inC
				for kx := 0; kx < k; kx++ {
					off := rowBase + kx*inC
					kBase := (ky*k + kx) * inC * f
					for ci := 0; ci < inC; ci++ {
						xv := x[off+ci]
						row := kernel[kBase+ci*f : kBase+(ci+1)*f]
						gRow := gKernel[kBase+ci*f : kBase+(ci+1)*f]
						var acc float32
						for fi, gv := range g {
							gRow[fi] += xv * gv
							acc += row[fi] * gv
						}
						dx[off+ci] += acc
					}
				}
			}
		}
	}
	return dx
}

// MaxPool2D takes the maximum over non-overlapping 2x2 windows. Odd trailing
// rows and columns are dropped.
type MaxPool2D struct {
	PoolSize int

	in, out Shape
}

func NewMaxPool2D() *MaxPool2D {
	return &MaxPool2D{PoolSize: 2}
}

func (m *MaxPool2D) Kind() string { return "max_pooling2d" }

func (m *MaxPool2D) Build(in Shape, _ *rand.Rand) (Shape, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("max_pooling2d expects (h, w, c) input, got %s", in)
	}
	if m.PoolSize < 1 {
		m.PoolSize = 2
	}
	oh, ow := in[0]/m.PoolSize, in[1]/m.PoolSize
	if oh < 1 || ow < 1 {
		return nil, fmt.Errorf("max_pooling2d window %d does not fit input %s", m.PoolSize, in)
	}
	m.in = in
	m.out = Shape{oh, ow, in[2]}
	return m.out, nil
}

func (m *MaxPool2D) Params() []*Param { return nil }

func (m *MaxPool2D) Forward(x []float32, _ bool, _ *rand.Rand) ([]float32, any) {
	inW, ch := m.in[1], m.in[2]
	oh, ow := m.out[0], m.out[1]
	p := m.PoolSize

	y := make([]float32, oh*ow*ch)
	argmax := make([]int32, len(y))
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			for ci := 0; ci < ch; ci++ {
				best := int32(((oy*p)*inW+ox*p)*ch + ci)
				for dy := 0; dy < p; dy++ {
					for dx := 0; dx < p; dx++ {
						idx := int32(((oy*p+dy)*inW+ox*p+dx)*ch + ci)
						if x[idx] > x[best] {
							best = idx
						}
					}
				}
				o := (oy*ow+ox)*ch + ci
				y[o] = x[best]
				argmax[o] = best
			}
		}
	}
	return y, argmax
}

func (m *MaxPool2D) Backward(dy []float32, cache any, _ [][]float32) []float32 {
	argmax := cache.([]int32)
	dx := make([]float32, m.in.Size())
	for i, g := range dy {
		dx[argmax[i]] += g
	}
	return dx
}
