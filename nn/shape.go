// Package nn is a small convolutional network engine: the layers needed by
// the cats-vs-dogs classifiers, binary cross-entropy training with RMSprop,
// and a binary weights file format.
//
// Activations are laid out channels-last (NHWC without the batch axis). A
// layer processes one sample at a time; batches are spread over goroutines
// by Sequential.
package nn

import (
	"fmt"
	"strings"
)

// Shape is the per-sample shape of an activation, e.g. {150, 150, 3}.
type Shape []int

// Size is the number of values a sample of this shape holds.
func (s Shape) Size() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Param is a trainable tensor owned by a layer.
type Param struct {
	Name  string
	Shape Shape
	Value []float32
}

func newParam(name string, shape Shape) *Param {
	return &Param{Name: name, Shape: shape, Value: make([]float32, shape.Size())}
}
