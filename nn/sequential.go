package nn

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Sequential is a linear stack of layers with a single sigmoid-style output
// when used for binary classification.
type Sequential struct {
	Input  Shape
	Layers []Layer
	// Workers bounds the goroutines used per batch; 0 means GOMAXPROCS.
	Workers int

	shapes     []Shape
	params     []*Param
	paramStart []int // index into params of each layer's first parameter

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSequential builds every layer against the shape produced by the one
// before it. Parameters are initialised from seed.
func NewSequential(input Shape, seed int64, layers ...Layer) (*Sequential, error) {
	if len(layers) == 0 {
		return nil, errors.New("sequential model needs at least one layer")
	}
	s := &Sequential{
		Input:      input,
		Layers:     layers,
		shapes:     make([]Shape, len(layers)),
		paramStart: make([]int, len(layers)),
		rng:        rand.New(rand.NewSource(seed)),
	}

	shape := input
	for i, l := range layers {
		out, err := l.Build(shape, s.rng)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, l.Kind(), err)
		}
		s.shapes[i] = out
		s.paramStart[i] = len(s.params)
		s.params = append(s.params, l.Params()...)
		shape = out
	}
	return s, nil
}

func (s *Sequential) OutputShape() Shape {
	return s.shapes[len(s.shapes)-1]
}

func (s *Sequential) Params() []*Param {
	return s.params
}

// ParamCount is the total number of trainable values.
func (s *Sequential) ParamCount() int {
	n := 0
	for _, p := range s.params {
		n += len(p.Value)
	}
	return n
}

// Summary lists each layer with its output shape and parameter count.
func (s *Sequential) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "input %s\n", s.Input)
	for i, l := range s.Layers {
		n := 0
		for _, p := range l.Params() {
			n += len(p.Value)
		}
		fmt.Fprintf(&b, "%-14s %-16s params=%d\n", l.Kind(), s.shapes[i], n)
	}
	fmt.Fprintf(&b, "total params=%d", s.ParamCount())
	return b.String()
}

// Predict runs inference on one sample.
func (s *Sequential) Predict(x []float32) ([]float32, error) {
	if len(x) != s.Input.Size() {
		return nil, fmt.Errorf("input has %d values, model expects %s (%d)", len(x), s.Input, s.Input.Size())
	}
	y, _ := s.forward(x, false, nil)
	return y, nil
}

func (s *Sequential) forward(x []float32, training bool, rng *rand.Rand) ([]float32, []any) {
	var caches []any
	if training {
		caches = make([]any, len(s.Layers))
	}
	for i, l := range s.Layers {
		var c any
		x, c = l.Forward(x, training, rng)
		if training {
			caches[i] = c
		}
	}
	return x, caches
}

func (s *Sequential) backward(dy []float32, caches []any, grads [][]float32) {
	for i := len(s.Layers) - 1; i >= 0; i-- {
		l := s.Layers[i]
		start := s.paramStart[i]
		dy = l.Backward(dy, caches[i], grads[start:start+len(l.Params())])
	}
}

func (s *Sequential) newGrads() [][]float32 {
	grads := make([][]float32, len(s.params))
	for i, p := range s.params {
		grads[i] = make([]float32, len(p.Value))
	}
	return grads
}

// BatchResult holds the mean loss and accuracy over one batch.
type BatchResult struct {
	Loss     float64
	Accuracy float64
}

type partial struct {
	loss    float64
	correct int
	grads   [][]float32
}

func (s *Sequential) checkBatch(xs [][]float32, ys []float32) error {
	if len(xs) == 0 {
		return errors.New("empty batch")
	}
	if len(xs) != len(ys) {
		return fmt.Errorf("batch has %d samples but %d labels", len(xs), len(ys))
	}
	if out := s.OutputShape(); out.Size() != 1 {
		return fmt.Errorf("binary training needs a single output unit, model has %s", out)
	}
	for i, x := range xs {
		if len(x) != s.Input.Size() {
			return fmt.Errorf("sample %d has %d values, model expects %d", i, len(x), s.Input.Size())
		}
	}
	return nil
}

func (s *Sequential) workerCount(batch int) int {
	n := s.Workers
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n > batch {
		n = batch
	}
	return n
}

// runBatch evaluates the batch across worker goroutines. With training set
// each worker also back-propagates into its own gradient buffers.
func (s *Sequential) runBatch(ctx context.Context, xs [][]float32, ys []float32, training bool) ([]partial, error) {
	workers := s.workerCount(len(xs))
	parts := make([]partial, workers)
	seeds := make([]int64, workers)
	s.rngMu.Lock()
	for i := range seeds {
		seeds[i] = s.rng.Int63()
	}
	s.rngMu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seeds[w]))
			part := &parts[w]
			if training {
				part.grads = s.newGrads()
			}
			for i := w; i < len(xs); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				y, caches := s.forward(xs[i], training, rng)
				loss, grad := BinaryCrossEntropy(y[0], ys[i])
				part.loss += loss
				if Correct(y[0], ys[i]) {
					part.correct++
				}
				if training {
					s.backward([]float32{grad}, caches, part.grads)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

func summarize(parts []partial, n int) BatchResult {
	var res BatchResult
	correct := 0
	for _, p := range parts {
		res.Loss += p.loss
		correct += p.correct
	}
	res.Loss /= float64(n)
	res.Accuracy = float64(correct) / float64(n)
	return res
}

// TrainBatch runs forward and backward passes for every sample, averages the
// gradients and applies one optimizer step. Reported metrics are those of
// the forward pass, before the update.
func (s *Sequential) TrainBatch(ctx context.Context, xs [][]float32, ys []float32, opt *RMSprop) (BatchResult, error) {
	if err := s.checkBatch(xs, ys); err != nil {
		return BatchResult{}, err
	}
	parts, err := s.runBatch(ctx, xs, ys, true)
	if err != nil {
		return BatchResult{}, err
	}

	total := parts[0].grads
	for _, p := range parts[1:] {
		for i, g := range p.grads {
			dst := total[i]
			for j, v := range g {
				dst[j] += v
			}
		}
	}
	scale := 1 / float32(len(xs))
	for _, g := range total {
		for j := range g {
			g[j] *= scale
		}
	}
	opt.Step(s.params, total)
	return summarize(parts, len(xs)), nil
}

// EvaluateBatch reports loss and accuracy without touching the parameters.
func (s *Sequential) EvaluateBatch(ctx context.Context, xs [][]float32, ys []float32) (BatchResult, error) {
	if err := s.checkBatch(xs, ys); err != nil {
		return BatchResult{}, err
	}
	parts, err := s.runBatch(ctx, xs, ys, false)
	if err != nil {
		return BatchResult{}, err
	}
	return summarize(parts, len(xs)), nil
}
