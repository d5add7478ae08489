package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/camden-git/petclassifier/media"
	"github.com/camden-git/petclassifier/nn"
)

// ErrPredictorClosed is returned by Predict after Close.
var ErrPredictorClosed = errors.New("predictor is closed")

// Predictor scores one (1,150,150,3) NHWC tensor with values in [0,1]. The
// result is the probability that the picture shows a dog.
type Predictor interface {
	Predict(ctx context.Context, tensor []float32) (float32, error)
	Close() error
}

func checkTensor(tensor []float32) error {
	if len(tensor) != media.TensorLen {
		return fmt.Errorf("input tensor has %d values, want %d", len(tensor), media.TensorLen)
	}
	return nil
}

// NativePredictor runs a network from the nn package. It is safe for
// concurrent use.
type NativePredictor struct {
	net *nn.Sequential
}

func NewNativePredictor(net *nn.Sequential) *NativePredictor {
	return &NativePredictor{net: net}
}

func (p *NativePredictor) Predict(ctx context.Context, tensor []float32) (float32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkTensor(tensor); err != nil {
		return 0, err
	}
	out, err := p.net.Predict(tensor)
	if err != nil {
		return 0, fmt.Errorf("native inference failed: %w", err)
	}
	return ClampScore(out[0]), nil
}

func (p *NativePredictor) Close() error { return nil }
