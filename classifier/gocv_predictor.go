package classifier

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/camden-git/petclassifier/logging"
	"github.com/camden-git/petclassifier/media"
)

// GocvPredictor runs an exported ONNX graph through the OpenCV DNN module.
// The graph takes a (1,150,150,3) float input and yields a single sigmoid.
type GocvPredictor struct {
	mu     sync.Mutex
	net    gocv.Net
	path   string
	closed bool
	log    *slog.Logger
}

// NewGocvPredictor loads modelPath, preferring CUDA when OpenCV was built
// with it.
func NewGocvPredictor(modelPath string) (*GocvPredictor, error) {
	log := logging.ForComponent("classifier.gocv")

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("gocv could not read network '%s'", modelPath)
	}

	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)
	if cudaBackendErr != nil || cudaTargetErr != nil {
		log.Info("classifier.gocv: CUDA unavailable, falling back to CPU", "backend_error", cudaBackendErr, "target_error", cudaTargetErr)
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	log.Info("classifier.gocv: loaded network", "path", modelPath)
	return &GocvPredictor{net: net, path: modelPath, log: log}, nil
}

func float32Bytes(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func (p *GocvPredictor) Predict(ctx context.Context, tensor []float32) (float32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkTensor(tensor); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPredictorClosed
	}

	sizes := []int{1, media.ClassificationSize, media.ClassificationSize, media.Channels}
	blob, err := gocv.NewMatWithSizesFromBytes(sizes, gocv.MatTypeCV32F, float32Bytes(tensor))
	if err != nil {
		return 0, fmt.Errorf("failed to build input blob: %w", err)
	}
	defer blob.Close()

	p.net.SetInput(blob, "")
	output := p.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return 0, fmt.Errorf("network '%s' produced no output", p.path)
	}
	values, err := output.DataPtrFloat32()
	if err != nil {
		return 0, fmt.Errorf("failed to read network output: %w", err)
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("network '%s' produced an empty output", p.path)
	}
	return ClampScore(values[0]), nil
}

func (p *GocvPredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Info("classifier.gocv: closed network", "path", p.path)
	return p.net.Close()
}
