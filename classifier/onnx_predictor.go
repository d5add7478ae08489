package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/camden-git/petclassifier/logging"
	"github.com/camden-git/petclassifier/media"
)

// GraphMetadata names the input and output of an exported graph. It is read
// from a JSON file next to the model (model.onnx -> model.json) when present.
type GraphMetadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
}

func defaultGraphMetadata() GraphMetadata {
	return GraphMetadata{
		InputName:   "input",
		OutputName:  "output",
		InputShape:  []int64{1, media.ClassificationSize, media.ClassificationSize, media.Channels},
		OutputShape: []int64{1, 1},
	}
}

func metadataPath(modelPath string) string {
	if i := strings.LastIndex(modelPath, "."); i > strings.LastIndexAny(modelPath, `/\`) {
		return modelPath[:i] + ".json"
	}
	return modelPath + ".json"
}

// LoadGraphMetadata reads the sidecar metadata of modelPath, falling back to
// the defaults for fields it leaves empty or when it does not exist.
func LoadGraphMetadata(modelPath string) (GraphMetadata, error) {
	meta := defaultGraphMetadata()
	raw, err := os.ReadFile(metadataPath(modelPath))
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata: %w", err)
	}

	var fromFile GraphMetadata
	if err := json.Unmarshal(raw, &fromFile); err != nil {
		return meta, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if fromFile.InputName != "" {
		meta.InputName = fromFile.InputName
	}
	if fromFile.OutputName != "" {
		meta.OutputName = fromFile.OutputName
	}
	if len(fromFile.InputShape) > 0 {
		meta.InputShape = fromFile.InputShape
	}
	if len(fromFile.OutputShape) > 0 {
		meta.OutputShape = fromFile.OutputShape
	}

	var n int64 = 1
	for _, d := range meta.InputShape {
		n *= d
	}
	if n != media.TensorLen {
		return meta, fmt.Errorf("metadata input shape %v does not hold %d values", meta.InputShape, media.TensorLen)
	}
	return meta, nil
}

var ortMu sync.Mutex

// initOnnxRuntime initialises the shared onnxruntime environment once.
func initOnnxRuntime(libraryPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// shutdownOnnxRuntime releases the environment if it was initialised.
func shutdownOnnxRuntime() error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// OnnxPredictor runs an exported graph through onnxruntime. Input and output
// tensors are allocated once and reused, so calls are serialised.
type OnnxPredictor struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	meta         GraphMetadata
	path         string
	closed       bool
	log          *slog.Logger
}

func NewOnnxPredictor(modelPath, libraryPath string) (*OnnxPredictor, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("onnx model: %w", err)
	}
	meta, err := LoadGraphMetadata(modelPath)
	if err != nil {
		return nil, err
	}
	if err := initOnnxRuntime(libraryPath); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	log := logging.ForComponent("classifier.onnx")
	log.Info("classifier.onnx: loaded session", "path", modelPath, "input", meta.InputName, "output", meta.OutputName)
	return &OnnxPredictor{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		meta:         meta,
		path:         modelPath,
		log:          log,
	}, nil
}

func (p *OnnxPredictor) Predict(ctx context.Context, tensor []float32) (float32, error) {
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

	copy(p.inputTensor.GetData(), tensor)
	if err := p.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}
	out := p.outputTensor.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("session '%s' produced an empty output", p.path)
	}
	return ClampScore(out[0]), nil
}

func (p *OnnxPredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.session != nil {
		errs = append(errs, p.session.Destroy())
	}
	if p.inputTensor != nil {
		errs = append(errs, p.inputTensor.Destroy())
	}
	if p.outputTensor != nil {
		errs = append(errs, p.outputTensor.Destroy())
	}
	p.log.Info("classifier.onnx: closed session", "path", p.path)
	return errors.Join(errs...)
}
