package classifier

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/config"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/logging"
	"github.com/camden-git/petclassifier/media"
	"github.com/camden-git/petclassifier/nn"
)

// TransferFactory opens the exported transfer-learned graph at path.
type TransferFactory func(path string) (Predictor, error)

// Loader resolves a variant (and, for user models, the model record) into a
// ready Predictor. Loaded predictors are cached by the file they came from;
// evicted entries are closed. The transfer predictor holds native resources
// that may be in use by a running request, so it never expires and is only
// released by Close.
type Loader struct {
	convWeightsPath   string
	transferModelPath string
	store             media.Store
	newTransfer       TransferFactory

	loadMu sync.Mutex
	cache  *gocache.Cache
	log    *slog.Logger
}

// NewLoader wires the fixed model paths from cfg. User model weights are read
// through store.
func NewLoader(cfg config.Config, store media.Store) *Loader {
	ttl := time.Duration(cfg.ModelCacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	l := &Loader{
		convWeightsPath:   cfg.ConvModelWeightsPath,
		transferModelPath: cfg.TransferModelPath,
		store:             store,
		cache:             gocache.New(ttl, ttl/2),
		log:               logging.ForComponent("classifier.loader"),
	}

	libPath := cfg.OnnxRuntimeLibraryPath
	if cfg.TransferModelBackend == config.TransferBackendOnnxRuntime {
		l.newTransfer = func(path string) (Predictor, error) { return NewOnnxPredictor(path, libPath) }
	} else {
		l.newTransfer = func(path string) (Predictor, error) { return NewGocvPredictor(path) }
	}

	l.cache.OnEvicted(func(key string, value interface{}) {
		if p, ok := value.(Predictor); ok {
			if err := p.Close(); err != nil {
				l.log.Warn("classifier.loader: failed to close evicted predictor", "key", key, "error", err)
			}
		}
	})
	return l
}

// WithTransferFactory replaces how the transfer model is opened.
func (l *Loader) WithTransferFactory(f TransferFactory) *Loader {
	l.newTransfer = f
	return l
}

// Load returns the predictor for variant. model must be the caller's own
// trained model record when variant is UserModel and is ignored otherwise.
func (l *Loader) Load(ctx context.Context, variant Variant, model *dto.ModelDTO) (Predictor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch variant {
	case ConvModel:
		return l.cached("conv:"+l.convWeightsPath, gocache.DefaultExpiration, func() (Predictor, error) {
			return l.loadConvModel()
		})
	case TransferModel:
		return l.cached("transfer:"+l.transferModelPath, gocache.NoExpiration, func() (Predictor, error) {
			if _, err := os.Stat(l.transferModelPath); err != nil {
				return nil, apperrors.NewModelLoadError(l.transferModelPath, err)
			}
			p, err := l.newTransfer(l.transferModelPath)
			if err != nil {
				return nil, apperrors.NewModelLoadError(l.transferModelPath, err)
			}
			return p, nil
		})
	case UserModel:
		if model == nil {
			return nil, apperrors.NewNotFoundError("classification model", "<none>")
		}
		return l.cached("user:"+model.WeightsPath, gocache.DefaultExpiration, func() (Predictor, error) {
			return l.loadUserModel(model)
		})
	default:
		return nil, apperrors.NewUnknownVariantError(variant.String())
	}
}

func (l *Loader) cached(key string, ttl time.Duration, load func() (Predictor, error)) (Predictor, error) {
	if p, ok := l.cache.Get(key); ok {
		return p.(Predictor), nil
	}

	l.loadMu.Lock()
	defer l.loadMu.Unlock()
	if p, ok := l.cache.Get(key); ok {
		return p.(Predictor), nil
	}

	start := time.Now()
	p, err := load()
	if err != nil {
		return nil, err
	}
	l.cache.Set(key, p, ttl)
	l.log.Info("classifier.loader: loaded model", "key", key, "duration", time.Since(start))
	return p, nil
}

func (l *Loader) loadConvModel() (Predictor, error) {
	data, err := os.ReadFile(l.convWeightsPath)
	if err != nil {
		return nil, apperrors.NewModelLoadError(l.convWeightsPath, err)
	}
	net, err := networkFromWeights(ConvModelHyperParams, l.convWeightsPath, data)
	if err != nil {
		return nil, err
	}
	return NewNativePredictor(net), nil
}

func (l *Loader) loadUserModel(model *dto.ModelDTO) (Predictor, error) {
	data, err := l.store.Read(model.WeightsPath)
	if err != nil {
		return nil, apperrors.NewModelLoadError(model.WeightsPath, err)
	}
	net, err := networkFromWeights(model.HyperParams, model.WeightsPath, data)
	if err != nil {
		return nil, err
	}
	return NewNativePredictor(net), nil
}

func networkFromWeights(hp dto.HyperParams, path string, data []byte) (*nn.Sequential, error) {
	net, err := BuildCNN(hp, 0)
	if err != nil {
		return nil, apperrors.NewModelLoadError(path, err)
	}
	if err := net.ReadWeights(bytes.NewReader(data)); err != nil {
		return nil, apperrors.NewModelLoadError(path, err)
	}
	return net, nil
}

// Forget drops the cached predictor for a user model's weights file.
func (l *Loader) Forget(weightsPath string) {
	l.cache.Delete("user:" + weightsPath)
}

// Close closes every cached predictor and the onnxruntime environment.
func (l *Loader) Close() error {
	l.cache.DeleteExpired()
	for key := range l.cache.Items() {
		l.cache.Delete(key)
	}
	return shutdownOnnxRuntime()
}
