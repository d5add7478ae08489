package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/classifier"
	"github.com/camden-git/petclassifier/config"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/media"
	"github.com/camden-git/petclassifier/repository"
	"github.com/camden-git/petclassifier/testutil"
	"github.com/camden-git/petclassifier/training"
)

type fakePredictor struct {
	score float32
	err   error
	seen  []float32
}

func (p *fakePredictor) Predict(ctx context.Context, tensor []float32) (float32, error) {
	p.seen = tensor
	return p.score, p.err
}

func (p *fakePredictor) Close() error { return nil }

type fakeLoader struct {
	predictor *fakePredictor
	err       error
	calls     int
	model     *dto.ModelDTO
}

func (l *fakeLoader) Load(ctx context.Context, variant classifier.Variant, model *dto.ModelDTO) (classifier.Predictor, error) {
	l.calls++
	l.model = model
	if l.err != nil {
		return nil, l.err
	}
	return l.predictor, nil
}

type fixture struct {
	mem     *repository.MemoryStore
	store   *media.LocalStorage
	dataset string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := media.NewLocalStorage(filepath.Join(dir, "media"), map[media.AssetType]string{
		media.AssetTypeImage:   config.DefaultImagesSubDir,
		media.AssetTypeAvatar:  config.DefaultAvatarsSubDir,
		media.AssetTypeWeights: config.DefaultWeightsSubDir,
	})
	require.NoError(t, err)

	dataset := filepath.Join(dir, "dataset")
	testutil.WriteDataset(t, dataset, 3)
	return fixture{mem: repository.NewMemoryStore(), store: store, dataset: dataset}
}

func (f fixture) trainOptions() training.Options {
	return training.Options{
		DatasetPath:     f.dataset,
		StepsPerEpoch:   2,
		ValidationSteps: 1,
		BatchSize:       4,
		Workers:         2,
		Seed:            11,
	}
}

func (f fixture) classification(loader ModelLoader) *ClassificationService {
	return NewClassificationService(f.mem.Images(), f.mem.Models(), f.store, loader, f.trainOptions())
}

func (f fixture) files(t *testing.T, sub string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(f.store.BasePath(), sub))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func upload(t *testing.T, name string, w, h int) dto.Upload {
	return dto.Upload{Filename: name, Content: bytes.NewReader(testutil.PNG(t, w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255}))}
}

var smallParams = dto.HyperParams{Filters1Layer: 1, Filters2Layer: 1, Filters3Layer: 1, DenseNeurons: 2, Epochs: 2}

func TestClassifyStoresResizedImage(t *testing.T) {
	f := newFixture(t)
	loader := &fakeLoader{predictor: &fakePredictor{score: 0.83}}
	svc := f.classification(loader)

	img, pred, err := svc.Classify(context.Background(), dto.CreateImageDTO{
		UserID: 1, Title: "rex", Image: upload(t, "uploads/rex.jpg", 320, 240),
	}, classifier.ConvModel, nil)
	require.NoError(t, err)

	assert.Equal(t, classifier.LabelDog, pred.Label)
	assert.Equal(t, "The image contains a dog.", pred.Message)
	assert.InDelta(t, 0.83, pred.Score, 1e-6)
	assert.Equal(t, "images/rex.jpg", img.Image)
	assert.Len(t, loader.predictor.seen, media.TensorLen)
	assert.Nil(t, loader.model)

	rc, _, err := f.store.Get(img.Image)
	require.NoError(t, err)
	defer rc.Close()
	cfg, _, err := image.DecodeConfig(rc)
	require.NoError(t, err)
	assert.Equal(t, media.ClassificationSize, cfg.Width)
	assert.Equal(t, media.ClassificationSize, cfg.Height)

	listed, err := svc.ListImages(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "rex", listed[0].Title)
}

func TestClassifyThresholdIsCat(t *testing.T) {
	f := newFixture(t)
	svc := f.classification(&fakeLoader{predictor: &fakePredictor{score: 0.5}})

	_, pred, err := svc.Classify(context.Background(), dto.CreateImageDTO{
		UserID: 1, Title: "tom", Image: upload(t, "tom.png", 50, 50),
	}, classifier.TransferModel, nil)
	require.NoError(t, err)
	assert.Equal(t, classifier.LabelCat, pred.Label)
	assert.Equal(t, "The image contains a cat.", pred.Message)
}

func TestClassifyRejectsBeforeWriting(t *testing.T) {
	garbage := dto.Upload{Filename: "x.jpg", Content: strings.NewReader("definitely not a picture")}

	tests := []struct {
		name    string
		in      dto.CreateImageDTO
		variant classifier.Variant
		loader  *fakeLoader
		wantErr error
	}{
		{
			name:    "undecodable upload",
			in:      dto.CreateImageDTO{UserID: 1, Title: "x", Image: garbage},
			variant: classifier.ConvModel,
			loader:  &fakeLoader{predictor: &fakePredictor{score: 0.9}},
			wantErr: apperrors.ErrImageDecode,
		},
		{
			name:    "missing title",
			in:      dto.CreateImageDTO{UserID: 1, Image: garbage},
			variant: classifier.ConvModel,
			loader:  &fakeLoader{predictor: &fakePredictor{}},
			wantErr: apperrors.ErrValidation,
		},
		{
			name:    "unknown variant",
			in:      dto.CreateImageDTO{UserID: 1, Title: "x", Image: garbage},
			variant: classifier.Variant(42),
			loader:  &fakeLoader{predictor: &fakePredictor{}},
			wantErr: apperrors.ErrUnknownModelVariant,
		},
		{
			name:    "model fails to load",
			variant: classifier.ConvModel,
			loader:  &fakeLoader{err: apperrors.NewModelLoadError("weights.bin", errors.New("missing"))},
			wantErr: apperrors.ErrModelLoad,
		},
		{
			name:    "prediction fails",
			variant: classifier.TransferModel,
			loader:  &fakeLoader{predictor: &fakePredictor{err: errors.New("boom")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			svc := f.classification(tt.loader)
			in := tt.in
			if in.UserID == 0 {
				in = dto.CreateImageDTO{UserID: 1, Title: "ok", Image: upload(t, "ok.png", 20, 20)}
			}

			_, _, err := svc.Classify(context.Background(), in, tt.variant, nil)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			assert.Empty(t, f.files(t, "images"))
			listed, err := svc.ListImages(context.Background(), 1)
			require.NoError(t, err)
			assert.Empty(t, listed)
		})
	}
}

func TestClassifyUserModelNeedsOwnModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loader := &fakeLoader{predictor: &fakePredictor{score: 0.2}}
	svc := f.classification(loader)

	owned, err := f.mem.Models().Create(ctx, 1, smallParams, "weights/a.bin", []dto.EpochMetrics{{Accuracy: 0.5}})
	require.NoError(t, err)

	_, _, err = svc.Classify(ctx, dto.CreateImageDTO{UserID: 1, Title: "t", Image: upload(t, "a.png", 20, 20)}, classifier.UserModel, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, _, err = svc.Classify(ctx, dto.CreateImageDTO{UserID: 2, Title: "t", Image: upload(t, "b.png", 20, 20)}, classifier.UserModel, &owned.ID)
	assert.ErrorIs(t, err, apperrors.ErrInstanceNotFound)
	assert.Zero(t, loader.calls)
	assert.Empty(t, f.files(t, "images"))

	_, pred, err := svc.Classify(ctx, dto.CreateImageDTO{UserID: 1, Title: "t", Image: upload(t, "c.png", 20, 20)}, classifier.UserModel, &owned.ID)
	require.NoError(t, err)
	assert.Equal(t, classifier.LabelCat, pred.Label)
	require.NotNil(t, loader.model)
	assert.Equal(t, owned.ID, loader.model.ID)
}

func TestTrainPersistsModelAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loader := classifier.NewLoader(config.Config{ModelCacheTTLMinutes: 1}, f.store)
	defer loader.Close()
	svc := f.classification(loader)

	var epochs []int
	model, err := svc.Train(ctx, 5, smallParams, func(epoch int, _ dto.EpochMetrics) {
		epochs = append(epochs, epoch)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, epochs)
	assert.Equal(t, uint(5), model.UserID)
	assert.Equal(t, smallParams, model.HyperParams)
	require.Len(t, model.History, 2)
	for i, h := range model.History {
		assert.Equal(t, i+1, h.Epoch)
		assert.GreaterOrEqual(t, h.Accuracy, 0.0)
		assert.LessOrEqual(t, h.Accuracy, 1.0)
	}

	assert.True(t, strings.HasPrefix(model.WeightsPath, "weights/"+training.WeightsPrefix))
	assert.True(t, strings.HasSuffix(model.WeightsPath, training.WeightsExt))
	_, err = f.store.Read(model.WeightsPath)
	require.NoError(t, err)

	got, err := svc.GetModel(ctx, 5, model.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 2)

	summaries, err := svc.ListModels(ctx, 5)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].EpochCount)

	_, pred, err := svc.Classify(ctx, dto.CreateImageDTO{
		UserID: 5, Title: "mine", Image: upload(t, "pet.png", 64, 48),
	}, classifier.UserModel, &model.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pred.Score, float32(0))
	assert.LessOrEqual(t, pred.Score, float32(1))
}

type failingModels struct {
	repository.ClassificationModelRepository
}

func (failingModels) Create(ctx context.Context, userID uint, hp dto.HyperParams, weightsPath string, history []dto.EpochMetrics) (dto.ModelDTO, error) {
	return dto.ModelDTO{}, errors.New("database is gone")
}

func TestTrainRemovesWeightsWhenPersistFails(t *testing.T) {
	f := newFixture(t)
	svc := NewClassificationService(f.mem.Images(), failingModels{f.mem.Models()}, f.store, &fakeLoader{}, f.trainOptions())

	_, err := svc.Train(context.Background(), 1, smallParams, nil)
	require.Error(t, err)
	assert.Empty(t, f.files(t, "weights"))
}

func TestTrainAbortsOnCancelAndInvalidInput(t *testing.T) {
	f := newFixture(t)
	svc := f.classification(&fakeLoader{})

	_, err := svc.Train(context.Background(), 1, dto.HyperParams{Filters1Layer: 0, Filters2Layer: 1, Filters3Layer: 1, DenseNeurons: 1, Epochs: 1}, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = svc.Train(ctx, 1, smallParams, func(int, dto.EpochMetrics) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)

	summaries, err := svc.ListModels(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Empty(t, f.files(t, "weights"))
}
