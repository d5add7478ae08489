package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_PATH", "MEDIA_STORAGE_PATH", "DATASET_PATH", "TRANSFER_MODEL_BACKEND",
		"TRAIN_STEPS_PER_EPOCH", "VALIDATION_STEPS", "TRAIN_BATCH_SIZE", "LEARNING_RATE",
		"IMAGES_SUBDIR", "AVATARS_SUBDIR", "WEIGHTS_SUBDIR", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "petclassifier.db", cfg.DatabasePath)
	assert.True(t, filepath.IsAbs(cfg.MediaStoragePath))
	assert.True(t, filepath.IsAbs(cfg.DatasetPath))
	assert.Equal(t, DefaultImagesSubDir, cfg.ImagesSubDir)
	assert.Equal(t, DefaultAvatarsSubDir, cfg.AvatarsSubDir)
	assert.Equal(t, DefaultWeightsSubDir, cfg.WeightsSubDir)
	assert.Equal(t, TransferBackendGocv, cfg.TransferModelBackend)
	assert.Equal(t, 100, cfg.TrainStepsPerEpoch)
	assert.Equal(t, 50, cfg.ValidationSteps)
	assert.Equal(t, 20, cfg.TrainBatchSize)
	assert.InDelta(t, 1e-4, cfg.LearningRate, 1e-12)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEDIA_STORAGE_PATH", dir)
	t.Setenv("TRANSFER_MODEL_BACKEND", "OnnxRuntime")
	t.Setenv("TRAIN_BATCH_SIZE", "8")
	t.Setenv("VALIDATION_STEPS", "-3")
	t.Setenv("LEARNING_RATE", "abc")
	t.Setenv("NUM_TRAINING_WORKERS", "4")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.MediaStoragePath)
	assert.Equal(t, TransferBackendOnnxRuntime, cfg.TransferModelBackend)
	assert.Equal(t, 8, cfg.TrainBatchSize)
	assert.Equal(t, defaultValidationSteps, cfg.ValidationSteps)
	assert.InDelta(t, defaultLearningRate, cfg.LearningRate, 1e-12)
	assert.Equal(t, 4, cfg.NumTrainingWorkers)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("TRANSFER_MODEL_BACKEND", "tensorflow")
	_, err := LoadConfig()
	assert.Error(t, err)
}
