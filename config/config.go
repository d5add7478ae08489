package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultImagesSubDir  = "images"
	DefaultAvatarsSubDir = "avatars"
	DefaultWeightsSubDir = "weights"
)

const (
	TransferBackendGocv        = "gocv"
	TransferBackendOnnxRuntime = "onnxruntime"
)

const (
	defaultTrainStepsPerEpoch  = 100
	defaultValidationSteps     = 50
	defaultTrainBatchSize      = 20
	defaultLearningRate        = 1e-4
	defaultTrainingQueueSize   = 16
	defaultNumTrainingWorkers  = 1
	defaultModelCacheTTLMinute = 30
)

type Config struct {
	// database path
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // root for uploaded images, avatars and weight files
	ImagesSubDir     string
	AvatarsSubDir    string
	WeightsSubDir    string

	// pre-trained models
	ConvModelWeightsPath   string // weights of the fixed cats_or_dogs_model
	TransferModelPath      string // exported graph of the transfer learned model
	TransferModelBackend   string // gocv or onnxruntime
	OnnxRuntimeLibraryPath string

	// training settings
	DatasetPath        string
	TrainStepsPerEpoch int
	ValidationSteps    int
	TrainBatchSize     int
	LearningRate       float64

	// worker settings
	TrainingQueueSize  int
	NumTrainingWorkers int

	ModelCacheTTLMinutes int

	LogLevel  string
	LogFormat string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		slog.Warn("config: invalid integer value, using default", "key", envVar, "value", valStr, "default", defaultVal, "error", err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		slog.Warn("config: invalid float value, using default", "key", envVar, "value", valStr, "default", defaultVal, "error", err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "petclassifier.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	datasetPath := getEnvOrDefault("DATASET_PATH", filepath.Join(".", "dataset"))
	absDatasetPath, err := filepath.Abs(datasetPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for dataset '%s': %w", datasetPath, err)
	}

	backend := strings.ToLower(getEnvOrDefault("TRANSFER_MODEL_BACKEND", TransferBackendGocv))
	if backend != TransferBackendGocv && backend != TransferBackendOnnxRuntime {
		return Config{}, fmt.Errorf("unsupported TRANSFER_MODEL_BACKEND '%s' (want %s or %s)", backend, TransferBackendGocv, TransferBackendOnnxRuntime)
	}

	cfg := Config{
		DatabasePath:           dbPath,
		MediaStoragePath:       absMediaStorage,
		ImagesSubDir:           getEnvOrDefault("IMAGES_SUBDIR", DefaultImagesSubDir),
		AvatarsSubDir:          getEnvOrDefault("AVATARS_SUBDIR", DefaultAvatarsSubDir),
		WeightsSubDir:          getEnvOrDefault("WEIGHTS_SUBDIR", DefaultWeightsSubDir),
		ConvModelWeightsPath:   getEnvOrDefault("CONV_MODEL_WEIGHTS_PATH", "./classification/weights.bin"),
		TransferModelPath:      getEnvOrDefault("TRANSFER_MODEL_PATH", "./classification/transfer_learned_model.onnx"),
		TransferModelBackend:   backend,
		OnnxRuntimeLibraryPath: os.Getenv("ONNXRUNTIME_LIBRARY_PATH"),
		DatasetPath:            absDatasetPath,
		TrainStepsPerEpoch:     getEnvIntOrDefault("TRAIN_STEPS_PER_EPOCH", defaultTrainStepsPerEpoch),
		ValidationSteps:        getEnvIntOrDefault("VALIDATION_STEPS", defaultValidationSteps),
		TrainBatchSize:         getEnvIntOrDefault("TRAIN_BATCH_SIZE", defaultTrainBatchSize),
		LearningRate:           getEnvFloatOrDefault("LEARNING_RATE", defaultLearningRate),
		TrainingQueueSize:      getEnvIntOrDefault("TRAINING_QUEUE_SIZE", defaultTrainingQueueSize),
		NumTrainingWorkers:     getEnvIntOrDefault("NUM_TRAINING_WORKERS", defaultNumTrainingWorkers),
		ModelCacheTTLMinutes:   getEnvIntOrDefault("MODEL_CACHE_TTL_MINUTES", defaultModelCacheTTLMinute),
		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:              getEnvOrDefault("LOG_FORMAT", "text"),
	}

	return cfg, nil
}
