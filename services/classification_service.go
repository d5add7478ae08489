package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/classifier"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/logging"
	"github.com/camden-git/petclassifier/media"
	"github.com/camden-git/petclassifier/repository"
	"github.com/camden-git/petclassifier/training"
)

// ModelLoader resolves a variant into a predictor; see classifier.Loader.
type ModelLoader interface {
	Load(ctx context.Context, variant classifier.Variant, model *dto.ModelDTO) (classifier.Predictor, error)
}

// ClassificationService classifies uploads and trains user models.
type ClassificationService struct {
	images    repository.ImageRepository
	models    repository.ClassificationModelRepository
	store     media.Store
	processor *media.Processor
	loader    ModelLoader
	trainOpts training.Options
	log       *slog.Logger
}

func NewClassificationService(
	images repository.ImageRepository,
	models repository.ClassificationModelRepository,
	store media.Store,
	loader ModelLoader,
	trainOpts training.Options,
) *ClassificationService {
	return &ClassificationService{
		images:    images,
		models:    models,
		store:     store,
		processor: media.NewProcessor(store),
		loader:    loader,
		trainOpts: trainOpts,
		log:       logging.ForComponent("services.classification"),
	}
}

// Classify decodes and resizes the upload, scores it with the chosen variant
// and records the resized picture. modelID is required for
// classifier.UserModel and must name one of the caller's own models.
// Nothing is stored when decoding, model resolution or inference fails.
func (s *ClassificationService) Classify(ctx context.Context, in dto.CreateImageDTO, variant classifier.Variant, modelID *uint) (dto.ImageDTO, dto.Prediction, error) {
	if err := dto.Validate(in); err != nil {
		return dto.ImageDTO{}, dto.Prediction{}, err
	}
	if !variant.Valid() {
		return dto.ImageDTO{}, dto.Prediction{}, apperrors.NewUnknownVariantError(strconv.Itoa(int(variant)))
	}

	img, err := s.processor.Decode(in.Image.Content)
	if err != nil {
		return dto.ImageDTO{}, dto.Prediction{}, err
	}
	resized := media.ResizeForClassification(img)

	var model *dto.ModelDTO
	if variant == classifier.UserModel {
		if modelID == nil {
			return dto.ImageDTO{}, dto.Prediction{}, apperrors.NewValidationError("ModelID", "required", "")
		}
		m, err := s.models.Get(ctx, in.UserID, *modelID)
		if err != nil {
			return dto.ImageDTO{}, dto.Prediction{}, err
		}
		model = &m
	}

	predictor, err := s.loader.Load(ctx, variant, model)
	if err != nil {
		return dto.ImageDTO{}, dto.Prediction{}, err
	}
	score, err := predictor.Predict(ctx, media.ToTensor(resized))
	if err != nil {
		return dto.ImageDTO{}, dto.Prediction{}, fmt.Errorf("prediction with %s failed: %w", variant, err)
	}
	prediction := classifier.Decide(score)

	path, err := s.processor.SaveImage(resized, in.Image.Filename)
	if err != nil {
		return dto.ImageDTO{}, dto.Prediction{}, err
	}
	record, err := s.images.Save(ctx, in.UserID, in.Title, path)
	if err != nil {
		if delErr := s.store.Delete(path); delErr != nil {
			s.log.Warn("services.classification: failed to remove orphaned image", "path", path, "error", delErr)
		}
		return dto.ImageDTO{}, dto.Prediction{}, err
	}

	s.log.Info("services.classification: classified image",
		"user_id", in.UserID, "image_id", record.ID, "variant", variant.String(),
		"score", prediction.Score, "label", prediction.Label)
	return record, prediction, nil
}

// Train fits a CNN with hp on the dataset, stores its weights under a fresh
// name and records the model with one history entry per epoch. On any
// failure no model record exists and the weights file is removed.
func (s *ClassificationService) Train(ctx context.Context, userID uint, hp dto.HyperParams, progress training.ProgressFunc) (dto.ModelDTO, error) {
	if err := hp.Validate(); err != nil {
		return dto.ModelDTO{}, err
	}

	net, history, err := training.Train(ctx, s.trainOpts, hp, progress)
	if err != nil {
		return dto.ModelDTO{}, fmt.Errorf("training failed: %w", err)
	}

	name, err := training.WeightsFilename()
	if err != nil {
		return dto.ModelDTO{}, err
	}
	var buf bytes.Buffer
	if err := net.WriteWeights(&buf); err != nil {
		return dto.ModelDTO{}, fmt.Errorf("failed to serialise weights: %w", err)
	}
	weightsPath, err := s.store.Save(media.AssetTypeWeights, "", name, &buf)
	if err != nil {
		return dto.ModelDTO{}, fmt.Errorf("failed to store weights: %w", err)
	}

	model, err := s.persistModel(ctx, userID, hp, weightsPath, history)
	if err != nil {
		if delErr := s.store.Delete(weightsPath); delErr != nil {
			s.log.Warn("services.classification: failed to remove orphaned weights", "path", weightsPath, "error", delErr)
		}
		return dto.ModelDTO{}, err
	}

	s.log.Info("services.classification: model trained",
		"user_id", userID, "model_id", model.ID, "epochs", len(model.History), "weights", weightsPath)
	return model, nil
}

func (s *ClassificationService) persistModel(ctx context.Context, userID uint, hp dto.HyperParams, weightsPath string, history []dto.EpochMetrics) (dto.ModelDTO, error) {
	if err := ctx.Err(); err != nil {
		return dto.ModelDTO{}, err
	}
	model, err := s.models.Create(ctx, userID, hp, weightsPath, history)
	if err != nil {
		return dto.ModelDTO{}, fmt.Errorf("failed to persist model: %w", err)
	}
	return model, nil
}

func (s *ClassificationService) ListModels(ctx context.Context, userID uint) ([]dto.ModelSummary, error) {
	return s.models.List(ctx, userID)
}

// GetModel returns one of the user's models with its ordered history.
func (s *ClassificationService) GetModel(ctx context.Context, userID, modelID uint) (dto.ModelDTO, error) {
	return s.models.Get(ctx, userID, modelID)
}

func (s *ClassificationService) ListImages(ctx context.Context, userID uint) ([]dto.ImageDTO, error) {
	return s.images.ListByUser(ctx, userID)
}
