package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/database"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/models"
)

type GormModelRepository struct {
	DB *gorm.DB
}

func NewGormModelRepository(db *gorm.DB) *GormModelRepository {
	return &GormModelRepository{DB: db}
}

func (r *GormModelRepository) Create(ctx context.Context, userID uint, hp dto.HyperParams, weightsPath string, history []dto.EpochMetrics) (dto.ModelDTO, error) {
	if len(history) == 0 {
		return dto.ModelDTO{}, fmt.Errorf("refusing to create model for user %d without training history", userID)
	}

	model := models.ClassificationModel{
		UserID:        userID,
		Filters1Layer: hp.Filters1Layer,
		Filters2Layer: hp.Filters2Layer,
		Filters3Layer: hp.Filters3Layer,
		DenseNeurons:  hp.DenseNeurons,
		Epochs:        hp.Epochs,
		WeightsPath:   weightsPath,
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("History").Create(&model).Error; err != nil {
			return fmt.Errorf("failed to insert model: %w", err)
		}

		entries := make([]models.HistoryEntry, len(history))
		for i, m := range history {
			entries[i] = models.HistoryEntry{
				ModelID:     model.ID,
				Epoch:       i + 1,
				Accuracy:    m.Accuracy,
				ValAccuracy: m.ValAccuracy,
				Loss:        m.Loss,
				ValLoss:     m.ValLoss,
			}
		}
		if err := tx.Create(&entries).Error; err != nil {
			return fmt.Errorf("failed to insert history: %w", err)
		}
		model.History = entries
		return nil
	})
	if err != nil {
		return dto.ModelDTO{}, fmt.Errorf("failed to create model for user %d: %w", userID, err)
	}
	return modelToDTO(model), nil
}

func (r *GormModelRepository) Get(ctx context.Context, userID, modelID uint) (dto.ModelDTO, error) {
	var model models.ClassificationModel
	err := r.DB.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("epoch ASC") }).
		Where("id = ? AND user_id = ?", modelID, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ModelDTO{}, apperrors.NewNotFoundError("classification model", modelID)
		}
		return dto.ModelDTO{}, fmt.Errorf("failed to get model %d: %w", modelID, err)
	}
	return modelToDTO(model), nil
}

func (r *GormModelRepository) List(ctx context.Context, userID uint) ([]dto.ModelSummary, error) {
	sqlDB, err := r.DB.WithContext(ctx).DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	rows, err := database.ListModelSummaries(sqlDB, userID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ModelSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, summaryRowToDTO(row))
	}
	return out, nil
}
