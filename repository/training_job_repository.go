package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/database"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/models"
)

type GormTrainingJobRepository struct {
	DB *gorm.DB
}

func NewGormTrainingJobRepository(db *gorm.DB) *GormTrainingJobRepository {
	return &GormTrainingJobRepository{DB: db}
}

func (r *GormTrainingJobRepository) Create(ctx context.Context, userID uint, hp dto.HyperParams) (dto.TrainingJobDTO, error) {
	job := models.TrainingJob{
		ID:            uuid.NewString(),
		UserID:        userID,
		Filters1Layer: hp.Filters1Layer,
		Filters2Layer: hp.Filters2Layer,
		Filters3Layer: hp.Filters3Layer,
		DenseNeurons:  hp.DenseNeurons,
		Epochs:        hp.Epochs,
		Status:        models.JobStatusPending,
	}
	if err := r.DB.WithContext(ctx).Create(&job).Error; err != nil {
		return dto.TrainingJobDTO{}, fmt.Errorf("failed to create training job for user %d: %w", userID, err)
	}
	return jobToDTO(job), nil
}

func (r *GormTrainingJobRepository) Get(ctx context.Context, userID uint, jobID string) (dto.TrainingJobDTO, error) {
	var job models.TrainingJob
	err := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", jobID, userID).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TrainingJobDTO{}, apperrors.NewNotFoundError("training job", jobID)
		}
		return dto.TrainingJobDTO{}, fmt.Errorf("failed to get training job %s: %w", jobID, err)
	}
	return jobToDTO(job), nil
}

func (r *GormTrainingJobRepository) GetByID(ctx context.Context, jobID string) (dto.TrainingJobDTO, error) {
	var job models.TrainingJob
	if err := r.DB.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TrainingJobDTO{}, apperrors.NewNotFoundError("training job", jobID)
		}
		return dto.TrainingJobDTO{}, fmt.Errorf("failed to get training job %s: %w", jobID, err)
	}
	return jobToDTO(job), nil
}

func (r *GormTrainingJobRepository) sqlDB(ctx context.Context) (*sql.DB, error) {
	sqlDB, err := r.DB.WithContext(ctx).DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB, nil
}

func (r *GormTrainingJobRepository) MarkProcessing(ctx context.Context, jobID string) error {
	db, err := r.sqlDB(ctx)
	if err != nil {
		return err
	}
	if err := database.MarkJobProcessing(db, jobID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if _, err := r.GetByID(ctx, jobID); err != nil {
			return err
		}
		return apperrors.NewJobClaimedError(jobID)
	}
	return nil
}

func (r *GormTrainingJobRepository) SetResult(ctx context.Context, jobID string, modelID *uint, taskErr error) error {
	db, err := r.sqlDB(ctx)
	if err != nil {
		return err
	}
	return database.SetJobResult(db, jobID, modelID, taskErr)
}

func (r *GormTrainingJobRepository) ListPending(ctx context.Context) ([]string, error) {
	db, err := r.sqlDB(ctx)
	if err != nil {
		return nil, err
	}
	return database.PendingJobIDs(db)
}
