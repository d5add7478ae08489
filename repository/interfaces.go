package repository

import (
	"context"

	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/models"
)

// ImageRepository stores classified uploads.
type ImageRepository interface {
	Save(ctx context.Context, userID uint, title, imagePath string) (dto.ImageDTO, error)
	ListByUser(ctx context.Context, userID uint) ([]dto.ImageDTO, error)
}

// ClassificationModelRepository stores trained user models and their
// per-epoch history.
type ClassificationModelRepository interface {
	// Create inserts the model and one history entry per element of history,
	// numbered 1..len(history), atomically.
	Create(ctx context.Context, userID uint, hp dto.HyperParams, weightsPath string, history []dto.EpochMetrics) (dto.ModelDTO, error)
	// Get returns the model with its history ordered by epoch. A model owned
	// by someone else is reported as not found.
	Get(ctx context.Context, userID, modelID uint) (dto.ModelDTO, error)
	// List returns the user's models without history, ordered by id.
	List(ctx context.Context, userID uint) ([]dto.ModelSummary, error)
}

// DeletedUserAssets lists the stored files that belonged to a deleted user.
type DeletedUserAssets struct {
	Avatar       *string
	ImagePaths   []string
	WeightsPaths []string
}

// UserRepository defines the methods for user data operations
type UserRepository interface {
	// Create fails with apperrors.ErrEmailTaken when the email is in use.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateProfile replaces the name fields; a nil avatar keeps the stored one.
	UpdateProfile(ctx context.Context, id uint, firstName, lastName string, avatar *string) (*models.User, error)
	// CountAvatarUsers reports how many users have avatarPath as their avatar.
	CountAvatarUsers(ctx context.Context, avatarPath string) (int64, error)
	// Delete removes the user with its images, models, history and training
	// jobs in one transaction and reports the files only they referenced.
	Delete(ctx context.Context, id uint) (DeletedUserAssets, error)
}

// TrainingJobRepository tracks out-of-band training runs.
type TrainingJobRepository interface {
	Create(ctx context.Context, userID uint, hp dto.HyperParams) (dto.TrainingJobDTO, error)
	// Get returns a job owned by userID.
	Get(ctx context.Context, userID uint, jobID string) (dto.TrainingJobDTO, error)
	// GetByID returns a job regardless of owner; used by the workers.
	GetByID(ctx context.Context, jobID string) (dto.TrainingJobDTO, error)
	// MarkProcessing claims a pending job. A job that is no longer pending
	// yields apperrors.ErrJobClaimed.
	MarkProcessing(ctx context.Context, jobID string) error
	SetResult(ctx context.Context, jobID string, modelID *uint, taskErr error) error
	ListPending(ctx context.Context) ([]string, error)
}
