package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/models"
)

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", apperrors.ErrEmailTaken, user.Email)
		}
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("%w: %s", apperrors.ErrEmailTaken, user.Email)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
}

func (r *GormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("user", id)
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &user, nil
}

func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("user", email)
		}
		return nil, fmt.Errorf("failed to get user %s: %w", email, err)
	}
	return &user, nil
}

func (r *GormUserRepository) UpdateProfile(ctx context.Context, id uint, firstName, lastName string, avatar *string) (*models.User, error) {
	updates := map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
	}
	if avatar != nil {
		updates["avatar"] = *avatar
	}

	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update user %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.NewNotFoundError("user", id)
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) CountAvatarUsers(ctx context.Context, avatarPath string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("avatar = ?", avatarPath).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count avatar users: %w", err)
	}
	return count, nil
}

func (r *GormUserRepository) Delete(ctx context.Context, id uint) (DeletedUserAssets, error) {
	var assets DeletedUserAssets
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFoundError("user", id)
			}
			return err
		}
		assets.Avatar = user.Avatar

		// files are shared by name, so only report those no other user's record points at
		sharedImages := tx.Model(&models.Image{}).Select("image").Where("user_id <> ?", id)
		if err := tx.Model(&models.Image{}).
			Distinct("image").
			Where("user_id = ?", id).
			Where("image NOT IN (?)", sharedImages).
			Order("image").
			Pluck("image", &assets.ImagePaths).Error; err != nil {
			return fmt.Errorf("failed to collect image paths: %w", err)
		}
		if user.Avatar != nil {
			var others int64
			if err := tx.Model(&models.User{}).Where("avatar = ? AND id <> ?", *user.Avatar, id).Count(&others).Error; err != nil {
				return fmt.Errorf("failed to check avatar usage: %w", err)
			}
			if others > 0 {
				assets.Avatar = nil
			}
		}

		var userModels []models.ClassificationModel
		if err := tx.Select("id", "weights_path").Where("user_id = ?", id).Find(&userModels).Error; err != nil {
			return fmt.Errorf("failed to collect models: %w", err)
		}
		modelIDs := make([]uint, 0, len(userModels))
		for _, m := range userModels {
			modelIDs = append(modelIDs, m.ID)
			assets.WeightsPaths = append(assets.WeightsPaths, m.WeightsPath)
		}

		if len(modelIDs) > 0 {
			if err := tx.Where("model_id IN ?", modelIDs).Delete(&models.HistoryEntry{}).Error; err != nil {
				return fmt.Errorf("failed to delete history: %w", err)
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.ClassificationModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete models: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Image{}).Error; err != nil {
			return fmt.Errorf("failed to delete images: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.TrainingJob{}).Error; err != nil {
			return fmt.Errorf("failed to delete training jobs: %w", err)
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		return DeletedUserAssets{}, err
	}
	return assets, nil
}
