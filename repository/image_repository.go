package repository

import (
	"context"
	"fmt"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/models"
)

// GormImageRepository handles database operations for Image entities
type GormImageRepository struct {
	DB *gorm.DB
}

func NewGormImageRepository(db *gorm.DB) *GormImageRepository {
	return &GormImageRepository{DB: db}
}

// Save records an uploaded picture at its relative store path.
func (r *GormImageRepository) Save(ctx context.Context, userID uint, title, imagePath string) (dto.ImageDTO, error) {
	image := models.Image{
		UserID: userID,
		Title:  title,
		Image:  filepath.ToSlash(imagePath),
	}
	if err := r.DB.WithContext(ctx).Create(&image).Error; err != nil {
		return dto.ImageDTO{}, fmt.Errorf("failed to save image record for user %d: %w", userID, err)
	}
	return imageToDTO(image), nil
}

// ListByUser returns the user's uploads, newest first.
func (r *GormImageRepository) ListByUser(ctx context.Context, userID uint) ([]dto.ImageDTO, error) {
	var images []models.Image
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images for user %d: %w", userID, err)
	}

	out := make([]dto.ImageDTO, 0, len(images))
	for _, img := range images {
		out = append(out, imageToDTO(img))
	}
	return out, nil
}
