package models

import "time"

// Image is an uploaded picture after it was resized for classification.
// Records are immutable and only go away together with their owner.
type Image struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"size:50;not null" json:"title"`
	Image     string    `gorm:"not null" json:"image"` // relative store path, images/<filename>
	CreatedAt time.Time `json:"created_at"`
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "images"
}
