package models

import "time"

// ClassificationModel is a user-trained CNN: the hyper parameters it was built
// with and where its weights live.
type ClassificationModel struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	Filters1Layer int       `gorm:"column:filters_1_layer;not null" json:"filters_1_layer"`
	Filters2Layer int       `gorm:"column:filters_2_layer;not null" json:"filters_2_layer"`
	Filters3Layer int       `gorm:"column:filters_3_layer;not null" json:"filters_3_layer"`
	DenseNeurons  int       `gorm:"not null" json:"dense_neurons"`
	Epochs        int       `gorm:"not null" json:"epochs"`
	WeightsPath   string    `gorm:"not null" json:"weights_path"`
	CreatedAt     time.Time `json:"created_at"`

	History []HistoryEntry `gorm:"foreignKey:ModelID;constraint:OnDelete:CASCADE" json:"history,omitempty"`
}

func (ClassificationModel) TableName() string {
	return "classification_models"
}

// HistoryEntry holds the metrics of one training epoch. Epoch is 1-based and
// contiguous per model.
type HistoryEntry struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	ModelID     uint    `gorm:"index:idx_history_model_epoch,unique;not null" json:"model_id"`
	Epoch       int     `gorm:"index:idx_history_model_epoch,unique;not null" json:"epoch"`
	Accuracy    float64 `gorm:"not null" json:"accuracy"`
	ValAccuracy float64 `gorm:"not null" json:"val_accuracy"`
	Loss        float64 `gorm:"not null" json:"loss"`
	ValLoss     float64 `gorm:"not null" json:"val_loss"`
}

func (HistoryEntry) TableName() string {
	return "history_entries"
}
