package models

import "time"

// Training job statuses.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusError      = "error"
)

// TrainingJob tracks a training run handed to the worker pool.
type TrainingJob struct {
	ID            string  `gorm:"primaryKey;size:36" json:"id"` // uuid
	UserID        uint    `gorm:"index;not null" json:"user_id"`
	Filters1Layer int     `gorm:"column:filters_1_layer;not null" json:"filters_1_layer"`
	Filters2Layer int     `gorm:"column:filters_2_layer;not null" json:"filters_2_layer"`
	Filters3Layer int     `gorm:"column:filters_3_layer;not null" json:"filters_3_layer"`
	DenseNeurons  int     `gorm:"not null" json:"dense_neurons"`
	Epochs        int     `gorm:"not null" json:"epochs"`
	Status        string  `gorm:"index;not null;default:pending" json:"status"`
	ModelID       *uint   `json:"model_id,omitempty"`
	Error         *string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (TrainingJob) TableName() string {
	return "training_jobs"
}
