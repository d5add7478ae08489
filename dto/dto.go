// Package dto defines the validated value objects that cross component
// boundaries: what the command line builds, what services accept and return.
package dto

import (
	"io"
	"time"
)

// Upload is an uploaded file as handed over by the outer surface.
type Upload struct {
	Filename string    `validate:"required,max=255"`
	Content  io.Reader `validate:"required"`
}

// HyperParams describes a user-parameterised CNN and how long to train it.
type HyperParams struct {
	Filters1Layer int `json:"filters_1_layer" validate:"min=1,max=128"`
	Filters2Layer int `json:"filters_2_layer" validate:"min=1,max=128"`
	Filters3Layer int `json:"filters_3_layer" validate:"min=1,max=128"`
	DenseNeurons  int `json:"dense_neurons" validate:"min=1,max=1024"`
	Epochs        int `json:"epochs" validate:"min=1,max=20"`
}

type CreateImageDTO struct {
	UserID uint   `validate:"required"`
	Title  string `validate:"required,max=50"`
	Image  Upload
}

type ImageDTO struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Title     string    `json:"title"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
}

// Prediction is the outcome of one classification request.
type Prediction struct {
	Score   float32 `json:"score"`
	Label   string  `json:"label"`
	Message string  `json:"message"`
}

// EpochMetrics is what one training epoch emits, in emission order.
type EpochMetrics struct {
	Accuracy    float64 `json:"accuracy"`
	ValAccuracy float64 `json:"val_accuracy"`
	Loss        float64 `json:"loss"`
	ValLoss     float64 `json:"val_loss"`
}

type HistoryEntryDTO struct {
	Epoch int `json:"epoch"`
	EpochMetrics
}

type ModelDTO struct {
	ID          uint              `json:"id"`
	UserID      uint              `json:"user_id"`
	HyperParams HyperParams       `json:"hyper_params"`
	WeightsPath string            `json:"weights_path"`
	CreatedAt   time.Time         `json:"created_at"`
	History     []HistoryEntryDTO `json:"history"`
}

// ModelSummary is a model listing row; it carries no history entries.
type ModelSummary struct {
	ID               uint        `json:"id"`
	UserID           uint        `json:"user_id"`
	HyperParams      HyperParams `json:"hyper_params"`
	WeightsPath      string      `json:"weights_path"`
	CreatedAt        time.Time   `json:"created_at"`
	EpochCount       int         `json:"epoch_count"`
	FinalAccuracy    *float64    `json:"final_accuracy,omitempty"`
	FinalValAccuracy *float64    `json:"final_val_accuracy,omitempty"`
}

type UserDTO struct {
	ID         uint      `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Avatar     *string   `json:"avatar,omitempty"`
	DateJoined time.Time `json:"date_joined"`
}

type RegisterUserDTO struct {
	Email     string `validate:"required,email,max=254"`
	Password  string `validate:"required,min=8"`
	FirstName string `validate:"max=150"`
	LastName  string `validate:"max=150"`
}

// UpdateUserDTO replaces the name fields; Avatar is optional and a nil
// Avatar keeps whatever avatar the user already has.
type UpdateUserDTO struct {
	ID        uint   `validate:"required"`
	FirstName string `validate:"max=150"`
	LastName  string `validate:"max=150"`
	Avatar    *Upload
}

// TrainingJobDTO reports an out-of-band training run.
type TrainingJobDTO struct {
	ID          string      `json:"id"`
	UserID      uint        `json:"user_id"`
	HyperParams HyperParams `json:"hyper_params"`
	Status      string      `json:"status"`
	ModelID     *uint       `json:"model_id,omitempty"`
	Error       *string     `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
}
