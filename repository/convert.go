package repository

import (
	"github.com/camden-git/petclassifier/database"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/models"
)

func imageToDTO(m models.Image) dto.ImageDTO {
	return dto.ImageDTO{ID: m.ID, UserID: m.UserID, Title: m.Title, Image: m.Image, CreatedAt: m.CreatedAt}
}

func hyperParamsOf(m models.ClassificationModel) dto.HyperParams {
	return dto.HyperParams{
		Filters1Layer: m.Filters1Layer,
		Filters2Layer: m.Filters2Layer,
		Filters3Layer: m.Filters3Layer,
		DenseNeurons:  m.DenseNeurons,
		Epochs:        m.Epochs,
	}
}

func modelToDTO(m models.ClassificationModel) dto.ModelDTO {
	out := dto.ModelDTO{
		ID:          m.ID,
		UserID:      m.UserID,
		HyperParams: hyperParamsOf(m),
		WeightsPath: m.WeightsPath,
		CreatedAt:   m.CreatedAt,
		History:     make([]dto.HistoryEntryDTO, 0, len(m.History)),
	}
	for _, h := range m.History {
		out.History = append(out.History, dto.HistoryEntryDTO{
			Epoch: h.Epoch,
			EpochMetrics: dto.EpochMetrics{
				Accuracy:    h.Accuracy,
				ValAccuracy: h.ValAccuracy,
				Loss:        h.Loss,
				ValLoss:     h.ValLoss,
			},
		})
	}
	return out
}

func summaryRowToDTO(r database.ModelSummaryRow) dto.ModelSummary {
	return dto.ModelSummary{
		ID:     r.ID,
		UserID: r.UserID,
		HyperParams: dto.HyperParams{
			Filters1Layer: r.Filters1Layer,
			Filters2Layer: r.Filters2Layer,
			Filters3Layer: r.Filters3Layer,
			DenseNeurons:  r.DenseNeurons,
			Epochs:        r.Epochs,
		},
		WeightsPath:      r.WeightsPath,
		CreatedAt:        r.CreatedAt,
		EpochCount:       r.EpochCount,
		FinalAccuracy:    r.FinalAccuracy,
		FinalValAccuracy: r.FinalValAccuracy,
	}
}

func jobToDTO(j models.TrainingJob) dto.TrainingJobDTO {
	return dto.TrainingJobDTO{
		ID:     j.ID,
		UserID: j.UserID,
		HyperParams: dto.HyperParams{
			Filters1Layer: j.Filters1Layer,
			Filters2Layer: j.Filters2Layer,
			Filters3Layer: j.Filters3Layer,
			DenseNeurons:  j.DenseNeurons,
			Epochs:        j.Epochs,
		},
		Status:     j.Status,
		ModelID:    j.ModelID,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}
