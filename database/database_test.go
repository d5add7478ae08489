package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camden-git/petclassifier/models"
)

func openTestDB(t *testing.T) (*gorm.DB, *sql.DB) {
	t.Helper()
	db, err := InitGormDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, AutoMigrateModels(db))
	t.Cleanup(func() { Close(db) })

	sqlDB, err := db.DB()
	require.NoError(t, err)
	return db, sqlDB
}

func TestWithForeignKeys(t *testing.T) {
	assert.Equal(t, "a.db?_foreign_keys=on", withForeignKeys("a.db"))
	assert.Equal(t, "a.db?cache=shared&_foreign_keys=on", withForeignKeys("a.db?cache=shared"))
	assert.Equal(t, "a.db?_foreign_keys=off", withForeignKeys("a.db?_foreign_keys=off"))
}

func TestListModelSummaries(t *testing.T) {
	db, sqlDB := openTestDB(t)

	user := models.User{Email: "owner@example.com", PasswordHash: "x", IsActive: true, DateJoined: time.Now()}
	require.NoError(t, db.Create(&user).Error)
	other := models.User{Email: "other@example.com", PasswordHash: "x", IsActive: true, DateJoined: time.Now()}
	require.NoError(t, db.Create(&other).Error)

	trained := models.ClassificationModel{
		UserID: user.ID, Filters1Layer: 8, Filters2Layer: 16, Filters3Layer: 32, DenseNeurons: 64, Epochs: 3,
		WeightsPath: "weights/a.bin",
		History: []models.HistoryEntry{
			{Epoch: 1, Accuracy: 0.5, ValAccuracy: 0.4},
			{Epoch: 3, Accuracy: 0.9, ValAccuracy: 0.8},
			{Epoch: 2, Accuracy: 0.7, ValAccuracy: 0.6},
		},
	}
	require.NoError(t, db.Create(&trained).Error)
	empty := models.ClassificationModel{UserID: user.ID, Filters1Layer: 1, Filters2Layer: 1, Filters3Layer: 1, DenseNeurons: 1, Epochs: 1, WeightsPath: "weights/b.bin"}
	require.NoError(t, db.Create(&empty).Error)
	foreign := models.ClassificationModel{UserID: other.ID, Filters1Layer: 1, Filters2Layer: 1, Filters3Layer: 1, DenseNeurons: 1, Epochs: 1, WeightsPath: "weights/c.bin"}
	require.NoError(t, db.Create(&foreign).Error)

	rows, err := ListModelSummaries(sqlDB, user.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, trained.ID, rows[0].ID)
	assert.Equal(t, 3, rows[0].EpochCount)
	assert.Equal(t, 16, rows[0].Filters2Layer)
	require.NotNil(t, rows[0].FinalAccuracy)
	assert.InDelta(t, 0.9, *rows[0].FinalAccuracy, 1e-9)
	require.NotNil(t, rows[0].FinalValAccuracy)
	assert.InDelta(t, 0.8, *rows[0].FinalValAccuracy, 1e-9)

	assert.Equal(t, empty.ID, rows[1].ID)
	assert.Zero(t, rows[1].EpochCount)
	assert.Nil(t, rows[1].FinalAccuracy)
}

func TestJobLifecycle(t *testing.T) {
	db, sqlDB := openTestDB(t)

	older := models.TrainingJob{ID: "b-job", UserID: 1, Epochs: 1, Status: models.JobStatusPending, CreatedAt: time.Now().Add(-time.Minute)}
	newer := models.TrainingJob{ID: "a-job", UserID: 1, Epochs: 1, Status: models.JobStatusPending, CreatedAt: time.Now()}
	require.NoError(t, db.Create(&newer).Error)
	require.NoError(t, db.Create(&older).Error)

	ids, err := PendingJobIDs(sqlDB)
	require.NoError(t, err)
	assert.Equal(t, []string{"b-job", "a-job"}, ids)

	require.NoError(t, MarkJobProcessing(sqlDB, "b-job"))
	err = MarkJobProcessing(sqlDB, "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	// a second claim on the same job loses
	err = MarkJobProcessing(sqlDB, "b-job")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	ids, err = PendingJobIDs(sqlDB)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-job"}, ids)

	modelID := uint(42)
	require.NoError(t, SetJobResult(sqlDB, "b-job", &modelID, nil))
	require.NoError(t, SetJobResult(sqlDB, "a-job", nil, errors.New("out of memory")))

	var done, failed models.TrainingJob
	require.NoError(t, db.First(&done, "id = ?", "b-job").Error)
	require.NoError(t, db.First(&failed, "id = ?", "a-job").Error)

	assert.Equal(t, models.JobStatusDone, done.Status)
	require.NotNil(t, done.ModelID)
	assert.Equal(t, uint(42), *done.ModelID)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)

	assert.Equal(t, models.JobStatusError, failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "out of memory", *failed.Error)

	ids, err = PendingJobIDs(sqlDB)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
