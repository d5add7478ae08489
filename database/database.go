package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/camden-git/petclassifier/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// ModelSummaryRow is one trained model with aggregated history figures.
type ModelSummaryRow struct {
	ID               uint
	UserID           uint
	Filters1Layer    int
	Filters2Layer    int
	Filters3Layer    int
	DenseNeurons     int
	Epochs           int
	WeightsPath      string
	CreatedAt        time.Time
	EpochCount       int
	FinalAccuracy    *float64
	FinalValAccuracy *float64
}

// ListModelSummaries returns the models owned by userID ordered by id, each
// with its recorded epoch count and the metrics of its last epoch.
func ListModelSummaries(db Querier, userID uint) ([]ModelSummaryRow, error) {
	queryBuilder := psql.Select(
		"m.id", "m.user_id",
		"m.filters_1_layer", "m.filters_2_layer", "m.filters_3_layer", "m.dense_neurons", "m.epochs",
		"m.weights_path", "m.created_at",
		"COUNT(h.id)",
		"(SELECT l.accuracy FROM history_entries l WHERE l.model_id = m.id ORDER BY l.epoch DESC LIMIT 1)",
		"(SELECT l.val_accuracy FROM history_entries l WHERE l.model_id = m.id ORDER BY l.epoch DESC LIMIT 1)",
	).From("classification_models m").
		LeftJoin("history_entries h ON h.model_id = m.id").
		Where(sq.Eq{"m.user_id": userID}).
		GroupBy("m.id").
		OrderBy("m.id")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListModelSummaries: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query model summaries for user %d: %w", userID, err)
	}
	defer rows.Close()

	var summaries []ModelSummaryRow
	for rows.Next() {
		var row ModelSummaryRow
		if err := rows.Scan(
			&row.ID, &row.UserID,
			&row.Filters1Layer, &row.Filters2Layer, &row.Filters3Layer, &row.DenseNeurons, &row.Epochs,
			&row.WeightsPath, &row.CreatedAt,
			&row.EpochCount, &row.FinalAccuracy, &row.FinalValAccuracy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan model summary for user %d: %w", userID, err)
		}
		summaries = append(summaries, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate model summaries for user %d: %w", userID, err)
	}
	return summaries, nil
}

// MarkJobProcessing moves a pending job to processing and clears any
// previous error. It returns sql.ErrNoRows when no pending job has that id,
// so only one caller can claim a job.
func MarkJobProcessing(db Querier, jobID string) error {
	queryBuilder := psql.Update("training_jobs").
		Set("status", models.JobStatusProcessing).
		Set("error", nil).
		Set("started_at", time.Now()).
		Where(sq.Eq{"id": jobID, "status": models.JobStatusPending})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for MarkJobProcessing: %w", err)
	}

	result, err := db.Exec(sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to mark training job %s processing: %w", jobID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("training job %s: %w", jobID, sql.ErrNoRows)
	}
	return nil
}

// SetJobResult records the outcome of a training job.
func SetJobResult(db Querier, jobID string, modelID *uint, taskErr error) error {
	status := models.JobStatusDone
	var errStr *string
	if taskErr != nil {
		status = models.JobStatusError
		s := taskErr.Error()
		errStr = &s
	}

	queryBuilder := psql.Update("training_jobs").
		Set("status", status).
		Set("model_id", modelID).
		Set("error", errStr).
		Set("finished_at", time.Now()).
		Where(sq.Eq{"id": jobID})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for SetJobResult: %w", err)
	}

	if _, err := db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to set result for training job %s: %w", jobID, err)
	}
	return nil
}

// PendingJobIDs lists jobs that were persisted but never picked up, oldest first.
func PendingJobIDs(db Querier) ([]string, error) {
	sqlStr, args, err := psql.Select("id").
		From("training_jobs").
		Where(sq.Eq{"status": models.JobStatusPending}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for PendingJobIDs: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending training jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending training job: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
