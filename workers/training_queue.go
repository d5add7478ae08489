package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/logging"
	"github.com/camden-git/petclassifier/repository"
	"github.com/camden-git/petclassifier/training"
)

// Trainer runs one training to completion; services.ClassificationService
// implements it.
type Trainer interface {
	Train(ctx context.Context, userID uint, hp dto.HyperParams, progress training.ProgressFunc) (dto.ModelDTO, error)
}

// TrainingQueue runs training jobs on a fixed pool of worker goroutines. Jobs
// are persisted before they are queued, so a job that did not fit into the
// channel (or was queued when the process died) is picked up again by
// ResumePending.
type TrainingQueue struct {
	JobQueue chan string
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex

	jobs      repository.TrainingJobRepository
	trainer   Trainer
	stopped   bool
	processed int
	ctx       context.Context
	cancel    context.CancelFunc
	log       *slog.Logger
}

// NewTrainingQueue creates an idle queue; no job runs before Start.
func NewTrainingQueue(jobs repository.TrainingJobRepository, trainer Trainer, queueSize int) *TrainingQueue {
	if queueSize <= 0 {
		queueSize = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &TrainingQueue{
		JobQueue: make(chan string, queueSize),
		StopChan: make(chan struct{}),
		Pending:  make(map[string]bool),
		jobs:     jobs,
		trainer:  trainer,
		ctx:      ctx,
		cancel:   cancel,
		log:      logging.ForComponent("workers.training"),
	}

	return q
}

// Start launches numWorkers worker goroutines. It does nothing once the
// queue has been stopped.
func (q *TrainingQueue) Start(numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	q.Mutex.Lock()
	defer q.Mutex.Unlock()
	if q.stopped {
		return
	}

	q.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go q.worker(i)
	}
	q.log.Info("workers.training: started training workers", "workers", numWorkers, "queue_size", cap(q.JobQueue))
}

// Enqueue records a pending job for userID and hands it to the workers.
func (q *TrainingQueue) Enqueue(ctx context.Context, userID uint, hp dto.HyperParams) (dto.TrainingJobDTO, error) {
	if err := hp.Validate(); err != nil {
		return dto.TrainingJobDTO{}, err
	}
	job, err := q.jobs.Create(ctx, userID, hp)
	if err != nil {
		return dto.TrainingJobDTO{}, err
	}
	q.queue(job.ID)
	return job, nil
}

// ResumePending queues every job still marked pending in the database and
// returns how many were accepted.
func (q *TrainingQueue) ResumePending(ctx context.Context) (int, error) {
	ids, err := q.jobs.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, id := range ids {
		if q.queue(id) {
			queued++
		}
	}
	if len(ids) > 0 {
		q.log.Info("workers.training: resumed pending jobs", "pending", len(ids), "queued", queued)
	}
	return queued, nil
}

// Status returns the job if it belongs to userID.
func (q *TrainingQueue) Status(ctx context.Context, userID uint, jobID string) (dto.TrainingJobDTO, error) {
	return q.jobs.Get(ctx, userID, jobID)
}

func (q *TrainingQueue) queue(jobID string) bool {
	q.Mutex.Lock()
	defer q.Mutex.Unlock()

	if q.stopped {
		q.log.Warn("workers.training: queue stopped, job left pending", "job_id", jobID)
		return false
	}
	if q.Pending[jobID] {
		return false
	}
	select {
	case q.JobQueue <- jobID:
		q.Pending[jobID] = true
		return true
	default:
		q.log.Warn("workers.training: queue full, job left pending", "job_id", jobID)
		return false
	}
}

// WaitIdle blocks until no queued or running job is left, or ctx is done.
// Jobs queued before Start keep it waiting until the workers run them.
func (q *TrainingQueue) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.Mutex.Lock()
		idle := len(q.Pending) == 0
		q.Mutex.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Processed returns how many jobs the workers have trained, whether the
// training succeeded or not. Jobs skipped before training are not counted.
func (q *TrainingQueue) Processed() int {
	q.Mutex.Lock()
	defer q.Mutex.Unlock()
	return q.processed
}

// Stop cancels running trainings and waits for every worker to return.
// Jobs still in the channel stay pending in the database.
func (q *TrainingQueue) Stop() {
	q.Mutex.Lock()
	if q.stopped {
		q.Mutex.Unlock()
		return
	}
	q.stopped = true
	q.Mutex.Unlock()

	close(q.StopChan)
	q.cancel()
	q.Wg.Wait()
	q.log.Info("workers.training: all workers stopped")
}

func (q *TrainingQueue) worker(id int) {
	defer q.Wg.Done()
	q.log.Debug("workers.training: worker started", "worker", id)
	for {
		select {
		case <-q.StopChan:
			q.log.Debug("workers.training: worker stopping", "worker", id)
			return
		case jobID := <-q.JobQueue:
			ran := q.process(id, jobID)
			q.Mutex.Lock()
			delete(q.Pending, jobID)
			if ran {
				q.processed++
			}
			q.Mutex.Unlock()
		}
	}
}

// process trains one job and reports whether this worker ran it. Jobs that
// cannot be claimed are marked failed unless another worker owns them.
func (q *TrainingQueue) process(workerID int, jobID string) bool {
	log := q.log.With("worker", workerID, "job_id", jobID)

	job, err := q.jobs.GetByID(q.ctx, jobID)
	if err != nil {
		if errors.Is(err, apperrors.ErrInstanceNotFound) {
			log.Warn("workers.training: job no longer exists, skipping")
			return false
		}
		log.Error("workers.training: failed to load job", "error", err)
		q.fail(log, jobID, err)
		return false
	}
	if err := q.jobs.MarkProcessing(q.ctx, jobID); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrJobClaimed):
			log.Info("workers.training: job already claimed, skipping")
		case errors.Is(err, apperrors.ErrInstanceNotFound):
			log.Warn("workers.training: job no longer exists, skipping")
		default:
			log.Error("workers.training: failed to mark job processing", "error", err)
			q.fail(log, jobID, err)
		}
		return false
	}

	log.Info("workers.training: training started", "user_id", job.UserID, "epochs", job.HyperParams.Epochs)
	model, taskErr := q.trainer.Train(q.ctx, job.UserID, job.HyperParams, func(epoch int, m dto.EpochMetrics) {
		log.Info("workers.training: epoch finished", "epoch", epoch, "accuracy", m.Accuracy, "val_accuracy", m.ValAccuracy, "loss", m.Loss)
	})

	var modelID *uint
	if taskErr != nil {
		log.Error("workers.training: training failed", "error", taskErr)
	} else {
		modelID = &model.ID
		log.Info("workers.training: training finished", "model_id", model.ID)
	}
	q.record(log, jobID, modelID, taskErr)
	return true
}

// fail records err as the job's outcome so it does not stay pending.
func (q *TrainingQueue) fail(log *slog.Logger, jobID string, err error) {
	q.record(log, jobID, nil, fmt.Errorf("job could not be started: %w", err))
}

// record stores the outcome even when Stop cancelled the training.
func (q *TrainingQueue) record(log *slog.Logger, jobID string, modelID *uint, taskErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := q.jobs.SetResult(ctx, jobID, modelID, taskErr); err != nil {
		log.Error("workers.training: failed to store job result", "error", err)
	}
}
