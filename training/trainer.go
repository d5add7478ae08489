package training

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/camden-git/petclassifier/classifier"
	"github.com/camden-git/petclassifier/config"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/logging"
	"github.com/camden-git/petclassifier/nn"
)

// Options controls a training run. Zero values fall back to the defaults of
// 100 training steps and 50 validation steps of 20 pictures per epoch.
type Options struct {
	DatasetPath     string
	StepsPerEpoch   int
	ValidationSteps int
	BatchSize       int
	LearningRate    float64
	// Workers bounds goroutines per batch; 0 uses GOMAXPROCS.
	Workers int
	// Seed drives initialisation, shuffling and augmentation; 0 picks one
	// from the clock.
	Seed int64
}

const (
	DefaultStepsPerEpoch   = 100
	DefaultValidationSteps = 50
	DefaultBatchSize       = 20
)

// OptionsFromConfig copies the training settings out of cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		DatasetPath:     cfg.DatasetPath,
		StepsPerEpoch:   cfg.TrainStepsPerEpoch,
		ValidationSteps: cfg.ValidationSteps,
		BatchSize:       cfg.TrainBatchSize,
		LearningRate:    cfg.LearningRate,
	}
}

func (o Options) withDefaults() Options {
	if o.StepsPerEpoch <= 0 {
		o.StepsPerEpoch = DefaultStepsPerEpoch
	}
	if o.ValidationSteps <= 0 {
		o.ValidationSteps = DefaultValidationSteps
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.LearningRate <= 0 {
		o.LearningRate = nn.DefaultLearningRate
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	return o
}

// ProgressFunc is called after every epoch with its 1-based number.
type ProgressFunc func(epoch int, metrics dto.EpochMetrics)

// Trainer fits a network with RMSprop on binary cross-entropy.
type Trainer struct {
	Net             *nn.Sequential
	Optimizer       *nn.RMSprop
	Train           *Generator
	Validation      *Generator
	StepsPerEpoch   int
	ValidationSteps int

	log *slog.Logger
}

// Fit runs epochs and returns one EpochMetrics per epoch in emission order.
// Cancelling ctx stops training at the next sample.
func (t *Trainer) Fit(ctx context.Context, epochs int, progress ProgressFunc) ([]dto.EpochMetrics, error) {
	if epochs < 1 {
		return nil, fmt.Errorf("epochs must be positive, got %d", epochs)
	}
	log := t.log
	if log == nil {
		log = logging.ForComponent("training")
	}

	history := make([]dto.EpochMetrics, 0, epochs)
	for epoch := 1; epoch <= epochs; epoch++ {
		start := time.Now()

		var m dto.EpochMetrics
		for step := 0; step < t.StepsPerEpoch; step++ {
			xs, ys, err := t.Train.Next(ctx)
			if err != nil {
				return nil, fmt.Errorf("epoch %d step %d: %w", epoch, step+1, err)
			}
			res, err := t.Net.TrainBatch(ctx, xs, ys, t.Optimizer)
			if err != nil {
				return nil, fmt.Errorf("epoch %d step %d: %w", epoch, step+1, err)
			}
			m.Loss += res.Loss
			m.Accuracy += res.Accuracy
		}
		m.Loss /= float64(t.StepsPerEpoch)
		m.Accuracy /= float64(t.StepsPerEpoch)

		for step := 0; step < t.ValidationSteps; step++ {
			xs, ys, err := t.Validation.Next(ctx)
			if err != nil {
				return nil, fmt.Errorf("epoch %d validation step %d: %w", epoch, step+1, err)
			}
			res, err := t.Net.EvaluateBatch(ctx, xs, ys)
			if err != nil {
				return nil, fmt.Errorf("epoch %d validation step %d: %w", epoch, step+1, err)
			}
			m.ValLoss += res.Loss
			m.ValAccuracy += res.Accuracy
		}
		m.ValLoss /= float64(t.ValidationSteps)
		m.ValAccuracy /= float64(t.ValidationSteps)

		history = append(history, m)
		log.Info("training: epoch finished",
			"epoch", epoch, "of", epochs,
			"loss", m.Loss, "accuracy", m.Accuracy,
			"val_loss", m.ValLoss, "val_accuracy", m.ValAccuracy,
			"duration", time.Since(start))
		if progress != nil {
			progress(epoch, m)
		}
	}
	return history, nil
}

// Train builds the CNN for hp, fits it on the dataset and returns the trained
// network with its per-epoch history.
func Train(ctx context.Context, opts Options, hp dto.HyperParams, progress ProgressFunc) (*nn.Sequential, []dto.EpochMetrics, error) {
	if err := hp.Validate(); err != nil {
		return nil, nil, err
	}
	opts = opts.withDefaults()
	log := logging.ForComponent("training")

	dataset, err := LoadDataset(opts.DatasetPath)
	if err != nil {
		return nil, nil, err
	}
	trainCats, trainDogs := ClassCounts(dataset.Train)
	valCats, valDogs := ClassCounts(dataset.Validation)
	log.Info("training: dataset loaded", "path", opts.DatasetPath,
		"train_cats", trainCats, "train_dogs", trainDogs,
		"validation_cats", valCats, "validation_dogs", valDogs)

	net, err := classifier.BuildCNN(hp, opts.Seed)
	if err != nil {
		return nil, nil, err
	}
	net.Workers = opts.Workers

	trainGen, err := NewGenerator(dataset.Train, opts.BatchSize, DefaultAugmenter(), true, opts.Seed+1)
	if err != nil {
		return nil, nil, err
	}
	valGen, err := NewGenerator(dataset.Validation, opts.BatchSize, nil, true, opts.Seed+2)
	if err != nil {
		return nil, nil, err
	}

	trainer := &Trainer{
		Net:             net,
		Optimizer:       nn.NewRMSprop(opts.LearningRate),
		Train:           trainGen,
		Validation:      valGen,
		StepsPerEpoch:   opts.StepsPerEpoch,
		ValidationSteps: opts.ValidationSteps,
		log:             log,
	}
	log.Info("training: starting", "hyper_params", hp, "params", net.ParamCount(),
		"steps_per_epoch", opts.StepsPerEpoch, "validation_steps", opts.ValidationSteps, "batch_size", opts.BatchSize)

	history, err := trainer.Fit(ctx, hp.Epochs, progress)
	if err != nil {
		return nil, nil, err
	}
	return net, history, nil
}
