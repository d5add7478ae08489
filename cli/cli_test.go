package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/classifier"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/media"
	"github.com/camden-git/petclassifier/repository"
	"github.com/camden-git/petclassifier/services"
	"github.com/camden-git/petclassifier/testutil"
	"github.com/camden-git/petclassifier/training"
	"github.com/camden-git/petclassifier/workers"
)

type constantPredictor struct{ score float32 }

func (p constantPredictor) Predict(ctx context.Context, tensor []float32) (float32, error) {
	return p.score, nil
}

func (constantPredictor) Close() error { return nil }

type constantLoader struct{ score float32 }

func (l constantLoader) Load(ctx context.Context, variant classifier.Variant, model *dto.ModelDTO) (classifier.Predictor, error) {
	return constantPredictor{score: l.score}, nil
}

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := media.NewLocalStorage(filepath.Join(dir, "media"), map[media.AssetType]string{
		media.AssetTypeImage:   "images",
		media.AssetTypeAvatar:  "avatars",
		media.AssetTypeWeights: "weights",
	})
	require.NoError(t, err)

	dataset := filepath.Join(dir, "dataset")
	testutil.WriteDataset(t, dataset, 2)

	mem := repository.NewMemoryStore()
	opts := training.Options{DatasetPath: dataset, StepsPerEpoch: 1, ValidationSteps: 1, BatchSize: 2, Seed: 3}
	classification := services.NewClassificationService(mem.Images(), mem.Models(), store, constantLoader{score: 0.9}, opts)
	queue := workers.NewTrainingQueue(mem.Jobs(), classification, 4)
	t.Cleanup(queue.Stop)

	return &App{
		Users:          services.NewUserService(mem.Users(), store, nil),
		Classification: classification,
		Queue:          queue,
		NumWorkers:     1,
	}, dir
}

func run(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := RootCommand(app)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUserCommands(t *testing.T) {
	app, _ := newTestApp(t)

	out, err := run(t, app, "user", "register", "--email", "Cat@Example.com", "--password", "whiskers123", "--first", "Tom")
	require.NoError(t, err)
	var u dto.UserDTO
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	assert.Equal(t, "cat@example.com", u.Email)

	_, err = run(t, app, "user", "login", "--email", "cat@example.com", "--password", "whiskers123")
	require.NoError(t, err)

	_, err = run(t, app, "user", "login", "--email", "cat@example.com", "--password", "nope")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	out, err = run(t, app, "user", "update", "--id", "1", "--first", "Thomas")
	require.NoError(t, err)
	assert.Contains(t, out, `"first_name": "Thomas"`)

	out, err = run(t, app, "user", "delete", "--id", "1")
	require.NoError(t, err)
	assert.Equal(t, "user 1 deleted\n", out)

	_, err = run(t, app, "user", "profile", "--id", "1")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(ExitMessage(err), "not found"))
}

func TestUserUpdateAvatarOnlyKeepsNames(t *testing.T) {
	app, dir := newTestApp(t)
	path := filepath.Join(dir, "tom.png")
	require.NoError(t, os.WriteFile(path, testutil.PNG(t, 40, 40, color.White), 0o644))

	_, err := run(t, app, "user", "register", "--email", "tom@example.com", "--password", "whiskers123", "--first", "Tom", "--last", "Cat")
	require.NoError(t, err)

	out, err := run(t, app, "user", "update", "--id", "1", "--avatar", path)
	require.NoError(t, err)
	var u dto.UserDTO
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	assert.Equal(t, "Tom", u.FirstName)
	assert.Equal(t, "Cat", u.LastName)
	require.NotNil(t, u.Avatar)
	assert.Equal(t, "avatars/tom.png", *u.Avatar)

	out, err = run(t, app, "user", "update", "--id", "1", "--last", "")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	assert.Equal(t, "Tom", u.FirstName)
	assert.Empty(t, u.LastName)

	_, err = run(t, app, "user", "update", "--id", "9", "--avatar", path)
	assert.ErrorIs(t, err, apperrors.ErrInstanceNotFound)
}

func TestClassifyCommand(t *testing.T) {
	app, dir := newTestApp(t)
	path := filepath.Join(dir, "rex.png")
	require.NoError(t, os.WriteFile(path, testutil.PNG(t, 40, 30, color.White), 0o644))

	out, err := run(t, app, "classify", "--user", "1", "--title", "Rex", path)
	require.NoError(t, err)
	assert.Contains(t, out, "The image contains a dog.")
	assert.Contains(t, out, "image=images/rex.png")

	_, err = run(t, app, "classify", "--user", "1", "--title", "Rex", "--variant", "resnet", path)
	assert.ErrorIs(t, err, apperrors.ErrUnknownModelVariant)
}

func TestAsyncTrainingThroughWorker(t *testing.T) {
	app, _ := newTestApp(t)

	out, err := run(t, app, "train", "--user", "2", "--f1", "1", "--f2", "1", "--f3", "1", "--dense", "2", "--epochs", "2", "--async")
	require.NoError(t, err)
	match := regexp.MustCompile(`training job (\S+) queued`).FindStringSubmatch(out)
	require.Len(t, match, 2)
	jobID := match[1]

	out, err = run(t, app, "worker")
	require.NoError(t, err)
	assert.Equal(t, "processed 1 training job(s)\n", out)

	out, err = run(t, app, "jobs", "status", "--user", "2", "--id", jobID)
	require.NoError(t, err)
	var job dto.TrainingJobDTO
	require.NoError(t, json.Unmarshal([]byte(out), &job))
	assert.Equal(t, "done", job.Status)
	require.NotNil(t, job.ModelID)

	_, err = run(t, app, "jobs", "status", "--user", "3", "--id", jobID)
	assert.ErrorIs(t, err, apperrors.ErrInstanceNotFound)

	out, err = run(t, app, "models", "list", "--user", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "1/1/1")

	out, err = run(t, app, "models", "show", "--user", "2", "--id", "1")
	require.NoError(t, err)
	var model dto.ModelDTO
	require.NoError(t, json.Unmarshal([]byte(out), &model))
	assert.Len(t, model.History, 2)
}

// unreachableJobs fails every write to the job table.
type unreachableJobs struct {
	*repository.MemoryTrainingJobRepository
}

func (unreachableJobs) MarkProcessing(ctx context.Context, jobID string) error {
	return errors.New("database is locked")
}

func (unreachableJobs) SetResult(ctx context.Context, jobID string, modelID *uint, taskErr error) error {
	return errors.New("database is locked")
}

func TestWorkerGivesUpOnJobsThatCannotStart(t *testing.T) {
	app, _ := newTestApp(t)
	jobs := repository.NewMemoryStore().Jobs()
	_, err := jobs.Create(context.Background(), 1, dto.HyperParams{Filters1Layer: 1, Filters2Layer: 1, Filters3Layer: 1, DenseNeurons: 1, Epochs: 1})
	require.NoError(t, err)
	app.Queue = workers.NewTrainingQueue(unreachableJobs{jobs}, app.Classification, 4)
	t.Cleanup(app.Queue.Stop)

	_, err = run(t, app, "worker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 pending training job(s) could not be started")
}

func TestSyncTrainingPrintsEpochs(t *testing.T) {
	app, _ := newTestApp(t)

	out, err := run(t, app, "train", "--user", "4", "--f1", "1", "--f2", "1", "--f3", "1", "--dense", "1", "--epochs", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "epoch 1/2:")
	assert.Contains(t, out, "epoch 2/2:")
	assert.Regexp(t, `model \d+ saved to weights/custom_model_weights\w{10}\.bin`, out)

	_, err = run(t, app, "train", "--user", "4", "--epochs", "0")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestExitMessage(t *testing.T) {
	assert.Equal(t, "interrupted", ExitMessage(context.Canceled))
	assert.Contains(t, ExitMessage(apperrors.NewValidationError("Title", "required", "")), "Title failed 'required'")
	assert.Equal(t, "the uploaded file is not a readable image", ExitMessage(apperrors.NewImageDecodeError(assert.AnError)))
}
