package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/models"
)

// MemoryStore backs the in-memory repositories. One store shared by several
// repositories gives them a consistent view, including cascading deletes.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint

	users  map[uint]*models.User
	images map[uint]dto.ImageDTO
	models map[uint]dto.ModelDTO
	jobs   map[string]dto.TrainingJobDTO
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[uint]*models.User),
		images: make(map[uint]dto.ImageDTO),
		models: make(map[uint]dto.ModelDTO),
		jobs:   make(map[string]dto.TrainingJobDTO),
	}
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

// Images returns an ImageRepository over s.
func (s *MemoryStore) Images() *MemoryImageRepository { return &MemoryImageRepository{s: s} }

// Models returns a ClassificationModelRepository over s.
func (s *MemoryStore) Models() *MemoryModelRepository { return &MemoryModelRepository{s: s} }

// Users returns a UserRepository over s.
func (s *MemoryStore) Users() *MemoryUserRepository { return &MemoryUserRepository{s: s} }

// Jobs returns a TrainingJobRepository over s.
func (s *MemoryStore) Jobs() *MemoryTrainingJobRepository { return &MemoryTrainingJobRepository{s: s} }

type MemoryImageRepository struct{ s *MemoryStore }

func (r *MemoryImageRepository) Save(_ context.Context, userID uint, title, imagePath string) (dto.ImageDTO, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	img := dto.ImageDTO{ID: r.s.id(), UserID: userID, Title: title, Image: imagePath, CreatedAt: time.Now()}
	r.s.images[img.ID] = img
	return img, nil
}

func (r *MemoryImageRepository) ListByUser(_ context.Context, userID uint) ([]dto.ImageDTO, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []dto.ImageDTO{}
	for _, img := range r.s.images {
		if img.UserID == userID {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type MemoryModelRepository struct{ s *MemoryStore }

func (r *MemoryModelRepository) Create(_ context.Context, userID uint, hp dto.HyperParams, weightsPath string, history []dto.EpochMetrics) (dto.ModelDTO, error) {
	if len(history) == 0 {
		return dto.ModelDTO{}, fmt.Errorf("refusing to create model for user %d without training history", userID)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m := dto.ModelDTO{
		ID:          r.s.id(),
		UserID:      userID,
		HyperParams: hp,
		WeightsPath: weightsPath,
		CreatedAt:   time.Now(),
		History:     make([]dto.HistoryEntryDTO, len(history)),
	}
	for i, h := range history {
		m.History[i] = dto.HistoryEntryDTO{Epoch: i + 1, EpochMetrics: h}
	}
	r.s.models[m.ID] = m
	return cloneModel(m), nil
}

func (r *MemoryModelRepository) Get(_ context.Context, userID, modelID uint) (dto.ModelDTO, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.models[modelID]
	if !ok || m.UserID != userID {
		return dto.ModelDTO{}, apperrors.NewNotFoundError("classification model", modelID)
	}
	return cloneModel(m), nil
}

func (r *MemoryModelRepository) List(_ context.Context, userID uint) ([]dto.ModelSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []dto.ModelSummary{}
	for _, m := range r.s.models {
		if m.UserID != userID {
			continue
		}
		sum := dto.ModelSummary{
			ID:          m.ID,
			UserID:      m.UserID,
			HyperParams: m.HyperParams,
			WeightsPath: m.WeightsPath,
			CreatedAt:   m.CreatedAt,
			EpochCount:  len(m.History),
		}
		if n := len(m.History); n > 0 {
			acc, val := m.History[n-1].Accuracy, m.History[n-1].ValAccuracy
			sum.FinalAccuracy, sum.FinalValAccuracy = &acc, &val
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneModel(m dto.ModelDTO) dto.ModelDTO {
	m.History = append([]dto.HistoryEntryDTO(nil), m.History...)
	return m
}

type MemoryUserRepository struct{ s *MemoryStore }

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("%w: %s", apperrors.ErrEmailTaken, user.Email)
		}
	}
	user.ID = r.s.id()
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}
	stored := *user
	r.s.users[user.ID] = &stored
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("user", id)
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFoundError("user", email)
}

func (r *MemoryUserRepository) UpdateProfile(_ context.Context, id uint, firstName, lastName string, avatar *string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("user", id)
	}
	u.FirstName = firstName
	u.LastName = lastName
	if avatar != nil {
		a := *avatar
		u.Avatar = &a
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) CountAvatarUsers(_ context.Context, avatarPath string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, u := range r.s.users {
		if u.Avatar != nil && *u.Avatar == avatarPath {
			n++
		}
	}
	return n, nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id uint) (DeletedUserAssets, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return DeletedUserAssets{}, apperrors.NewNotFoundError("user", id)
	}

	assets := DeletedUserAssets{Avatar: u.Avatar}
	for otherID, other := range r.s.users {
		if otherID != id && u.Avatar != nil && other.Avatar != nil && *other.Avatar == *u.Avatar {
			assets.Avatar = nil
		}
	}

	shared := make(map[string]bool)
	for _, img := range r.s.images {
		if img.UserID != id {
			shared[img.Image] = true
		}
	}
	seen := make(map[string]bool)
	for imgID, img := range r.s.images {
		if img.UserID != id {
			continue
		}
		if !shared[img.Image] && !seen[img.Image] {
			seen[img.Image] = true
			assets.ImagePaths = append(assets.ImagePaths, img.Image)
		}
		delete(r.s.images, imgID)
	}
	for modelID, m := range r.s.models {
		if m.UserID == id {
			assets.WeightsPaths = append(assets.WeightsPaths, m.WeightsPath)
			delete(r.s.models, modelID)
		}
	}
	for jobID, j := range r.s.jobs {
		if j.UserID == id {
			delete(r.s.jobs, jobID)
		}
	}
	delete(r.s.users, id)
	sort.Strings(assets.ImagePaths)
	sort.Strings(assets.WeightsPaths)
	return assets, nil
}

type MemoryTrainingJobRepository struct{ s *MemoryStore }

func (r *MemoryTrainingJobRepository) Create(_ context.Context, userID uint, hp dto.HyperParams) (dto.TrainingJobDTO, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job := dto.TrainingJobDTO{
		ID:          uuid.NewString(),
		UserID:      userID,
		HyperParams: hp,
		Status:      models.JobStatusPending,
		CreatedAt:   time.Now(),
	}
	r.s.jobs[job.ID] = job
	return job, nil
}

func (r *MemoryTrainingJobRepository) Get(_ context.Context, userID uint, jobID string) (dto.TrainingJobDTO, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.jobs[jobID]
	if !ok || job.UserID != userID {
		return dto.TrainingJobDTO{}, apperrors.NewNotFoundError("training job", jobID)
	}
	return job, nil
}

func (r *MemoryTrainingJobRepository) GetByID(_ context.Context, jobID string) (dto.TrainingJobDTO, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.jobs[jobID]
	if !ok {
		return dto.TrainingJobDTO{}, apperrors.NewNotFoundError("training job", jobID)
	}
	return job, nil
}

func (r *MemoryTrainingJobRepository) MarkProcessing(_ context.Context, jobID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.jobs[jobID]
	if !ok {
		return apperrors.NewNotFoundError("training job", jobID)
	}
	if job.Status != models.JobStatusPending {
		return apperrors.NewJobClaimedError(jobID)
	}
	now := time.Now()
	job.Status = models.JobStatusProcessing
	job.Error = nil
	job.StartedAt = &now
	r.s.jobs[jobID] = job
	return nil
}

func (r *MemoryTrainingJobRepository) SetResult(_ context.Context, jobID string, modelID *uint, taskErr error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.jobs[jobID]
	if !ok {
		return apperrors.NewNotFoundError("training job", jobID)
	}
	now := time.Now()
	job.FinishedAt = &now
	job.ModelID = modelID
	job.Status = models.JobStatusDone
	job.Error = nil
	if taskErr != nil {
		msg := taskErr.Error()
		job.Status = models.JobStatusError
		job.Error = &msg
	}
	r.s.jobs[jobID] = job
	return nil
}

func (r *MemoryTrainingJobRepository) ListPending(_ context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var pending []dto.TrainingJobDTO
	for _, j := range r.s.jobs {
		if j.Status == models.JobStatusPending {
			pending = append(pending, j)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	ids := make([]string, len(pending))
	for i, j := range pending {
		ids[i] = j.ID
	}
	return ids, nil
}

var (
	_ ImageRepository               = (*MemoryImageRepository)(nil)
	_ ClassificationModelRepository = (*MemoryModelRepository)(nil)
	_ UserRepository                = (*MemoryUserRepository)(nil)
	_ TrainingJobRepository         = (*MemoryTrainingJobRepository)(nil)

	_ ImageRepository               = (*GormImageRepository)(nil)
	_ ClassificationModelRepository = (*GormModelRepository)(nil)
	_ UserRepository                = (*GormUserRepository)(nil)
	_ TrainingJobRepository         = (*GormTrainingJobRepository)(nil)
)
