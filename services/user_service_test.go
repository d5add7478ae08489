package services

import (
	"context"
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/classifier"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/media"
)

type recordingForgetter struct {
	forgotten []string
}

func (r *recordingForgetter) Forget(weightsPath string) {
	r.forgotten = append(r.forgotten, weightsPath)
}

func newUserService(t *testing.T) (*UserService, fixture, *recordingForgetter) {
	t.Helper()
	f := newFixture(t)
	forgetter := &recordingForgetter{}
	return NewUserService(f.mem.Users(), f.store, forgetter), f, forgetter
}

func register(t *testing.T, svc *UserService, email string) dto.UserDTO {
	t.Helper()
	u, err := svc.Register(context.Background(), dto.RegisterUserDTO{
		Email: email, Password: "hunter2hunter2", FirstName: " Ada ", LastName: "Lovelace",
	})
	require.NoError(t, err)
	return u
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _, _ := newUserService(t)
	ctx := context.Background()

	u := register(t, svc, "  Ada@Example.COM ")
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "Ada", u.FirstName)
	assert.Nil(t, u.Avatar)
	assert.False(t, u.DateJoined.IsZero())

	got, err := svc.Authenticate(ctx, "ADA@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Register(ctx, dto.RegisterUserDTO{Email: "ada@EXAMPLE.com", Password: "another-password"})
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newUserService(t)

	tests := map[string]dto.RegisterUserDTO{
		"bad email":      {Email: "not-an-email", Password: "longenough"},
		"short password": {Email: "a@b.co", Password: "short"},
		"long name":      {Email: "a@b.co", Password: "longenough", FirstName: strings.Repeat("x", 151)},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestGetProfileMissing(t *testing.T) {
	svc, _, _ := newUserService(t)
	_, err := svc.GetProfile(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrInstanceNotFound)
}

func TestUpdateProfileAvatar(t *testing.T) {
	svc, f, _ := newUserService(t)
	ctx := context.Background()
	u := register(t, svc, "grace@example.com")

	withAvatar := upload(t, "me.webp", 640, 480)
	updated, err := svc.UpdateProfile(ctx, dto.UpdateUserDTO{ID: u.ID, FirstName: "Grace", LastName: "Hopper", Avatar: &withAvatar})
	require.NoError(t, err)
	require.NotNil(t, updated.Avatar)
	assert.Equal(t, "avatars/me.png", *updated.Avatar)

	rc, _, err := f.store.Get(*updated.Avatar)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, media.AvatarSize, cfg.Width)
	assert.Equal(t, media.AvatarSize, cfg.Height)

	// name-only update keeps the avatar
	renamed, err := svc.UpdateProfile(ctx, dto.UpdateUserDTO{ID: u.ID, FirstName: "Amazing", LastName: "Grace"})
	require.NoError(t, err)
	assert.Equal(t, "Amazing", renamed.FirstName)
	require.NotNil(t, renamed.Avatar)
	assert.Equal(t, "avatars/me.png", *renamed.Avatar)

	replacement := upload(t, "portrait.jpg", 100, 300)
	replaced, err := svc.UpdateProfile(ctx, dto.UpdateUserDTO{ID: u.ID, FirstName: "Grace", Avatar: &replacement})
	require.NoError(t, err)
	assert.Equal(t, "avatars/portrait.jpg", *replaced.Avatar)
	assert.Equal(t, []string{"portrait.jpg"}, f.files(t, "avatars"))
}

func TestUpdateProfileRejectsBadAvatar(t *testing.T) {
	svc, f, _ := newUserService(t)
	u := register(t, svc, "linus@example.com")

	bad := dto.Upload{Filename: "me.png", Content: strings.NewReader("nope")}
	_, err := svc.UpdateProfile(context.Background(), dto.UpdateUserDTO{ID: u.ID, Avatar: &bad})
	assert.ErrorIs(t, err, apperrors.ErrImageDecode)
	assert.Empty(t, f.files(t, "avatars"))

	missing := upload(t, "me.png", 10, 10)
	_, err = svc.UpdateProfile(context.Background(), dto.UpdateUserDTO{ID: 404, Avatar: &missing})
	assert.ErrorIs(t, err, apperrors.ErrInstanceNotFound)
	assert.Empty(t, f.files(t, "avatars"))
}

func TestDeleteProfileRemovesFiles(t *testing.T) {
	svc, f, forgetter := newUserService(t)
	ctx := context.Background()
	u := register(t, svc, "alan@example.com")
	other := register(t, svc, "joan@example.com")

	avatar := upload(t, "alan.png", 30, 30)
	_, err := svc.UpdateProfile(ctx, dto.UpdateUserDTO{ID: u.ID, Avatar: &avatar})
	require.NoError(t, err)

	classification := f.classification(&fakeLoader{predictor: &fakePredictor{score: 0.9}})
	_, _, err = classification.Classify(ctx, dto.CreateImageDTO{UserID: u.ID, Title: "a", Image: upload(t, "a.png", 20, 20)}, classifier.ConvModel, nil)
	require.NoError(t, err)
	_, _, err = classification.Classify(ctx, dto.CreateImageDTO{UserID: other.ID, Title: "b", Image: upload(t, "b.png", 20, 20)}, classifier.ConvModel, nil)
	require.NoError(t, err)

	weights, err := f.store.Save(media.AssetTypeWeights, "", "custom_model_weightsAAAAAAAAAA.bin", strings.NewReader("w"))
	require.NoError(t, err)
	_, err = f.mem.Models().Create(ctx, u.ID, smallParams, weights, []dto.EpochMetrics{{Accuracy: 1}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProfile(ctx, u.ID))

	_, err = svc.GetProfile(ctx, u.ID)
	assert.ErrorIs(t, err, apperrors.ErrInstanceNotFound)
	assert.Empty(t, f.files(t, "avatars"))
	assert.Equal(t, []string{"b.png"}, f.files(t, "images"))
	assert.Empty(t, f.files(t, "weights"))
	assert.Equal(t, []string{weights}, forgetter.forgotten)

	assert.ErrorIs(t, svc.DeleteProfile(ctx, u.ID), apperrors.ErrInstanceNotFound)
}

func TestDeleteProfileKeepsFilesOtherUsersReference(t *testing.T) {
	svc, f, _ := newUserService(t)
	ctx := context.Background()
	tom := register(t, svc, "tom@example.com")
	jerry := register(t, svc, "jerry@example.com")

	classification := f.classification(&fakeLoader{predictor: &fakePredictor{score: 0.2}})
	for _, id := range []uint{tom.ID, jerry.ID} {
		_, _, err := classification.Classify(ctx, dto.CreateImageDTO{UserID: id, Title: "pet", Image: upload(t, "pet.png", 20, 20)}, classifier.ConvModel, nil)
		require.NoError(t, err)
	}
	for _, id := range []uint{tom.ID, jerry.ID} {
		avatar := upload(t, "me.png", 30, 30)
		_, err := svc.UpdateProfile(ctx, dto.UpdateUserDTO{ID: id, Avatar: &avatar})
		require.NoError(t, err)
	}

	// jerry moves to a new avatar while tom still shows me.png
	replacement := upload(t, "mouse.png", 30, 30)
	_, err := svc.UpdateProfile(ctx, dto.UpdateUserDTO{ID: jerry.ID, Avatar: &replacement})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"me.png", "mouse.png"}, f.files(t, "avatars"))

	require.NoError(t, svc.DeleteProfile(ctx, tom.ID))

	rc, _, err := f.store.Get("images/pet.png")
	require.NoError(t, err)
	rc.Close()
	listed, err := classification.ListImages(ctx, jerry.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "images/pet.png", listed[0].Image)
	assert.Equal(t, []string{"mouse.png"}, f.files(t, "avatars"))

	require.NoError(t, svc.DeleteProfile(ctx, jerry.ID))
	assert.Empty(t, f.files(t, "images"))
	assert.Empty(t, f.files(t, "avatars"))
}
