package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/logging"
	"github.com/camden-git/petclassifier/media"
	"github.com/camden-git/petclassifier/models"
	"github.com/camden-git/petclassifier/repository"
)

// ModelForgetter drops cached predictors for weights that no longer exist.
type ModelForgetter interface {
	Forget(weightsPath string)
}

// UserService manages accounts and their profile pictures.
type UserService struct {
	users     repository.UserRepository
	store     media.Store
	processor *media.Processor
	forgetter ModelForgetter
	log       *slog.Logger
}

// NewUserService creates a UserService. forgetter may be nil.
func NewUserService(users repository.UserRepository, store media.Store, forgetter ModelForgetter) *UserService {
	return &UserService{
		users:     users,
		store:     store,
		processor: media.NewProcessor(store),
		forgetter: forgetter,
		log:       logging.ForComponent("services.user"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userToDTO(u *models.User) dto.UserDTO {
	return dto.UserDTO{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Avatar:     u.Avatar,
		DateJoined: u.DateJoined,
	}
}

// Register creates an active account.
func (s *UserService) Register(ctx context.Context, in dto.RegisterUserDTO) (dto.UserDTO, error) {
	in.Email = normalizeEmail(in.Email)
	if err := dto.Validate(in); err != nil {
		return dto.UserDTO{}, err
	}

	user := &models.User{
		Email:      in.Email,
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		IsActive:   true,
		DateJoined: time.Now().UTC(),
	}
	if err := user.SetPassword(in.Password); err != nil {
		return dto.UserDTO{}, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return dto.UserDTO{}, err
	}

	s.log.Info("services.user: registered user", "user_id", user.ID)
	return userToDTO(user), nil
}

// Authenticate checks an email/password pair. Every failure is reported as
// apperrors.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (dto.UserDTO, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrInstanceNotFound) {
			return dto.UserDTO{}, apperrors.ErrInvalidCredentials
		}
		return dto.UserDTO{}, err
	}
	if !user.IsActive || !user.CheckPassword(password) {
		return dto.UserDTO{}, apperrors.ErrInvalidCredentials
	}
	return userToDTO(user), nil
}

func (s *UserService) GetProfile(ctx context.Context, id uint) (dto.UserDTO, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return dto.UserDTO{}, err
	}
	if !user.IsActive {
		return dto.UserDTO{}, apperrors.NewNotFoundError("user", id)
	}
	return userToDTO(user), nil
}

// UpdateProfile replaces the names and, when in.Avatar is set, stores a
// 200x200 copy of the new picture. The previous avatar file is removed only
// after the record points at the new one and no other user shares it.
func (s *UserService) UpdateProfile(ctx context.Context, in dto.UpdateUserDTO) (dto.UserDTO, error) {
	if err := dto.Validate(in); err != nil {
		return dto.UserDTO{}, err
	}

	current, err := s.GetProfile(ctx, in.ID)
	if err != nil {
		return dto.UserDTO{}, err
	}

	var newAvatar *string
	if in.Avatar != nil {
		if err := dto.Validate(*in.Avatar); err != nil {
			return dto.UserDTO{}, err
		}
		img, err := s.processor.Decode(in.Avatar.Content)
		if err != nil {
			return dto.UserDTO{}, err
		}
		path, err := s.processor.SaveAvatar(img, in.Avatar.Filename)
		if err != nil {
			return dto.UserDTO{}, err
		}
		newAvatar = &path
	}

	updated, err := s.users.UpdateProfile(ctx, in.ID, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), newAvatar)
	if err != nil {
		if newAvatar != nil && (current.Avatar == nil || *current.Avatar != *newAvatar) {
			s.removeUnusedAvatar(ctx, *newAvatar)
		}
		return dto.UserDTO{}, err
	}

	if newAvatar != nil && current.Avatar != nil && *current.Avatar != *newAvatar {
		s.removeUnusedAvatar(ctx, *current.Avatar)
	}

	s.log.Info("services.user: updated profile", "user_id", in.ID, "avatar_changed", newAvatar != nil)
	return userToDTO(updated), nil
}

// DeleteProfile removes the user with everything they own, then cleans up
// their stored files. File removal failures are logged, not returned.
func (s *UserService) DeleteProfile(ctx context.Context, id uint) error {
	assets, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}

	if assets.Avatar != nil {
		s.removeFile(*assets.Avatar, "avatar")
	}
	for _, p := range assets.ImagePaths {
		s.removeFile(p, "image")
	}
	for _, p := range assets.WeightsPaths {
		if s.forgetter != nil {
			s.forgetter.Forget(p)
		}
		s.removeFile(p, "weights")
	}

	s.log.Info("services.user: deleted user", "user_id", id,
		"images", len(assets.ImagePaths), "models", len(assets.WeightsPaths))
	return nil
}

// removeUnusedAvatar deletes an avatar file unless some user still points at it.
func (s *UserService) removeUnusedAvatar(ctx context.Context, path string) {
	users, err := s.users.CountAvatarUsers(ctx, path)
	if err != nil {
		s.log.Warn("services.user: failed to check avatar usage, keeping file", "path", path, "error", err)
		return
	}
	if users == 0 {
		s.removeFile(path, "avatar")
	}
}

func (s *UserService) removeFile(path, kind string) {
	if path == "" {
		return
	}
	if err := s.store.Delete(path); err != nil {
		s.log.Warn("services.user: failed to remove file", "kind", kind, "path", path, "error", err)
	}
}
