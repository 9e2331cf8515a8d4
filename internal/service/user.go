package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

// UserService serves profile reads and edits.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// ProfileUpdate holds the editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "User ID is required")
	}
	return s.users.GetUserByID(ctx, id)
}

// UpdateProfile edits the caller's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name, err := requireText("name", "Name", *in.Name, 100)
		if err != nil {
			return nil, err
		}
		user.Name = name
	}
	if in.AvatarURL != nil {
		avatar := strings.TrimSpace(*in.AvatarURL)
		if avatar != "" && !isWebURL(avatar) && !strings.HasPrefix(avatar, "/uploads/") {
			return nil, apperror.ValidationFailed("avatarUrl", "Avatar must be an http(s) URL")
		}
		user.AvatarURL = avatar
	}

	if err := s.users.UpdateUserProfile(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", slog.String("user_id", user.ID))
	return user, nil
}

// Analytics returns the caller's counters.
func (s *UserService) Analytics(ctx context.Context, userID string) (model.Analytics, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return model.Analytics{}, err
	}
	return user.Analytics, nil
}

// isWebURL reports whether s is an absolute http or https URL.
func isWebURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
