package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/auth"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

// AuthService registers users and issues their JWTs.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ TokenService (JWT), PasswordService (bcrypt)
//
// Email+password and GitHub sign-in both end in the same AuthResult.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

var errBadCredentials = apperror.Unauthorized("Invalid email or password")

// Register creates an email+password account. A taken email is a 409.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name, err := requireText("name", "Name", name, 100)
	if err != nil {
		return nil, err
	}
	email, err = normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < auth.MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Password is too long")
	}

	user := &model.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Login checks email+password. Unknown emails and wrong passwords produce the
// same 401 so accounts cannot be enumerated.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "Email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	return s.issue(user)
}

// LoginOrRegisterGitHub upserts the GitHub account and issues a token. A
// GitHub user whose verified email already has an account is linked to it.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}
	email, err := normalizeEmail(gh.Email)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		GitHubID:  gh.ID,
		Name:      gh.DisplayName(),
		Email:     email,
		AvatarURL: gh.AvatarURL,
	}
	if err := s.users.UpsertGitHubUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", gh.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("user_id", user.ID),
		slog.String("login", gh.Login),
	)
	return s.issue(user)
}

// Me returns the caller's own record.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperror.Unauthorized("Unauthorized")
	}
	return s.users.GetUserByID(ctx, userID)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed("email", "Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "Email is invalid")
	}
	return email, nil
}
