package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/auth"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

// failingUserRepo simulates a database failure on GitHub upserts.
type failingUserRepo struct {
	repository.UserRepository
}

func (failingUserRepo) UpsertGitHubUser(context.Context, *model.User) error {
	return errors.New("database is locked")
}

func newTestAuthService(t *testing.T, users repository.UserRepository) (*AuthService, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-key-for-unit-tests", time.Hour)
	mustNoErr(t, err)
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
	return NewAuthService(users, tokens, passwords, newTestEnv(t).logger), tokens
}

// =========================================================================
// REGISTER / LOGIN
// =========================================================================

func TestRegister_IssuesTokenWithIdentityClaims(t *testing.T) {
	env := newTestEnv(t)
	svc, tokens := newTestAuthService(t, env.db)

	res, err := svc.Register(context.Background(), "Ada", "Ada@Example.com", "secret1")
	mustNoErr(t, err)

	if res.User.Email != "ada@example.com" {
		t.Errorf("email = %q, want lowercased", res.User.Email)
	}
	if res.User.PasswordHash == "" || res.User.PasswordHash == "secret1" {
		t.Errorf("password must be stored hashed")
	}

	id, err := tokens.Validate(res.Token)
	mustNoErr(t, err)
	if id.UserID != res.User.ID || id.Email != "ada@example.com" || id.Name != "Ada" {
		t.Errorf("claims = %+v", id)
	}
}

func TestRegister_DuplicateEmailIsConflict(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newTestAuthService(t, env.db)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ada", "ada@example.com", "secret1")
	mustNoErr(t, err)
	_, err = svc.Register(ctx, "Other", "ADA@example.com", "secret2")
	assertKind(t, err, apperror.ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newTestAuthService(t, env.db)

	tests := []struct {
		name, userName, email, password string
	}{
		{"missing name", " ", "a@example.com", "secret1"},
		{"bad email", "A", "not-an-email", "secret1"},
		{"short password", "A", "a@example.com", "123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.userName, tt.email, tt.password)
			assertKind(t, err, errValidation)
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newTestAuthService(t, env.db)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Ada", "ada@example.com", "secret1")
	mustNoErr(t, err)

	res, err := svc.Login(ctx, " ADA@example.com ", "secret1")
	mustNoErr(t, err)
	if res.User.ID != reg.User.ID {
		t.Errorf("logged in as %s, want %s", res.User.ID, reg.User.ID)
	}

	_, err = svc.Login(ctx, "ada@example.com", "wrong")
	assertKind(t, err, apperror.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assertKind(t, err, apperror.ErrUnauthorized)
}

// =========================================================================
// GITHUB
// =========================================================================

func TestLoginOrRegisterGitHub_NewUser(t *testing.T) {
	env := newTestEnv(t)
	svc, tokens := newTestAuthService(t, env.db)

	res, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 42, Login: "octocat", Email: "octo@example.com", AvatarURL: "https://avatars.example.com/42",
	})
	mustNoErr(t, err)

	if res.User.Name != "octocat" {
		t.Errorf("name = %q, want login fallback", res.User.Name)
	}
	if res.User.GitHubID != 42 {
		t.Errorf("github id = %d", res.User.GitHubID)
	}
	id, err := tokens.Validate(res.Token)
	mustNoErr(t, err)
	if id.UserID != res.User.ID {
		t.Errorf("token subject = %s, want %s", id.UserID, res.User.ID)
	}
}

func TestLoginOrRegisterGitHub_LinksExistingEmailAccount(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newTestAuthService(t, env.db)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Ada", "ada@example.com", "secret1")
	mustNoErr(t, err)

	res, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "ada", Email: "ada@example.com"})
	mustNoErr(t, err)
	if res.User.ID != reg.User.ID {
		t.Errorf("GitHub sign-in created a second account")
	}

	// Password login still works on the linked account.
	_, err = svc.Login(ctx, "ada@example.com", "secret1")
	mustNoErr(t, err)
}

func TestLoginOrRegisterGitHub_NilGitHubUser(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newTestAuthService(t, env.db)
	if _, err := svc.LoginOrRegisterGitHub(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil GitHub user")
	}
}

func TestLoginOrRegisterGitHub_RepositoryError(t *testing.T) {
	svc, _ := newTestAuthService(t, failingUserRepo{})
	_, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "x", Email: "x@example.com"})
	if err == nil {
		t.Fatal("expected repository error to propagate")
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newTestAuthService(t, env.db)
	ctx := context.Background()

	u := env.user(t, "ada")
	got, err := svc.Me(ctx, u.ID)
	mustNoErr(t, err)
	if got.Email != u.Email {
		t.Errorf("Me() email = %q", got.Email)
	}

	_, err = svc.Me(ctx, "")
	assertKind(t, err, apperror.ErrUnauthorized)

	_, err = svc.Me(ctx, "missing")
	assertKind(t, err, errNotFound)
}

// =========================================================================
// USERS
// =========================================================================

func TestUserService_UpdateProfileAndAnalytics(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUserService(env.db, env.logger)
	ctx := context.Background()
	u := env.user(t, "ada")

	updated, err := svc.UpdateProfile(ctx, u.ID, ProfileUpdate{
		Name:      ptr("  Ada L. "),
		AvatarURL: ptr("https://img.example.com/a.png"),
	})
	mustNoErr(t, err)
	if updated.Name != "Ada L." || updated.AvatarURL != "https://img.example.com/a.png" {
		t.Errorf("profile = %+v", updated)
	}

	_, err = svc.UpdateProfile(ctx, u.ID, ProfileUpdate{AvatarURL: ptr("javascript:alert(1)")})
	assertKind(t, err, errValidation)

	mustNoErr(t, env.db.IncrementAnalytics(ctx, u.ID, model.StatContributions, 2))
	stats, err := svc.Analytics(ctx, u.ID)
	mustNoErr(t, err)
	if stats.Contributions != 2 {
		t.Errorf("contributions = %d, want 2", stats.Contributions)
	}
}
