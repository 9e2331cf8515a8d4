package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
)

const userColumns = `id, name, email, password_hash, avatar_url, github_id,
	projects_created, tasks_completed, contributions, lifetime_solutions, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.AvatarURL, &githubID,
		&u.Analytics.ProjectsCreated, &u.Analytics.TasksCompleted,
		&u.Analytics.Contributions, &u.Analytics.LifetimeSolutions,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.GitHubID = githubID.Int64
	return &u, nil
}

func nullGitHubID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// CreateUser inserts a new user. Emails are unique case-insensitively; a
// duplicate returns apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := db.now()
	user.ID = xid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, avatar_url, github_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.AvatarURL,
		nullGitHubID(user.GitHubID), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("email", "Email already registered")
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by (case-insensitive) email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// UpsertGitHubUser links a GitHub identity to an account.
//
// Lookup order: github_id, then email (an existing password account gets the
// GitHub id attached), otherwise a new account is created. On return user
// holds the canonical record.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	existing, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, user.GitHubID))
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}
	if existing == nil && user.Email != "" {
		existing, err = db.GetUserByEmail(ctx, user.Email)
		if err != nil && !isNotFound(err) {
			return err
		}
	}

	if existing == nil {
		return db.CreateUser(ctx, user)
	}

	existing.GitHubID = user.GitHubID
	if user.AvatarURL != "" {
		existing.AvatarURL = user.AvatarURL
	}
	if existing.Name == "" {
		existing.Name = user.Name
	}
	existing.UpdatedAt = db.now()

	_, err = db.conn.ExecContext(ctx,
		`UPDATE users SET github_id = ?, avatar_url = ?, name = ?, updated_at = ? WHERE id = ?`,
		existing.GitHubID, existing.AvatarURL, existing.Name, existing.UpdatedAt, existing.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", existing.ID, err)
	}
	*user = *existing
	return nil
}

// UpdateUserProfile writes the editable profile fields (name, avatar).
func (db *DB) UpdateUserProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		user.Name, user.AvatarURL, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// IncrementAnalytics bumps one counter in place. No idempotency guard.
func (db *DB) IncrementAnalytics(ctx context.Context, userID string, field model.AnalyticsField, delta int) error {
	if !field.Valid() {
		return fmt.Errorf("sqlite: unknown analytics field %q", field)
	}
	// field is validated above, so interpolating the column name is safe
	res, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET %s = %s + ? WHERE id = ?`, field, field),
		delta, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing %s for %s: %w", field, userID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("user", userID)
	}
	return nil
}
