package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

const projectColumns = `id, name, description, visibility, password, chat_single_room, created_by, created_at, updated_at`

func scanProject(row rowScanner) (*model.Project, error) {
	var p model.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Visibility, &p.Password,
		&p.ChatSingleRoom, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Members = []model.Member{}
	return &p, nil
}

// CreateProject inserts the project and its initial member list in one
// transaction. Project names are globally unique.
func (db *DB) CreateProject(ctx context.Context, project *model.Project) error {
	now := db.now()
	project.ID = xid.New().String()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Visibility == "" {
		project.Visibility = model.VisibilityPublic
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.Description, project.Visibility, project.Password,
		boolInt(project.ChatSingleRoom), project.CreatedBy, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("name", "Project name already taken")
		}
		return fmt.Errorf("sqlite: creating project: %w", err)
	}

	for i := range project.Members {
		m := &project.Members[i]
		if m.JoinedAt.IsZero() {
			m.JoinedAt = now
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
			project.ID, m.User.ID, m.Role, m.JoinedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: adding member %s: %w", m.User.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing project: %w", err)
	}
	return nil
}

// loadMembers fills p.Members, populating each reference with the user's
// public profile when the user still exists.
func (db *DB) loadMembers(ctx context.Context, p *model.Project) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT m.user_id, m.role, m.joined_at, u.name, u.email, u.avatar_url
		 FROM project_members m LEFT JOIN users u ON u.id = m.user_id
		 WHERE m.project_id = ?
		 ORDER BY m.joined_at, m.user_id`, p.ID)
	if err != nil {
		return fmt.Errorf("sqlite: listing members of %s: %w", p.ID, err)
	}
	defer rows.Close()

	members := []model.Member{}
	for rows.Next() {
		var (
			m                   model.Member
			name, email, avatar sql.NullString
		)
		if err := rows.Scan(&m.User.ID, &m.Role, &m.JoinedAt, &name, &email, &avatar); err != nil {
			return fmt.Errorf("sqlite: scanning member: %w", err)
		}
		if name.Valid {
			m.User.Profile = &model.UserSummary{
				ID:        m.User.ID,
				Name:      name.String,
				Email:     email.String,
				AvatarURL: avatar.String,
			}
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating members: %w", err)
	}
	p.Members = members
	return nil
}

// GetProject retrieves a project with its populated member list.
func (db *DB) GetProject(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(db.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("project", id)
		}
		return nil, fmt.Errorf("sqlite: getting project %s: %w", id, err)
	}
	if err := db.loadMembers(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProjectByName is used by join-by-name. The match is exact.
func (db *DB) GetProjectByName(ctx context.Context, name string) (*model.Project, error) {
	p, err := scanProject(db.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE name = ?`, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("project", name)
		}
		return nil, fmt.Errorf("sqlite: getting project by name: %w", err)
	}
	if err := db.loadMembers(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// queryProjects runs a project query, closes the cursor, then loads members.
// Member loading must wait for the cursor to close; see the package doc.
func (db *DB) queryProjects(ctx context.Context, query string, args ...any) ([]model.Project, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects: %w", err)
	}
	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating projects: %w", err)
	}
	rows.Close()

	for i := range projects {
		if err := db.loadMembers(ctx, &projects[i]); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

// ListProjectsForUser returns every project userID is a member of, newest first.
func (db *DB) ListProjectsForUser(ctx context.Context, userID string) ([]model.Project, error) {
	return db.queryProjects(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE id IN (SELECT project_id FROM project_members WHERE user_id = ?)
		 ORDER BY id DESC`, userID)
}

// ListPublicProjects pages through discoverable projects.
func (db *DB) ListPublicProjects(ctx context.Context, opts repository.ListOptions) ([]model.Project, error) {
	limit, offset := clampList(opts, 20, 100)
	return db.queryProjects(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE visibility = ?
		 ORDER BY id DESC LIMIT ? OFFSET ?`,
		model.VisibilityPublic, limit, offset)
}

// UpdateProject writes the project's settings. Members are managed through
// AddMember, RemoveMember and SetMemberRole.
func (db *DB) UpdateProject(ctx context.Context, project *model.Project) error {
	project.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, visibility = ?, password = ?,
		 chat_single_room = ?, updated_at = ? WHERE id = ?`,
		project.Name, project.Description, project.Visibility, project.Password,
		boolInt(project.ChatSingleRoom), project.UpdatedAt, project.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("name", "Project name already taken")
		}
		return fmt.Errorf("sqlite: updating project %s: %w", project.ID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("project", project.ID)
	}
	return nil
}

// AddMember inserts the membership unless it already exists. The primary key
// on (project_id, user_id) makes concurrent joins collapse into one row.
func (db *DB) AddMember(ctx context.Context, projectID, userID string, role model.Role) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO project_members (project_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		projectID, userID, role, db.now(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: adding member %s to %s: %w", userID, projectID, err)
	}
	added, err := checkAffected(res)
	if err != nil {
		return false, fmt.Errorf("sqlite: %w", err)
	}
	return added, nil
}

func (db *DB) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return fmt.Errorf("sqlite: removing member %s from %s: %w", userID, projectID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("member", userID)
	}
	return nil
}

func (db *DB) SetMemberRole(ctx context.Context, projectID, userID string, role model.Role) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE project_members SET role = ? WHERE project_id = ? AND user_id = ?`, role, projectID, userID)
	if err != nil {
		return fmt.Errorf("sqlite: setting role of %s in %s: %w", userID, projectID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("member", userID)
	}
	return nil
}

// cascadeTables lists every table holding project-scoped rows.
var cascadeTables = []string{
	"tasks", "snippets", "solutions", "resources", "threads", "messages",
	"learning", "invitations", "project_members",
}

// DeleteProjectCascade deletes every dependent document, then the project.
//
// The dependent deletes are issued concurrently and all must succeed before
// the project row goes. A failure leaves the project in place so the delete
// can be retried.
func (db *DB) DeleteProjectCascade(ctx context.Context, id string) error {
	var exists int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("project", id)
		}
		return fmt.Errorf("sqlite: checking project %s: %w", id, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, table := range cascadeTables {
		g.Go(func() error {
			if _, err := db.conn.ExecContext(gctx,
				`DELETE FROM `+table+` WHERE project_id = ?`, id); err != nil {
				return fmt.Errorf("sqlite: deleting %s of project %s: %w", table, id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting project %s: %w", id, err)
	}
	return nil
}
