package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

const snippetColumns = `id, project_id, created_by, title, description, language, code, tags, created_at, updated_at`

func scanSnippet(row rowScanner) (*model.Snippet, error) {
	var (
		s    model.Snippet
		tags string
	)
	err := row.Scan(&s.ID, &s.ProjectID, &s.CreatedBy, &s.Title, &s.Description,
		&s.Language, &s.Code, &tags, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if s.Tags, err = decodeList(tags); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSnippet inserts a new snippet. ID and timestamps are assigned here.
func (db *DB) CreateSnippet(ctx context.Context, snippet *model.Snippet) error {
	now := db.now()
	snippet.ID = xid.New().String()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (`+snippetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID, snippet.ProjectID, snippet.CreatedBy, snippet.Title, snippet.Description,
		snippet.Language, snippet.Code, encodeList(snippet.Tags), snippet.CreatedAt, snippet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}
	return nil
}

func (db *DB) GetSnippet(ctx context.Context, id string) (*model.Snippet, error) {
	s, err := scanSnippet(db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}
	return s, nil
}

// ListSnippets pages through a project's snippets, newest first.
func (db *DB) ListSnippets(ctx context.Context, projectID string, opts repository.ListOptions) ([]model.Snippet, error) {
	limit, offset := clampList(opts, 20, 100)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE project_id = ?
		 ORDER BY id DESC LIMIT ? OFFSET ?`, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	out := []model.Snippet{}
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}
	return out, nil
}

func (db *DB) UpdateSnippet(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE snippets SET title = ?, description = ?, language = ?, code = ?, tags = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Title, snippet.Description, snippet.Language, snippet.Code,
		encodeList(snippet.Tags), snippet.UpdatedAt, snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("snippet", snippet.ID)
	}
	return nil
}

func (db *DB) DeleteSnippet(ctx context.Context, id string) error {
	return db.deleteByID(ctx, "snippets", "snippet", id)
}
