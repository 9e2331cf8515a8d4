package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
)

const resourceColumns = `id, project_id, uploaded_by, title, provider, url, storage_key, mime_type, size, file_name, created_at`

func scanResource(row rowScanner) (*model.Resource, error) {
	var r model.Resource
	err := row.Scan(&r.ID, &r.ProjectID, &r.UploadedBy, &r.Title, &r.Provider, &r.URL,
		&r.StorageKey, &r.MimeType, &r.Size, &r.FileName, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) CreateResource(ctx context.Context, res *model.Resource) error {
	if res.ID == "" {
		res.ID = xid.New().String()
	}
	res.CreatedAt = db.now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO resources (`+resourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.ProjectID, res.UploadedBy, res.Title, res.Provider, res.URL,
		res.StorageKey, res.MimeType, res.Size, res.FileName, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating resource: %w", err)
	}
	return nil
}

func (db *DB) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	r, err := scanResource(db.conn.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("resource", id)
		}
		return nil, fmt.Errorf("sqlite: getting resource %s: %w", id, err)
	}
	return r, nil
}

func (db *DB) ListResources(ctx context.Context, projectID string) ([]model.Resource, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE project_id = ? ORDER BY id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing resources: %w", err)
	}
	defer rows.Close()

	out := []model.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning resource: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating resources: %w", err)
	}
	return out, nil
}

func (db *DB) DeleteResource(ctx context.Context, id string) error {
	return db.deleteByID(ctx, "resources", "resource", id)
}

// deleteByID removes one row, reporting NotFound when nothing matched.
func (db *DB) deleteByID(ctx context.Context, table, resource, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s %s: %w", resource, id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound(resource, id)
	}
	return nil
}
