package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
)

const learningColumns = `id, project_id, created_by, topic, notes, status, resources, tags, created_at, updated_at`

func scanLearning(row rowScanner) (*model.Learning, error) {
	var (
		l               model.Learning
		resources, tags string
	)
	err := row.Scan(&l.ID, &l.ProjectID, &l.CreatedBy, &l.Topic, &l.Notes, &l.Status,
		&resources, &tags, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if l.Resources, err = decodeList(resources); err != nil {
		return nil, err
	}
	if l.Tags, err = decodeList(tags); err != nil {
		return nil, err
	}
	return &l, nil
}

func (db *DB) CreateLearning(ctx context.Context, l *model.Learning) error {
	now := db.now()
	l.ID = xid.New().String()
	l.CreatedAt = now
	l.UpdatedAt = now
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO learning (`+learningColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ProjectID, l.CreatedBy, l.Topic, l.Notes, l.Status,
		encodeList(l.Resources), encodeList(l.Tags), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating learning entry: %w", err)
	}
	return nil
}

func (db *DB) GetLearning(ctx context.Context, id string) (*model.Learning, error) {
	l, err := scanLearning(db.conn.QueryRowContext(ctx,
		`SELECT `+learningColumns+` FROM learning WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("learning", id)
		}
		return nil, fmt.Errorf("sqlite: getting learning entry %s: %w", id, err)
	}
	return l, nil
}

// ListLearning returns only creatorID's entries in the project.
func (db *DB) ListLearning(ctx context.Context, projectID, creatorID string) ([]model.Learning, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+learningColumns+` FROM learning
		 WHERE project_id = ? AND created_by = ? ORDER BY id DESC`, projectID, creatorID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing learning entries: %w", err)
	}
	defer rows.Close()

	out := []model.Learning{}
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning learning entry: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating learning entries: %w", err)
	}
	return out, nil
}

func (db *DB) UpdateLearning(ctx context.Context, l *model.Learning) error {
	l.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE learning SET topic = ?, notes = ?, status = ?, resources = ?, tags = ?, updated_at = ?
		 WHERE id = ?`,
		l.Topic, l.Notes, l.Status, encodeList(l.Resources), encodeList(l.Tags), l.UpdatedAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating learning entry %s: %w", l.ID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("learning", l.ID)
	}
	return nil
}

func (db *DB) DeleteLearning(ctx context.Context, id string) error {
	return db.deleteByID(ctx, "learning", "learning", id)
}
