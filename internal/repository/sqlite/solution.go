package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
)

const solutionColumns = `id, project_id, created_by, title, problem, approach, code, language,
	difficulty, time_complexity, space_complexity, tags, created_at, updated_at`

func scanSolution(row rowScanner) (*model.Solution, error) {
	var (
		s    model.Solution
		tags string
	)
	err := row.Scan(&s.ID, &s.ProjectID, &s.CreatedBy, &s.Title, &s.Problem, &s.Approach,
		&s.Code, &s.Language, &s.Difficulty, &s.TimeComplexity, &s.SpaceComplexity,
		&tags, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if s.Tags, err = decodeList(tags); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) CreateSolution(ctx context.Context, s *model.Solution) error {
	now := db.now()
	s.ID = xid.New().String()
	s.CreatedAt = now
	s.UpdatedAt = now
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO solutions (`+solutionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ProjectID, s.CreatedBy, s.Title, s.Problem, s.Approach, s.Code, s.Language,
		s.Difficulty, s.TimeComplexity, s.SpaceComplexity, encodeList(s.Tags), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating solution: %w", err)
	}
	return nil
}

func (db *DB) GetSolution(ctx context.Context, id string) (*model.Solution, error) {
	s, err := scanSolution(db.conn.QueryRowContext(ctx,
		`SELECT `+solutionColumns+` FROM solutions WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("solution", id)
		}
		return nil, fmt.Errorf("sqlite: getting solution %s: %w", id, err)
	}
	return s, nil
}

func (db *DB) ListSolutions(ctx context.Context, projectID string) ([]model.Solution, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+solutionColumns+` FROM solutions WHERE project_id = ? ORDER BY id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing solutions: %w", err)
	}
	defer rows.Close()

	out := []model.Solution{}
	for rows.Next() {
		s, err := scanSolution(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning solution: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating solutions: %w", err)
	}
	return out, nil
}

func (db *DB) UpdateSolution(ctx context.Context, s *model.Solution) error {
	s.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE solutions SET title = ?, problem = ?, approach = ?, code = ?, language = ?,
		 difficulty = ?, time_complexity = ?, space_complexity = ?, tags = ?, updated_at = ?
		 WHERE id = ?`,
		s.Title, s.Problem, s.Approach, s.Code, s.Language, s.Difficulty,
		s.TimeComplexity, s.SpaceComplexity, encodeList(s.Tags), s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating solution %s: %w", s.ID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("solution", s.ID)
	}
	return nil
}

func (db *DB) DeleteSolution(ctx context.Context, id string) error {
	return db.deleteByID(ctx, "solutions", "solution", id)
}
