package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

const taskColumns = `id, project_id, title, description, priority, status, due_at,
	assignees, labels, comments, created_by, due_notified, created_at, updated_at`

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		t                           model.Task
		dueAt                       sql.NullInt64
		assignees, labels, comments string
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Priority, &t.Status, &dueAt,
		&assignees, &labels, &comments, &t.CreatedBy, &t.DueNotified, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if dueAt.Valid {
		due := time.Unix(dueAt.Int64, 0).UTC()
		t.DueDate = &due
	}
	if t.Assignees, err = decodeList(assignees); err != nil {
		return nil, err
	}
	if t.Labels, err = decodeList(labels); err != nil {
		return nil, err
	}
	t.Comments = []model.Comment{}
	if comments != "" {
		if err := json.Unmarshal([]byte(comments), &t.Comments); err != nil {
			return nil, fmt.Errorf("decoding comments: %w", err)
		}
	}
	return &t, nil
}

// dueUnix stores due dates as unix seconds so range queries compare numbers.
func dueUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func (db *DB) CreateTask(ctx context.Context, task *model.Task) error {
	now := db.now()
	task.ID = xid.New().String()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = model.StatusTodo
	}
	if task.Comments == nil {
		task.Comments = []model.Comment{}
	}
	comments, err := encodeJSON(task.Comments)
	if err != nil {
		return fmt.Errorf("sqlite: encoding comments: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ProjectID, task.Title, task.Description, task.Priority, task.Status,
		dueUnix(task.DueDate), encodeList(task.Assignees), encodeList(task.Labels), comments,
		task.CreatedBy, boolInt(task.DueNotified), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating task: %w", err)
	}
	return nil
}

func (db *DB) GetTask(ctx context.Context, id string) (*model.Task, error) {
	t, err := scanTask(db.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("task", id)
		}
		return nil, fmt.Errorf("sqlite: getting task %s: %w", id, err)
	}
	return t, nil
}

func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tasks: %w", err)
	}
	return tasks, nil
}

// ListTasks returns a project's tasks, newest first. Assignee filtering uses
// SQLite's json_each over the assignees column.
func (db *DB) ListTasks(ctx context.Context, projectID string, filter repository.TaskFilter) ([]model.Task, error) {
	var (
		where = []string{"project_id = ?"}
		args  = []any{projectID}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Assignee != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(tasks.assignees) WHERE json_each.value = ?)")
		args = append(args, filter.Assignee)
	}
	return db.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE `+strings.Join(where, " AND ")+
			` ORDER BY id DESC`, args...)
}

// UpdateTask overwrites every mutable field, comments included.
func (db *DB) UpdateTask(ctx context.Context, task *model.Task) error {
	task.UpdatedAt = db.now()
	comments, err := encodeJSON(task.Comments)
	if err != nil {
		return fmt.Errorf("sqlite: encoding comments: %w", err)
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, priority = ?, status = ?, due_at = ?,
		 assignees = ?, labels = ?, comments = ?, due_notified = ?, updated_at = ?
		 WHERE id = ?`,
		task.Title, task.Description, task.Priority, task.Status, dueUnix(task.DueDate),
		encodeList(task.Assignees), encodeList(task.Labels), comments,
		boolInt(task.DueNotified), task.UpdatedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating task %s: %w", task.ID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("task", task.ID)
	}
	return nil
}

func (db *DB) DeleteTask(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting task %s: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("task", id)
	}
	return nil
}

func (db *DB) ListDueTasks(ctx context.Context, before time.Time) ([]model.Task, error) {
	return db.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE due_at IS NOT NULL AND due_at <= ? AND status != ? AND due_notified = 0
		 ORDER BY due_at`, before.Unix(), model.StatusDone)
}

func (db *DB) MarkTaskDueNotified(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE tasks SET due_notified = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: marking task %s reminded: %w", id, err)
	}
	return nil
}
