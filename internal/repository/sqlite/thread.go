package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

const threadColumns = `id, project_id, title, tags, pinned, locked, created_by, last_activity_at, created_at, updated_at`

func scanThread(row rowScanner) (*model.Thread, error) {
	var (
		t    model.Thread
		tags string
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &tags, &t.Pinned, &t.Locked,
		&t.CreatedBy, &t.LastActivityAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if t.Tags, err = decodeList(tags); err != nil {
		return nil, err
	}
	return &t, nil
}

func (db *DB) CreateThread(ctx context.Context, thread *model.Thread) error {
	now := db.now()
	thread.ID = xid.New().String()
	thread.CreatedAt = now
	thread.UpdatedAt = now
	thread.LastActivityAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO threads (`+threadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		thread.ID, thread.ProjectID, thread.Title, encodeList(thread.Tags),
		boolInt(thread.Pinned), boolInt(thread.Locked), thread.CreatedBy,
		thread.LastActivityAt, thread.CreatedAt, thread.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating thread: %w", err)
	}
	return nil
}

func (db *DB) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	t, err := scanThread(db.conn.QueryRowContext(ctx,
		`SELECT `+threadColumns+` FROM threads WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("thread", id)
		}
		return nil, fmt.Errorf("sqlite: getting thread %s: %w", id, err)
	}
	return t, nil
}

// ListThreads orders pinned threads first, then by most recent activity.
func (db *DB) ListThreads(ctx context.Context, projectID string) ([]model.Thread, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+threadColumns+` FROM threads WHERE project_id = ?
		 ORDER BY pinned DESC, last_activity_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing threads: %w", err)
	}
	defer rows.Close()

	threads := []model.Thread{}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning thread: %w", err)
		}
		threads = append(threads, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating threads: %w", err)
	}
	return threads, nil
}

func (db *DB) UpdateThread(ctx context.Context, thread *model.Thread) error {
	thread.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE threads SET title = ?, tags = ?, pinned = ?, locked = ?, updated_at = ? WHERE id = ?`,
		thread.Title, encodeList(thread.Tags), boolInt(thread.Pinned), boolInt(thread.Locked),
		thread.UpdatedAt, thread.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating thread %s: %w", thread.ID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("thread", thread.ID)
	}
	return nil
}

func (db *DB) TouchThread(ctx context.Context, id string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE threads SET last_activity_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: touching thread %s: %w", id, err)
	}
	return nil
}

func (db *DB) DeleteThread(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting messages of thread %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting thread %s: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("thread", id)
	}
	return tx.Commit()
}

// === MESSAGES ===

const messageColumns = `id, thread_id, project_id, user_id, text, deleted, deleted_by, deleted_at, created_at`

func scanMessage(row rowScanner) (*model.Message, error) {
	var (
		m         model.Message
		deletedAt sql.NullTime
	)
	err := row.Scan(&m.ID, &m.ThreadID, &m.ProjectID, &m.User, &m.Text,
		&m.Deleted, &m.DeletedBy, &deletedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.DeletedAt = timePtr(deletedAt)
	return &m, nil
}

func (db *DB) CreateMessage(ctx context.Context, msg *model.Message) error {
	msg.ID = xid.New().String()
	msg.CreatedAt = db.now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ThreadID, msg.ProjectID, msg.User, msg.Text,
		boolInt(msg.Deleted), msg.DeletedBy, nullTime(msg.DeletedAt), msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating message: %w", err)
	}
	return nil
}

func (db *DB) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	m, err := scanMessage(db.conn.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("message", id)
		}
		return nil, fmt.Errorf("sqlite: getting message %s: %w", id, err)
	}
	return m, nil
}

// ListMessages returns a page of a thread's messages in posting order.
func (db *DB) ListMessages(ctx context.Context, threadID string, opts repository.ListOptions) ([]model.Message, error) {
	limit, offset := clampList(opts, 50, 200)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE thread_id = ?
		 ORDER BY id LIMIT ? OFFSET ?`, threadID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating messages: %w", err)
	}
	return msgs, nil
}

func (db *DB) SoftDeleteMessage(ctx context.Context, id, deletedBy string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE messages SET deleted = 1, deleted_by = ?, deleted_at = ?, text = '' WHERE id = ?`,
		deletedBy, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting message %s: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("message", id)
	}
	return nil
}

// ThreadParticipants returns the distinct authors of a thread's messages.
func (db *DB) ThreadParticipants(ctx context.Context, threadID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM messages WHERE thread_id = ? ORDER BY user_id`, threadID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing participants: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning participant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
