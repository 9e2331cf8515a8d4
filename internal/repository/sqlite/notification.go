package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

const notificationColumns = `id, user_id, type, message, is_read, metadata, created_at`

func scanNotification(row rowScanner) (*model.Notification, error) {
	var (
		n    model.Notification
		meta string
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.Read, &meta, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Metadata = map[string]any{}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &n.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	return &n, nil
}

func (db *DB) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.ID = xid.New().String()
	n.CreatedAt = db.now()
	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}
	meta, err := encodeJSON(n.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: encoding notification metadata: %w", err)
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Message, boolInt(n.Read), meta, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating notification: %w", err)
	}
	return nil
}

// ListNotifications returns the user's notifications, newest first.
func (db *DB) ListNotifications(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Notification, error) {
	limit, offset := clampList(opts, 50, 200)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = ?
		 ORDER BY id DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notifications: %w", err)
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating notifications: %w", err)
	}
	return out, nil
}

func (db *DB) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead is scoped to the owner: another user's id reports NotFound.
func (db *DB) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: marking notification %s read: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("notification", id)
	}
	return nil
}

func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return fmt.Errorf("sqlite: marking notifications read: %w", err)
	}
	return nil
}

func (db *DB) DeleteNotification(ctx context.Context, userID, id string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting notification %s: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("notification", id)
	}
	return nil
}

func (db *DB) DeleteAllNotifications(ctx context.Context, userID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: deleting notifications: %w", err)
	}
	return nil
}
