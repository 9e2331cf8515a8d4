package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
)

const invitationColumns = `id, project_id, code, token, role, expires_at, max_uses, uses, enabled, created_by, created_at`

func scanInvitation(row rowScanner) (*model.Invitation, error) {
	var (
		inv       model.Invitation
		expiresAt sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.ProjectID, &inv.Code, &inv.Token, &inv.Role, &expiresAt,
		&inv.MaxUses, &inv.Uses, &inv.Enabled, &inv.CreatedBy, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	inv.ExpiresAt = timePtr(expiresAt)
	return &inv, nil
}

// CreateInvitation stores a new invitation. A code or token collision
// returns apperror.ErrConflict so the caller can regenerate and retry.
func (db *DB) CreateInvitation(ctx context.Context, inv *model.Invitation) error {
	inv.ID = xid.New().String()
	inv.CreatedAt = db.now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO invitations (`+invitationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.ProjectID, inv.Code, inv.Token, inv.Role, nullTime(inv.ExpiresAt),
		inv.MaxUses, inv.Uses, boolInt(inv.Enabled), inv.CreatedBy, inv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("code", "Invitation code already exists")
		}
		return fmt.Errorf("sqlite: creating invitation: %w", err)
	}
	return nil
}

func (db *DB) GetInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	inv, err := scanInvitation(db.conn.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("invitation", id)
		}
		return nil, fmt.Errorf("sqlite: getting invitation %s: %w", id, err)
	}
	return inv, nil
}

func (db *DB) FindInvitation(ctx context.Context, codeOrToken string) (*model.Invitation, error) {
	inv, err := scanInvitation(db.conn.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE code = ? OR token = ?`,
		codeOrToken, codeOrToken))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("invitation", codeOrToken)
		}
		return nil, fmt.Errorf("sqlite: finding invitation: %w", err)
	}
	return inv, nil
}

func (db *DB) ListInvitations(ctx context.Context, projectID string) ([]model.Invitation, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE project_id = ? ORDER BY id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing invitations: %w", err)
	}
	defer rows.Close()

	out := []model.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning invitation: %w", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating invitations: %w", err)
	}
	return out, nil
}

func (db *DB) SetInvitationEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE invitations SET enabled = ? WHERE id = ?`, boolInt(enabled), id)
	if err != nil {
		return fmt.Errorf("sqlite: updating invitation %s: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if !ok {
		return apperror.NotFound("invitation", id)
	}
	return nil
}

// ClaimInvitationUse increments uses only while the invitation is enabled and
// under max_uses (0 means unlimited). Concurrent claims cannot overshoot:
// the check and the increment are the same UPDATE.
func (db *DB) ClaimInvitationUse(ctx context.Context, id string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE invitations SET uses = uses + 1
		WHERE id = ? AND enabled = 1 AND (max_uses = 0 OR uses < max_uses)`, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: claiming use of invitation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: claiming use of invitation %s: %w", id, err)
	}
	return n == 1, nil
}

func (db *DB) ReleaseInvitationUse(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE invitations SET uses = uses - 1 WHERE id = ? AND uses > 0`, id)
	if err != nil {
		return fmt.Errorf("sqlite: releasing use of invitation %s: %w", id, err)
	}
	return nil
}

func (db *DB) DeleteInvitation(ctx context.Context, id string) error {
	return db.deleteByID(ctx, "invitations", "invitation", id)
}
