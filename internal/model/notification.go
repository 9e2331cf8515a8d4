package model

import "time"

// Notification types.
const (
	NotifyTaskAssigned   = "task_assigned"
	NotifyTaskComment    = "task_comment"
	NotifyTaskDue        = "task_due"
	NotifyMemberJoined   = "member_joined"
	NotifyMemberRemoved  = "member_removed"
	NotifyRoleChanged    = "role_changed"
	NotifyThreadReply    = "thread_reply"
	NotifyInviteAccepted = "invite_accepted"
)

// Notification belongs to exactly one user.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Read      bool           `json:"read"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Invitation grants a role in a project to whoever redeems its code or token.
type Invitation struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project"`
	Code      string     `json:"code"`
	Token     string     `json:"token"`
	Role      Role       `json:"role"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	MaxUses   int        `json:"maxUses"`
	Uses      int        `json:"uses"`
	Enabled   bool       `json:"enabled"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Usable reports whether the invitation can still be redeemed at now.
// MaxUses of 0 means unlimited.
func (i *Invitation) Usable(now time.Time) bool {
	if !i.Enabled {
		return false
	}
	if i.ExpiresAt != nil && !now.Before(*i.ExpiresAt) {
		return false
	}
	if i.MaxUses > 0 && i.Uses >= i.MaxUses {
		return false
	}
	return true
}
