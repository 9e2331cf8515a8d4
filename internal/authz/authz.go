// Package authz decides what a caller may do inside a project.
//
// Every service that touches project-scoped data calls Check exactly once with
// the minimum role the operation needs:
//
//	model.RoleMember → any member (read, create tasks, post messages)
//	model.RoleAdmin  → owner or admin ("privileged": pin/lock, manage invites)
//	model.RoleOwner  → owner only (delete project, change roles, settings)
//
// Member references are normalised through MemberRef.ID, so populated and raw
// id members compare the same way.
package authz

import (
	"strings"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
)

// Denial reasons.
const (
	ReasonNoProject      = "project missing"
	ReasonAnonymous      = "no caller identity"
	ReasonNotMember      = "not a member"
	ReasonInsufficient   = "role too low"
	ReasonUnknownMinRole = "unknown required role"
)

// Decision is the tagged result of an access check.
type Decision struct {
	Allowed bool
	Member  bool       // caller appears in the member list
	Role    model.Role // caller's role; empty when not a member
	Reason  string     // set when !Allowed
}

// Privileged reports whether the caller holds owner or admin.
func (d Decision) Privileged() bool { return Privileged(d.Role) }

// Owner reports whether the caller is the project owner.
func (d Decision) Owner() bool { return d.Role == model.RoleOwner }

// Err converts a denial into the error returned to clients. Allowed decisions yield nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonNoProject {
		return apperror.NotFound("project", "")
	}
	return &apperror.AppError{
		Err:     apperror.ErrForbidden,
		Message: "Forbidden",
		Detail:  d.Reason,
	}
}

// Check decides whether userID may act on p with at least the min role.
func Check(p *model.Project, userID string, min model.Role) Decision {
	if p == nil {
		return Decision{Reason: ReasonNoProject}
	}
	if !min.Valid() {
		return Decision{Reason: ReasonUnknownMinRole}
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Decision{Reason: ReasonAnonymous}
	}

	role, ok := RoleOf(p, userID)
	if !ok {
		return Decision{Reason: ReasonNotMember}
	}
	d := Decision{Member: true, Role: role}
	if role.Rank() < min.Rank() {
		d.Reason = ReasonInsufficient
		return d
	}
	d.Allowed = true
	return d
}

// Require is Check followed by Err.
func Require(p *model.Project, userID string, min model.Role) (Decision, error) {
	d := Check(p, userID, min)
	return d, d.Err()
}

// RoleOf returns the caller's role in p.
func RoleOf(p *model.Project, userID string) (model.Role, bool) {
	for _, m := range p.Members {
		if MemberID(m.User) == userID {
			return m.Role, true
		}
	}
	return "", false
}

// MemberID normalises a member reference to a plain id.
func MemberID(ref model.MemberRef) string {
	if ref.ID != "" {
		return strings.TrimSpace(ref.ID)
	}
	if ref.Profile != nil {
		return strings.TrimSpace(ref.Profile.ID)
	}
	return ""
}

// Privileged reports whether role is owner or admin.
func Privileged(role model.Role) bool {
	return role == model.RoleOwner || role == model.RoleAdmin
}

// PrivilegedIDs returns the ids of all owners and admins of p.
func PrivilegedIDs(p *model.Project) []string {
	ids := make([]string, 0, 2)
	for _, m := range p.Members {
		if Privileged(m.Role) {
			ids = append(ids, MemberID(m.User))
		}
	}
	return ids
}

// IsAuthorOrPrivileged allows an action for the document's author or any privileged member.
func IsAuthorOrPrivileged(d Decision, authorID, userID string) bool {
	return d.Member && (authorID == userID || d.Privileged())
}
