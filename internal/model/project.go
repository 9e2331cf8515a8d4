package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Role is a member's role inside a project.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// Rank orders roles so that owner > admin > member. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.Rank() > 0 }

// Visibility controls whether a project can be discovered and joined freely.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Project is the aggregate root every other collaborative document hangs off.
//
// Password is the private-join secret. It is stored and compared as plaintext,
// which is a known defect kept for behavioural compatibility; it is never
// serialised to clients.
type Project struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Visibility     Visibility `json:"visibility"`
	Members        []Member   `json:"members"`
	Password       string     `json:"-"`
	ChatSingleRoom bool       `json:"chatSingleRoom"`
	CreatedBy      string     `json:"createdBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Member ties a user to a project with a role.
type Member struct {
	User     MemberRef `json:"user"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// MemberRef references a user either by raw id or by a populated profile.
//
// Both shapes appear on the wire: `"user": "c9f..."` and
// `"user": {"id": "c9f...", "name": "..."}`. ID always holds the id.
type MemberRef struct {
	ID      string
	Profile *UserSummary
}

// MarshalJSON writes the populated object when a profile is loaded, the bare id otherwise.
func (r MemberRef) MarshalJSON() ([]byte, error) {
	if r.Profile != nil {
		p := *r.Profile
		p.ID = r.ID
		return json.Marshal(p)
	}
	return json.Marshal(r.ID)
}

// UnmarshalJSON accepts either a JSON string or an object with an "id" (or "_id") field.
func (r *MemberRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = MemberRef{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = MemberRef{ID: id}
		return nil
	}

	var obj struct {
		UserSummary
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("member reference: %w", err)
	}
	if obj.ID == "" {
		obj.ID = obj.LegacyID
	}
	profile := obj.UserSummary
	*r = MemberRef{ID: obj.ID, Profile: &profile}
	return nil
}
