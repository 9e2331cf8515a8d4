package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberRef_AcceptsRawIDAndPopulatedObject(t *testing.T) {
	payload := `[
		{"user": "u1", "role": "owner"},
		{"user": {"id": "u2", "name": "Bea", "email": "bea@example.com"}, "role": "admin"},
		{"user": {"_id": "u3", "name": "Cy"}, "role": "member"}
	]`

	var members []Member
	require.NoError(t, json.Unmarshal([]byte(payload), &members))
	require.Len(t, members, 3)

	assert.Equal(t, "u1", members[0].User.ID)
	assert.Nil(t, members[0].User.Profile)

	assert.Equal(t, "u2", members[1].User.ID)
	require.NotNil(t, members[1].User.Profile)
	assert.Equal(t, "Bea", members[1].User.Profile.Name)

	assert.Equal(t, "u3", members[2].User.ID, "legacy _id must be normalised")
}

func TestMemberRef_MarshalShape(t *testing.T) {
	raw, err := json.Marshal(MemberRef{ID: "u1"})
	require.NoError(t, err)
	assert.JSONEq(t, `"u1"`, string(raw))

	raw, err = json.Marshal(MemberRef{ID: "u2", Profile: &UserSummary{Name: "Bea"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u2","name":"Bea","email":""}`, string(raw))
}

func TestRoleRank(t *testing.T) {
	assert.Greater(t, RoleOwner.Rank(), RoleAdmin.Rank())
	assert.Greater(t, RoleAdmin.Rank(), RoleMember.Rank())
	assert.False(t, Role("superuser").Valid())
}

func TestParseTaskStatus(t *testing.T) {
	s, ok := ParseTaskStatus("completed")
	assert.True(t, ok)
	assert.Equal(t, StatusDone, s)

	_, ok = ParseTaskStatus("archived")
	assert.False(t, ok)
}

func TestInvitationUsable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	assert.True(t, (&Invitation{Enabled: true}).Usable(now))
	assert.False(t, (&Invitation{Enabled: false}).Usable(now))
	assert.False(t, (&Invitation{Enabled: true, ExpiresAt: &past}).Usable(now))
	assert.False(t, (&Invitation{Enabled: true, MaxUses: 2, Uses: 2}).Usable(now))
	assert.True(t, (&Invitation{Enabled: true, MaxUses: 2, Uses: 1}).Usable(now))
}

func TestMessageRedacted(t *testing.T) {
	m := Message{Text: "secret", Deleted: true}
	assert.Equal(t, DeletedMessagePlaceholder, m.Redacted().Text)
	assert.Equal(t, "secret", m.Text, "Redacted must not mutate the receiver")
}
