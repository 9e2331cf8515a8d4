package authz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
)

func testProject() *model.Project {
	return &model.Project{
		ID: "p1",
		Members: []model.Member{
			{User: model.MemberRef{ID: "owner"}, Role: model.RoleOwner},
			{User: model.MemberRef{Profile: &model.UserSummary{ID: "admin"}}, Role: model.RoleAdmin},
			{User: model.MemberRef{ID: "member", Profile: &model.UserSummary{ID: "member", Name: "M"}}, Role: model.RoleMember},
		},
	}
}

func TestCheck(t *testing.T) {
	p := testProject()

	tests := []struct {
		name    string
		user    string
		min     model.Role
		allowed bool
		member  bool
	}{
		{"owner passes owner-only", "owner", model.RoleOwner, true, true},
		{"admin passes privileged", "admin", model.RoleAdmin, true, true},
		{"admin fails owner-only", "admin", model.RoleOwner, false, true},
		{"member passes member", "member", model.RoleMember, true, true},
		{"member fails privileged", "member", model.RoleAdmin, false, true},
		{"stranger fails member", "stranger", model.RoleMember, false, false},
		{"anonymous fails", "", model.RoleMember, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Check(p, tt.user, tt.min)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.member, d.Member)
			if !tt.allowed {
				assert.NotEmpty(t, d.Reason)
				assert.True(t, errors.Is(d.Err(), apperror.ErrForbidden))
			} else {
				assert.NoError(t, d.Err())
			}
		})
	}
}

func TestCheck_PopulatedOnlyReferenceIsNormalised(t *testing.T) {
	d := Check(testProject(), "admin", model.RoleMember)
	assert.True(t, d.Allowed)
	assert.Equal(t, model.RoleAdmin, d.Role)
	assert.True(t, d.Privileged())
}

func TestCheck_MissingProjectIsNotFound(t *testing.T) {
	d := Check(nil, "owner", model.RoleMember)
	assert.False(t, d.Allowed)
	assert.True(t, errors.Is(d.Err(), apperror.ErrNotFound))
}

func TestPrivilegedIDs(t *testing.T) {
	assert.ElementsMatch(t, []string{"owner", "admin"}, PrivilegedIDs(testProject()))
}

func TestIsAuthorOrPrivileged(t *testing.T) {
	p := testProject()
	assert.True(t, IsAuthorOrPrivileged(Check(p, "member", model.RoleMember), "member", "member"))
	assert.False(t, IsAuthorOrPrivileged(Check(p, "member", model.RoleMember), "owner", "member"))
	assert.True(t, IsAuthorOrPrivileged(Check(p, "admin", model.RoleMember), "member", "admin"))
}
