package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/auth"
	"github.com/sakif/unityboard/internal/authz"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/notify"
	"github.com/sakif/unityboard/internal/realtime"
	"github.com/sakif/unityboard/internal/repository"
	"github.com/sakif/unityboard/internal/storage"
)

// ProjectStore is what ProjectService needs from the repository layer.
type ProjectStore interface {
	repository.ProjectRepository
	repository.UserRepository
	repository.ResourceRepository
}

// ProjectService owns projects and their member lists.
//
// ROLE RULES:
//   - any member reads the project and its members, and may leave
//   - owner or admin edits name/description and removes plain members
//   - owner alone deletes, changes visibility/password/chat mode, changes
//     roles and removes admins
//   - the owner can never be removed, demoted or leave; there is no
//     ownership transfer
//
// Whenever membership ends (leave, removal, project delete) the affected
// sockets are dropped from the project room in the same call.
type ProjectService struct {
	store    ProjectStore
	files    storage.Store
	notifier *notify.Notifier
	pub      realtime.Publisher
	logger   *slog.Logger
}

func NewProjectService(store ProjectStore, files storage.Store, notifier *notify.Notifier, pub realtime.Publisher, logger *slog.Logger) *ProjectService {
	return &ProjectService{store: store, files: files, notifier: notifier, pub: pub, logger: logger}
}

// CreateProjectInput is the body of POST /api/projects.
type CreateProjectInput struct {
	Name           string
	Description    string
	Visibility     model.Visibility
	Password       string
	ChatSingleRoom bool
}

// UpdateProjectInput patches a project. Nil fields are left unchanged.
type UpdateProjectInput struct {
	Name           *string
	Description    *string
	Visibility     *model.Visibility
	Password       *string
	ChatSingleRoom *bool
}

// Create makes userID the sole owner of a new project.
func (s *ProjectService) Create(ctx context.Context, userID string, in CreateProjectInput) (*model.Project, error) {
	name, err := requireText("name", "Project name", in.Name, 100)
	if err != nil {
		return nil, err
	}
	desc := strings.TrimSpace(in.Description)
	if err := checkLength("description", "Description", desc, MaxDescriptionLength); err != nil {
		return nil, err
	}
	vis, err := parseVisibility(in.Visibility)
	if err != nil {
		return nil, err
	}

	p := &model.Project{
		Name:           name,
		Description:    desc,
		Visibility:     vis,
		Password:       in.Password,
		ChatSingleRoom: in.ChatSingleRoom,
		CreatedBy:      userID,
		Members: []model.Member{
			{User: model.MemberRef{ID: userID}, Role: model.RoleOwner},
		},
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	bumpAnalytics(ctx, s.store, s.logger, userID, model.StatProjectsCreated)
	s.logger.Info("project created", slog.String("project_id", p.ID), slog.String("user_id", userID))
	return s.store.GetProject(ctx, p.ID)
}

// ListMine returns the projects userID belongs to.
func (s *ProjectService) ListMine(ctx context.Context, userID string) ([]model.Project, error) {
	return s.store.ListProjectsForUser(ctx, userID)
}

// ListPublic is the discoverable project directory.
func (s *ProjectService) ListPublic(ctx context.Context, limit, offset int) ([]model.Project, error) {
	return s.store.ListPublicProjects(ctx, clampPage(limit, offset))
}

// Get returns a project. Public projects are readable by anyone, private
// ones only by members.
func (s *ProjectService) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Visibility == model.VisibilityPublic {
		return p, nil
	}
	if _, err := authz.Require(p, userID, model.RoleMember); err != nil {
		return nil, err
	}
	return p, nil
}

// Members lists the members of a project the caller belongs to.
func (s *ProjectService) Members(ctx context.Context, userID, projectID string) ([]model.Member, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	return p.Members, nil
}

// Update applies a shallow patch.
func (s *ProjectService) Update(ctx context.Context, userID, projectID string, in UpdateProjectInput) (*model.Project, error) {
	p, d, err := loadProject(ctx, s.store, projectID, userID, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if (in.Visibility != nil || in.Password != nil || in.ChatSingleRoom != nil) && !d.Owner() {
		return nil, apperror.Forbidden("Only the owner can change project settings")
	}

	if in.Name != nil {
		name, err := requireText("name", "Project name", *in.Name, 100)
		if err != nil {
			return nil, err
		}
		p.Name = name
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if err := checkLength("description", "Description", desc, MaxDescriptionLength); err != nil {
			return nil, err
		}
		p.Description = desc
	}
	if in.Visibility != nil {
		vis, err := parseVisibility(*in.Visibility)
		if err != nil {
			return nil, err
		}
		p.Visibility = vis
	}
	if in.Password != nil {
		p.Password = *in.Password
	}
	if in.ChatSingleRoom != nil {
		p.ChatSingleRoom = *in.ChatSingleRoom
	}

	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the project and every document scoped to it. Uploaded files
// are removed after the rows, best effort.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleOwner)
	if err != nil {
		return err
	}

	resources, err := s.store.ListResources(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProjectCascade(ctx, p.ID); err != nil {
		return err
	}
	s.pub.CloseRoom(realtime.ProjectRoom(p.ID))
	for _, r := range resources {
		if r.StorageKey == "" || s.files == nil {
			continue
		}
		if err := s.files.Remove(ctx, r.StorageKey); err != nil {
			s.logger.Warn("uploaded file not removed",
				slog.String("key", r.StorageKey), slog.String("error", err.Error()))
		}
	}

	s.logger.Info("project deleted", slog.String("project_id", p.ID), slog.String("user_id", userID))
	return nil
}

// JoinPublic adds the caller to a public project as a member. Joining twice
// is a no-op.
func (s *ProjectService) JoinPublic(ctx context.Context, userID, projectID string) (*model.Project, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Visibility != model.VisibilityPublic {
		return nil, apperror.Forbidden("Project is private")
	}
	return s.join(ctx, p, userID, model.RoleMember)
}

// JoinPrivate admits the caller to the private project with exactly this
// name when password matches. Both comparisons are case-sensitive. Any
// mismatch is reported as not found so private names are not confirmed.
func (s *ProjectService) JoinPrivate(ctx context.Context, userID, name, password string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return nil, apperror.ValidationFailed("name", "Project name and password are required")
	}
	p, err := s.store.GetProjectByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if p.Visibility != model.VisibilityPrivate || !auth.SecretEqual(p.Password, password) {
		s.logger.Info("private join rejected", slog.String("project_id", p.ID), slog.String("user_id", userID))
		return nil, apperror.NotFound("project", name)
	}
	return s.join(ctx, p, userID, model.RoleMember)
}

// join inserts the membership and notifies on first join only.
func (s *ProjectService) join(ctx context.Context, p *model.Project, userID string, role model.Role) (*model.Project, error) {
	added, err := s.store.AddMember(ctx, p.ID, userID, role)
	if err != nil {
		return nil, err
	}
	if added {
		announceJoin(ctx, s.notifier, p, userID)
	}
	return s.store.GetProject(ctx, p.ID)
}

// announceJoin sends member_joined to every owner/admin and to the new member.
func announceJoin(ctx context.Context, n *notify.Notifier, p *model.Project, userID string) {
	meta := map[string]any{"projectId": p.ID, "userId": userID}
	n.NotifyMany(ctx, notify.Except(authz.PrivilegedIDs(p), userID), model.NotifyMemberJoined,
		fmt.Sprintf("A new member joined %s", p.Name), meta)
	n.NotifyMany(ctx, []string{userID}, model.NotifyMemberJoined,
		fmt.Sprintf("You joined %s", p.Name), meta)
}

// Leave removes the caller from the project.
func (s *ProjectService) Leave(ctx context.Context, userID, projectID string) error {
	p, d, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return err
	}
	if d.Owner() {
		return apperror.ValidationFailed("role", "The owner cannot leave the project")
	}
	if err := s.store.RemoveMember(ctx, p.ID, userID); err != nil {
		return err
	}
	s.pub.EvictUser(userID, realtime.ProjectRoom(p.ID))
	s.logger.Info("member left", slog.String("project_id", p.ID), slog.String("user_id", userID))
	return nil
}

// RemoveMember removes memberID. Admins can remove plain members; removing an
// admin takes the owner.
func (s *ProjectService) RemoveMember(ctx context.Context, userID, projectID, memberID string) error {
	p, d, err := loadProject(ctx, s.store, projectID, userID, model.RoleAdmin)
	if err != nil {
		return err
	}
	role, ok := authz.RoleOf(p, memberID)
	if !ok {
		return apperror.NotFound("member", memberID)
	}
	switch {
	case role == model.RoleOwner:
		return apperror.ValidationFailed("member", "The owner cannot be removed")
	case role == model.RoleAdmin && !d.Owner():
		return apperror.Forbidden("Only the owner can remove an admin")
	}

	if err := s.store.RemoveMember(ctx, p.ID, memberID); err != nil {
		return err
	}
	s.pub.EvictUser(memberID, realtime.ProjectRoom(p.ID))
	s.notifier.NotifyMany(ctx, []string{memberID}, model.NotifyMemberRemoved,
		fmt.Sprintf("You were removed from %s", p.Name), map[string]any{"projectId": p.ID})
	return nil
}

// ChangeRole sets memberID's role to admin or member. Owner only.
func (s *ProjectService) ChangeRole(ctx context.Context, userID, projectID, memberID string, role model.Role) (*model.Project, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleOwner)
	if err != nil {
		return nil, err
	}
	if role != model.RoleAdmin && role != model.RoleMember {
		return nil, apperror.ValidationFailed("role", "Role must be admin or member")
	}
	current, ok := authz.RoleOf(p, memberID)
	if !ok {
		return nil, apperror.NotFound("member", memberID)
	}
	if current == model.RoleOwner {
		return nil, apperror.ValidationFailed("member", "The owner's role cannot be changed")
	}
	if current == role {
		return p, nil
	}

	if err := s.store.SetMemberRole(ctx, p.ID, memberID, role); err != nil {
		return nil, err
	}
	s.notifier.NotifyMany(ctx, []string{memberID}, model.NotifyRoleChanged,
		fmt.Sprintf("Your role in %s is now %s", p.Name, role),
		map[string]any{"projectId": p.ID, "role": string(role)})
	return s.store.GetProject(ctx, p.ID)
}

func parseVisibility(v model.Visibility) (model.Visibility, error) {
	switch model.Visibility(strings.ToLower(strings.TrimSpace(string(v)))) {
	case "", model.VisibilityPublic:
		return model.VisibilityPublic, nil
	case model.VisibilityPrivate:
		return model.VisibilityPrivate, nil
	}
	return "", apperror.ValidationFailed("visibility", "Visibility must be public or private")
}
