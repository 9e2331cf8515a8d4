// Package repository declares the storage contracts the service layer depends on.
// internal/repository/sqlite provides the implementation; tests use it in-memory.
package repository

import (
	"context"
	"time"

	"github.com/sakif/unityboard/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	UpdateUserProfile(ctx context.Context, user *model.User) error
	IncrementAnalytics(ctx context.Context, userID string, field model.AnalyticsField, delta int) error
}

type ProjectRepository interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetProjectByName(ctx context.Context, name string) (*model.Project, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]model.Project, error)
	ListPublicProjects(ctx context.Context, opts ListOptions) ([]model.Project, error)
	UpdateProject(ctx context.Context, project *model.Project) error
	// AddMember is a no-op returning false when the user is already a member.
	AddMember(ctx context.Context, projectID, userID string, role model.Role) (bool, error)
	RemoveMember(ctx context.Context, projectID, userID string) error
	SetMemberRole(ctx context.Context, projectID, userID string, role model.Role) error
	// DeleteProjectCascade removes the project and every document scoped to it.
	DeleteProjectCascade(ctx context.Context, id string) error
}

type TaskFilter struct {
	Status   model.TaskStatus
	Assignee string
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, projectID string, filter TaskFilter) ([]model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, id string) error
	// ListDueTasks returns unfinished, not yet reminded tasks due before the cutoff.
	ListDueTasks(ctx context.Context, before time.Time) ([]model.Task, error)
	MarkTaskDueNotified(ctx context.Context, id string) error
}

type ThreadRepository interface {
	CreateThread(ctx context.Context, thread *model.Thread) error
	GetThread(ctx context.Context, id string) (*model.Thread, error)
	ListThreads(ctx context.Context, projectID string) ([]model.Thread, error)
	UpdateThread(ctx context.Context, thread *model.Thread) error
	TouchThread(ctx context.Context, id string, at time.Time) error
	// DeleteThread removes the thread and its messages.
	DeleteThread(ctx context.Context, id string) error
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	ListMessages(ctx context.Context, threadID string, opts ListOptions) ([]model.Message, error)
	// SoftDeleteMessage tombstones the message and erases its text.
	SoftDeleteMessage(ctx context.Context, id, deletedBy string, at time.Time) error
	ThreadParticipants(ctx context.Context, threadID string) ([]string, error)
}

type ResourceRepository interface {
	CreateResource(ctx context.Context, res *model.Resource) error
	GetResource(ctx context.Context, id string) (*model.Resource, error)
	ListResources(ctx context.Context, projectID string) ([]model.Resource, error)
	DeleteResource(ctx context.Context, id string) error
}

type LearningRepository interface {
	CreateLearning(ctx context.Context, l *model.Learning) error
	GetLearning(ctx context.Context, id string) (*model.Learning, error)
	ListLearning(ctx context.Context, projectID, creatorID string) ([]model.Learning, error)
	UpdateLearning(ctx context.Context, l *model.Learning) error
	DeleteLearning(ctx context.Context, id string) error
}

type SnippetRepository interface {
	CreateSnippet(ctx context.Context, snippet *model.Snippet) error
	GetSnippet(ctx context.Context, id string) (*model.Snippet, error)
	ListSnippets(ctx context.Context, projectID string, opts ListOptions) ([]model.Snippet, error)
	UpdateSnippet(ctx context.Context, snippet *model.Snippet) error
	DeleteSnippet(ctx context.Context, id string) error
}

type SolutionRepository interface {
	CreateSolution(ctx context.Context, s *model.Solution) error
	GetSolution(ctx context.Context, id string) (*model.Solution, error)
	ListSolutions(ctx context.Context, projectID string) ([]model.Solution, error)
	UpdateSolution(ctx context.Context, s *model.Solution) error
	DeleteSolution(ctx context.Context, id string) error
}

type InvitationRepository interface {
	CreateInvitation(ctx context.Context, inv *model.Invitation) error
	GetInvitation(ctx context.Context, id string) (*model.Invitation, error)
	// FindInvitation looks an invitation up by short code or long token.
	FindInvitation(ctx context.Context, codeOrToken string) (*model.Invitation, error)
	ListInvitations(ctx context.Context, projectID string) ([]model.Invitation, error)
	SetInvitationEnabled(ctx context.Context, id string, enabled bool) error
	// ClaimInvitationUse counts one use unless the invitation is disabled or
	// already at its limit, in one statement. It reports whether a use was
	// claimed.
	ClaimInvitationUse(ctx context.Context, id string) (bool, error)
	// ReleaseInvitationUse gives back a claimed use that was not needed.
	ReleaseInvitationUse(ctx context.Context, id string) error
	DeleteInvitation(ctx context.Context, id string) error
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, opts ListOptions) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, userID, id string) error
	DeleteAllNotifications(ctx context.Context, userID string) error
}

// Store bundles every repository. *sqlite.DB satisfies it.
type Store interface {
	UserRepository
	ProjectRepository
	TaskRepository
	ThreadRepository
	MessageRepository
	ResourceRepository
	LearningRepository
	SnippetRepository
	SolutionRepository
	InvitationRepository
	NotificationRepository
}
