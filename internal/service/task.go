package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/authz"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/notify"
	"github.com/sakif/unityboard/internal/repository"
)

const defaultPriority = "medium"

// TaskStore is what TaskService needs from the repository layer.
type TaskStore interface {
	repository.TaskRepository
	repository.ProjectRepository
	repository.UserRepository
}

// TaskService manages tasks. Any project member may create, edit and delete
// tasks.
type TaskService struct {
	store    TaskStore
	notifier *notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewTaskService(store TaskStore, notifier *notify.Notifier, logger *slog.Logger) *TaskService {
	return &TaskService{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// TaskInput is the body of POST /api/tasks.
type TaskInput struct {
	Title       string
	Description string
	Priority    string
	Status      string
	DueDate     *time.Time
	Assignees   []string
	Labels      []string
}

// TaskPatch is a shallow merge. Nil fields are left unchanged; ClearDueDate
// removes the due date.
type TaskPatch struct {
	Title        *string
	Description  *string
	Priority     *string
	Status       *string
	DueDate      *time.Time
	ClearDueDate bool
	Assignees    *[]string
	Labels       *[]string
}

// Create adds a task and notifies its assignees, except the creator. A task
// created as done counts toward the creator's TasksCompleted.
func (s *TaskService) Create(ctx context.Context, userID, projectID string, in TaskInput) (*model.Task, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}

	title, err := requireText("title", "Title", in.Title, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	desc := strings.TrimSpace(in.Description)
	if err := checkLength("description", "Description", desc, MaxDescriptionLength); err != nil {
		return nil, err
	}
	status := model.StatusTodo
	if in.Status != "" {
		if status, err = parseStatus(in.Status); err != nil {
			return nil, err
		}
	}
	assignees, err := memberIDs(p, in.Assignees)
	if err != nil {
		return nil, err
	}
	labels, err := cleanTags(in.Labels)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		ProjectID:   p.ID,
		Title:       title,
		Description: desc,
		Priority:    priorityOr(in.Priority, defaultPriority),
		Status:      status,
		DueDate:     in.DueDate,
		Assignees:   assignees,
		Labels:      labels,
		Comments:    []model.Comment{},
		CreatedBy:   userID,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	if task.Status == model.StatusDone {
		bumpAnalytics(ctx, s.store, s.logger, userID, model.StatTasksCompleted)
	}
	s.notifyAssigned(ctx, task, task.Assignees, userID)
	return task, nil
}

// List returns a project's tasks, optionally filtered.
func (s *TaskService) List(ctx context.Context, userID, projectID string, status, assignee string) ([]model.Task, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	filter := repository.TaskFilter{Assignee: strings.TrimSpace(assignee)}
	if status != "" {
		if filter.Status, err = parseStatus(status); err != nil {
			return nil, err
		}
	}
	return s.store.ListTasks(ctx, p.ID, filter)
}

// Get returns one task to a member of its project.
func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, _, err := s.load(ctx, userID, taskID)
	return task, err
}

// Update merges patch into the task. Moving a task to done credits the
// caller's TasksCompleted counter; newly added assignees are notified.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, patch TaskPatch) (*model.Task, error) {
	task, p, err := s.load(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	prevStatus := task.Status
	prevAssignees := task.Assignees

	if patch.Title != nil {
		if task.Title, err = requireText("title", "Title", *patch.Title, MaxTitleLength); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		if err := checkLength("description", "Description", desc, MaxDescriptionLength); err != nil {
			return nil, err
		}
		task.Description = desc
	}
	if patch.Priority != nil {
		task.Priority = priorityOr(*patch.Priority, task.Priority)
	}
	if patch.Status != nil {
		if task.Status, err = parseStatus(*patch.Status); err != nil {
			return nil, err
		}
	}
	switch {
	case patch.ClearDueDate:
		task.DueDate = nil
		task.DueNotified = false
	case patch.DueDate != nil:
		if task.DueDate == nil || !task.DueDate.Equal(*patch.DueDate) {
			task.DueNotified = false
		}
		task.DueDate = patch.DueDate
	}
	if patch.Assignees != nil {
		if task.Assignees, err = memberIDs(p, *patch.Assignees); err != nil {
			return nil, err
		}
	}
	if patch.Labels != nil {
		if task.Labels, err = cleanTags(*patch.Labels); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	if prevStatus != model.StatusDone && task.Status == model.StatusDone {
		bumpAnalytics(ctx, s.store, s.logger, userID, model.StatTasksCompleted)
	}
	s.notifyAssigned(ctx, task, added(prevAssignees, task.Assignees), userID)
	return task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	task, _, err := s.load(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, task.ID); err != nil {
		return err
	}
	s.logger.Info("task deleted", slog.String("task_id", task.ID), slog.String("user_id", userID))
	return nil
}

// AddComment appends a comment and notifies the creator and assignees.
func (s *TaskService) AddComment(ctx context.Context, userID, taskID, text string) (*model.Task, error) {
	task, _, err := s.load(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	text, err = requireText("text", "Comment", text, MaxMessageLength)
	if err != nil {
		return nil, err
	}

	task.Comments = append(task.Comments, model.Comment{
		ID:        xid.New().String(),
		User:      userID,
		Text:      text,
		CreatedAt: s.now().UTC(),
	})
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	recipients := notify.Except(append([]string{task.CreatedBy}, task.Assignees...), userID)
	s.notifier.NotifyMany(ctx, recipients, model.NotifyTaskComment,
		fmt.Sprintf("New comment on %q", task.Title),
		map[string]any{"taskId": task.ID, "projectId": task.ProjectID})
	return task, nil
}

// load fetches a task and checks the caller is a member of its project.
func (s *TaskService) load(ctx context.Context, userID, taskID string) (*model.Task, *model.Project, error) {
	task, err := s.store.GetTask(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return nil, nil, err
	}
	p, _, err := loadProject(ctx, s.store, task.ProjectID, userID, model.RoleMember)
	if err != nil {
		return nil, nil, err
	}
	return task, p, nil
}

func (s *TaskService) notifyAssigned(ctx context.Context, task *model.Task, assignees []string, actorID string) {
	s.notifier.NotifyMany(ctx, notify.Except(assignees, actorID), model.NotifyTaskAssigned,
		fmt.Sprintf("You were assigned to %q", task.Title),
		map[string]any{"taskId": task.ID, "projectId": task.ProjectID})
}

func parseStatus(s string) (model.TaskStatus, error) {
	st, ok := model.ParseTaskStatus(s)
	if !ok {
		return "", apperror.ValidationFailed("status", "Status must be todo, in-progress or done")
	}
	return st, nil
}

func priorityOr(p, fallback string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return fallback
	}
	return p
}

// memberIDs dedups ids and rejects any that are not members of p.
func memberIDs(p *model.Project, ids []string) ([]string, error) {
	out := notify.Unique(ids)
	for _, id := range out {
		if _, ok := authz.RoleOf(p, id); !ok {
			return nil, apperror.ValidationFailed("assignees", "Assignees must be project members")
		}
	}
	return out, nil
}

// added returns the ids in next that are not in prev.
func added(prev, next []string) []string {
	had := make(map[string]bool, len(prev))
	for _, id := range prev {
		had[id] = true
	}
	var out []string
	for _, id := range next {
		if !had[id] {
			out = append(out, id)
		}
	}
	return out
}
