package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/authz"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/notify"
	"github.com/sakif/unityboard/internal/realtime"
	"github.com/sakif/unityboard/internal/repository"
)

// DiscussionStore is what the thread and message services need.
type DiscussionStore interface {
	repository.ThreadRepository
	repository.MessageRepository
	repository.ProjectRepository
}

// ThreadService manages discussion threads. Changes are pushed to the
// project room as thread:update / thread:deleted.
type ThreadService struct {
	store  DiscussionStore
	pub    realtime.Publisher
	logger *slog.Logger
}

func NewThreadService(store DiscussionStore, pub realtime.Publisher, logger *slog.Logger) *ThreadService {
	return &ThreadService{store: store, pub: pub, logger: logger}
}

// ThreadPatch edits a thread. Title and tags belong to the creator and
// privileged members; pinned and locked to privileged members only.
type ThreadPatch struct {
	Title  *string
	Tags   *[]string
	Pinned *bool
	Locked *bool
}

func (s *ThreadService) Create(ctx context.Context, userID, projectID, title string, tags []string) (*model.Thread, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	title, err = requireText("title", "Title", title, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	if tags, err = cleanTags(tags); err != nil {
		return nil, err
	}

	t := &model.Thread{ProjectID: p.ID, Title: title, Tags: tags, CreatedBy: userID}
	if err := s.store.CreateThread(ctx, t); err != nil {
		return nil, err
	}
	s.pub.EmitToRoom(realtime.ProjectRoom(p.ID), realtime.EventThreadUpdate, t)
	return t, nil
}

// List returns pinned threads first, then by most recent activity.
func (s *ThreadService) List(ctx context.Context, userID, projectID string) ([]model.Thread, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	return s.store.ListThreads(ctx, p.ID)
}

func (s *ThreadService) Get(ctx context.Context, userID, threadID string) (*model.Thread, error) {
	t, _, err := loadThread(ctx, s.store, userID, threadID)
	return t, err
}

func (s *ThreadService) Update(ctx context.Context, userID, threadID string, patch ThreadPatch) (*model.Thread, error) {
	t, d, err := loadThread(ctx, s.store, userID, threadID)
	if err != nil {
		return nil, err
	}
	if (patch.Title != nil || patch.Tags != nil) && !authz.IsAuthorOrPrivileged(d, t.CreatedBy, userID) {
		return nil, apperror.Forbidden("Forbidden")
	}
	if (patch.Pinned != nil || patch.Locked != nil) && !d.Privileged() {
		return nil, apperror.Forbidden("Only owners and admins can pin or lock threads")
	}

	if patch.Title != nil {
		if t.Title, err = requireText("title", "Title", *patch.Title, MaxTitleLength); err != nil {
			return nil, err
		}
	}
	if patch.Tags != nil {
		if t.Tags, err = cleanTags(*patch.Tags); err != nil {
			return nil, err
		}
	}
	if patch.Pinned != nil {
		t.Pinned = *patch.Pinned
	}
	if patch.Locked != nil {
		t.Locked = *patch.Locked
	}

	if err := s.store.UpdateThread(ctx, t); err != nil {
		return nil, err
	}
	s.pub.EmitToRoom(realtime.ProjectRoom(t.ProjectID), realtime.EventThreadUpdate, t)
	return t, nil
}

// Delete removes the thread and all its messages.
func (s *ThreadService) Delete(ctx context.Context, userID, threadID string) error {
	t, d, err := loadThread(ctx, s.store, userID, threadID)
	if err != nil {
		return err
	}
	if !authz.IsAuthorOrPrivileged(d, t.CreatedBy, userID) {
		return apperror.Forbidden("Forbidden")
	}
	if err := s.store.DeleteThread(ctx, t.ID); err != nil {
		return err
	}
	s.pub.EmitToRoom(realtime.ProjectRoom(t.ProjectID), realtime.EventThreadDeleted,
		map[string]string{"id": t.ID, "project": t.ProjectID})
	s.logger.Info("thread deleted", slog.String("thread_id", t.ID), slog.String("user_id", userID))
	return nil
}

// loadThread fetches a thread and checks membership of its project.
func loadThread(ctx context.Context, store DiscussionStore, userID, threadID string) (*model.Thread, authz.Decision, error) {
	t, err := store.GetThread(ctx, strings.TrimSpace(threadID))
	if err != nil {
		return nil, authz.Decision{}, err
	}
	_, d, err := loadProject(ctx, store, t.ProjectID, userID, model.RoleMember)
	if err != nil {
		return nil, d, err
	}
	return t, d, nil
}

// MessageService posts and tombstones thread messages.
type MessageService struct {
	store    DiscussionStore
	notifier *notify.Notifier
	pub      realtime.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewMessageService(store DiscussionStore, notifier *notify.Notifier, pub realtime.Publisher, logger *slog.Logger) *MessageService {
	return &MessageService{store: store, notifier: notifier, pub: pub, logger: logger, now: time.Now}
}

// Post adds a message. Locked threads reject posts from non-privileged
// members with 423 and nothing is stored.
func (s *MessageService) Post(ctx context.Context, userID, threadID, text string) (*model.Message, error) {
	t, d, err := loadThread(ctx, s.store, userID, threadID)
	if err != nil {
		return nil, err
	}
	if t.Locked && !d.Privileged() {
		return nil, apperror.Locked("Thread is locked")
	}
	text, err = requireText("text", "Message", text, MaxMessageLength)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{ThreadID: t.ID, ProjectID: t.ProjectID, User: userID, Text: text}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.store.TouchThread(ctx, t.ID, msg.CreatedAt); err != nil {
		s.logger.Warn("thread activity not updated", slog.String("thread_id", t.ID), slog.String("error", err.Error()))
	}

	s.pub.EmitToRoom(realtime.ProjectRoom(t.ProjectID), realtime.EventMessageNew, msg)
	s.notifyParticipants(ctx, t, userID)
	return msg, nil
}

// notifyParticipants sends thread_reply to the thread creator and everyone
// who has posted in it, except the poster.
func (s *MessageService) notifyParticipants(ctx context.Context, t *model.Thread, posterID string) {
	participants, err := s.store.ThreadParticipants(ctx, t.ID)
	if err != nil {
		s.logger.Warn("thread participants not loaded", slog.String("thread_id", t.ID), slog.String("error", err.Error()))
		participants = nil
	}
	recipients := notify.Except(append([]string{t.CreatedBy}, participants...), posterID)
	s.notifier.NotifyMany(ctx, recipients, model.NotifyThreadReply,
		"New reply in "+t.Title,
		map[string]any{"threadId": t.ID, "projectId": t.ProjectID})
}

// List returns messages oldest first. Tombstones carry the placeholder text
// for every reader.
func (s *MessageService) List(ctx context.Context, userID, threadID string, limit, offset int) ([]model.Message, error) {
	t, _, err := loadThread(ctx, s.store, userID, threadID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, t.ID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i] = msgs[i].Redacted()
	}
	return msgs, nil
}

// Delete tombstones a message. The author or a privileged member may delete;
// the original text is erased from storage. Deleting twice succeeds.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) (*model.Message, error) {
	msg, err := s.store.GetMessage(ctx, strings.TrimSpace(messageID))
	if err != nil {
		return nil, err
	}
	_, d, err := loadProject(ctx, s.store, msg.ProjectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	if !authz.IsAuthorOrPrivileged(d, msg.User, userID) {
		return nil, apperror.Forbidden("Forbidden")
	}
	if msg.Deleted {
		redacted := msg.Redacted()
		return &redacted, nil
	}

	at := s.now().UTC()
	if err := s.store.SoftDeleteMessage(ctx, msg.ID, userID, at); err != nil {
		return nil, err
	}
	msg.Deleted = true
	msg.DeletedBy = userID
	msg.DeletedAt = &at
	msg.Text = ""
	redacted := msg.Redacted()

	s.pub.EmitToRoom(realtime.ProjectRoom(msg.ProjectID), realtime.EventMessageDeleted,
		map[string]string{"id": msg.ID, "thread": msg.ThreadID})
	return &redacted, nil
}
