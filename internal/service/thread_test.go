package service

import (
	"context"
	"testing"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/realtime"
	"github.com/sakif/unityboard/internal/repository"
)

type discussionFixture struct {
	env      *testEnv
	owner    *model.User
	member   *model.User
	other    *model.User
	project  *model.Project
	threads  *ThreadService
	messages *MessageService
}

func newDiscussionFixture(t *testing.T) *discussionFixture {
	t.Helper()
	env := newTestEnv(t)
	owner := env.user(t, "owner")
	member := env.user(t, "member")
	other := env.user(t, "other")
	p := env.project(t, "Apollo", owner, map[*model.User]model.Role{
		member: model.RoleMember,
		other:  model.RoleMember,
	})
	return &discussionFixture{
		env:      env,
		owner:    owner,
		member:   member,
		other:    other,
		project:  p,
		threads:  NewThreadService(env.db, env.pub, env.logger),
		messages: NewMessageService(env.db, env.notifier, env.pub, env.logger),
	}
}

// A member posting into a locked thread gets 423 and no message is stored.
func TestMessagePost_LockedThreadRejectsMembers(t *testing.T) {
	f := newDiscussionFixture(t)
	ctx := context.Background()

	th, err := f.threads.Create(ctx, f.owner.ID, f.project.ID, "Release plan", nil)
	mustNoErr(t, err)
	_, err = f.threads.Update(ctx, f.owner.ID, th.ID, ThreadPatch{Locked: ptr(true)})
	mustNoErr(t, err)

	_, err = f.messages.Post(ctx, f.member.ID, th.ID, "hello")
	assertKind(t, err, apperror.ErrLocked)

	msgs, err := f.env.db.ListMessages(ctx, th.ID, repository.ListOptions{Limit: 50})
	mustNoErr(t, err)
	if len(msgs) != 0 {
		t.Fatalf("stored %d messages in a locked thread", len(msgs))
	}
	if n := f.env.pub.count(realtime.EventMessageNew); n != 0 {
		t.Errorf("message:new emitted %d times", n)
	}

	// Owners and admins can still post.
	_, err = f.messages.Post(ctx, f.owner.ID, th.ID, "closing notes")
	mustNoErr(t, err)
}

func TestMessagePost_EmitsAndNotifiesParticipants(t *testing.T) {
	f := newDiscussionFixture(t)
	ctx := context.Background()

	th, err := f.threads.Create(ctx, f.owner.ID, f.project.ID, "Standup", []string{"daily"})
	mustNoErr(t, err)

	_, err = f.messages.Post(ctx, f.member.ID, th.ID, "first")
	mustNoErr(t, err)
	_, err = f.messages.Post(ctx, f.other.ID, th.ID, "second")
	mustNoErr(t, err)

	if n := f.env.pub.count(realtime.EventMessageNew); n != 2 {
		t.Errorf("message:new = %d, want 2", n)
	}
	// Creator hears about both replies; member only about the one after theirs.
	if n := f.env.notifications(t, f.owner.ID, model.NotifyThreadReply); n != 2 {
		t.Errorf("owner thread_reply = %d, want 2", n)
	}
	if n := f.env.notifications(t, f.member.ID, model.NotifyThreadReply); n != 1 {
		t.Errorf("member thread_reply = %d, want 1", n)
	}
	if n := f.env.notifications(t, f.other.ID, model.NotifyThreadReply); n != 0 {
		t.Errorf("poster notified about own message")
	}

	_, err = f.messages.Post(ctx, f.member.ID, th.ID, "   ")
	assertKind(t, err, errValidation)
}

func TestMessageDelete_TombstonesForEveryReader(t *testing.T) {
	f := newDiscussionFixture(t)
	ctx := context.Background()

	th, err := f.threads.Create(ctx, f.member.ID, f.project.ID, "Ideas", nil)
	mustNoErr(t, err)
	msg, err := f.messages.Post(ctx, f.member.ID, th.ID, "secret plan")
	mustNoErr(t, err)

	_, err = f.messages.Delete(ctx, f.other.ID, msg.ID)
	assertKind(t, err, errForbidden)

	deleted, err := f.messages.Delete(ctx, f.member.ID, msg.ID)
	mustNoErr(t, err)
	if !deleted.Deleted || deleted.Text != model.DeletedMessagePlaceholder {
		t.Errorf("deleted = %+v", deleted)
	}

	// Second delete, by a privileged member, is a no-op success.
	_, err = f.messages.Delete(ctx, f.owner.ID, msg.ID)
	mustNoErr(t, err)
	if n := f.env.pub.count(realtime.EventMessageDeleted); n != 1 {
		t.Errorf("message:deleted = %d, want 1", n)
	}

	for _, reader := range []*model.User{f.owner, f.member, f.other} {
		msgs, err := f.messages.List(ctx, reader.ID, th.ID, 0, 0)
		mustNoErr(t, err)
		if len(msgs) != 1 || msgs[0].Text != model.DeletedMessagePlaceholder {
			t.Errorf("reader %s sees %+v", reader.Name, msgs)
		}
	}

	stored, err := f.env.db.GetMessage(ctx, msg.ID)
	mustNoErr(t, err)
	if stored.Text == "secret plan" {
		t.Error("original text still in storage")
	}
}

func TestThreadUpdate_Permissions(t *testing.T) {
	f := newDiscussionFixture(t)
	ctx := context.Background()

	th, err := f.threads.Create(ctx, f.member.ID, f.project.ID, "Draft", nil)
	mustNoErr(t, err)

	got, err := f.threads.Update(ctx, f.member.ID, th.ID, ThreadPatch{Title: ptr("Final"), Tags: &[]string{"a", "a", "b"}})
	mustNoErr(t, err)
	if got.Title != "Final" || len(got.Tags) != 2 {
		t.Errorf("update = %+v", got)
	}

	_, err = f.threads.Update(ctx, f.other.ID, th.ID, ThreadPatch{Title: ptr("Hijack")})
	assertKind(t, err, errForbidden)

	_, err = f.threads.Update(ctx, f.member.ID, th.ID, ThreadPatch{Pinned: ptr(true)})
	assertKind(t, err, errForbidden)

	got, err = f.threads.Update(ctx, f.owner.ID, th.ID, ThreadPatch{Pinned: ptr(true)})
	mustNoErr(t, err)
	if !got.Pinned {
		t.Error("owner could not pin")
	}
	if n := f.env.pub.count(realtime.EventThreadUpdate); n != 3 {
		t.Errorf("thread:update = %d, want 3", n)
	}
}

func TestThreadDelete_RemovesMessages(t *testing.T) {
	f := newDiscussionFixture(t)
	ctx := context.Background()

	th, err := f.threads.Create(ctx, f.member.ID, f.project.ID, "Temp", nil)
	mustNoErr(t, err)
	msg, err := f.messages.Post(ctx, f.other.ID, th.ID, "hi")
	mustNoErr(t, err)

	assertKind(t, f.threads.Delete(ctx, f.other.ID, th.ID), errForbidden)
	mustNoErr(t, f.threads.Delete(ctx, f.owner.ID, th.ID))

	_, err = f.threads.Get(ctx, f.member.ID, th.ID)
	assertKind(t, err, errNotFound)
	_, err = f.env.db.GetMessage(ctx, msg.ID)
	assertKind(t, err, errNotFound)
	if n := f.env.pub.count(realtime.EventThreadDeleted); n != 1 {
		t.Errorf("thread:deleted = %d, want 1", n)
	}
}

func TestThreadAccess_NonMember(t *testing.T) {
	f := newDiscussionFixture(t)
	ctx := context.Background()
	stranger := f.env.user(t, "stranger")

	th, err := f.threads.Create(ctx, f.owner.ID, f.project.ID, "Members only", nil)
	mustNoErr(t, err)

	_, err = f.threads.List(ctx, stranger.ID, f.project.ID)
	assertKind(t, err, errForbidden)
	_, err = f.messages.Post(ctx, stranger.ID, th.ID, "let me in")
	assertKind(t, err, errForbidden)
}
