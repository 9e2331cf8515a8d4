package service

import (
	"context"
	"testing"

	"github.com/sakif/unityboard/internal/model"
)

func TestNotificationInboxIsScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	svc := NewNotificationService(env.db, env.logger)
	ctx := context.Background()

	first, err := env.notifier.Notify(ctx, alice.ID, model.NotifyTaskAssigned, "one", nil)
	mustNoErr(t, err)
	_, err = env.notifier.Notify(ctx, alice.ID, model.NotifyTaskComment, "two", nil)
	mustNoErr(t, err)

	inbox, err := svc.List(ctx, alice.ID, 0, 0)
	mustNoErr(t, err)
	if len(inbox.Notifications) != 2 || inbox.Unread != 2 {
		t.Fatalf("inbox = %+v", inbox)
	}

	assertKind(t, svc.MarkRead(ctx, bob.ID, first.ID), errNotFound)
	assertKind(t, svc.Delete(ctx, bob.ID, first.ID), errNotFound)

	mustNoErr(t, svc.MarkRead(ctx, alice.ID, first.ID))
	n, err := svc.UnreadCount(ctx, alice.ID)
	mustNoErr(t, err)
	if n != 1 {
		t.Errorf("unread = %d, want 1", n)
	}

	mustNoErr(t, svc.MarkAllRead(ctx, alice.ID))
	n, err = svc.UnreadCount(ctx, alice.ID)
	mustNoErr(t, err)
	if n != 0 {
		t.Errorf("unread after mark all = %d", n)
	}

	assertKind(t, svc.MarkRead(ctx, alice.ID, " "), errValidation)

	mustNoErr(t, svc.Delete(ctx, alice.ID, first.ID))
	mustNoErr(t, svc.DeleteAll(ctx, alice.ID))
	inbox, err = svc.List(ctx, alice.ID, 0, 0)
	mustNoErr(t, err)
	if len(inbox.Notifications) != 0 {
		t.Errorf("inbox not cleared: %+v", inbox.Notifications)
	}
}
