package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

func createTestThread(t *testing.T, db *DB, projectID, userID, title string) *model.Thread {
	t.Helper()
	th := &model.Thread{ProjectID: projectID, Title: title, CreatedBy: userID}
	if err := db.CreateThread(context.Background(), th); err != nil {
		t.Fatalf("failed to create test thread: %v", err)
	}
	return th
}

func TestListThreads_PinnedFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "Owner", "owner@example.com")
	p := createTestProject(t, db, "Apollo", owner)

	createTestThread(t, db, p.ID, owner.ID, "general")
	pinned := createTestThread(t, db, p.ID, owner.ID, "rules")
	pinned.Pinned = true
	pinned.Locked = true
	if err := db.UpdateThread(ctx, pinned); err != nil {
		t.Fatalf("UpdateThread() error = %v", err)
	}
	// Activity on the unpinned thread must not move it above the pinned one.
	recent := createTestThread(t, db, p.ID, owner.ID, "recent")
	db.TouchThread(ctx, recent.ID, time.Now().Add(time.Hour))

	threads, err := db.ListThreads(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
	if len(threads) != 3 {
		t.Fatalf("len = %d, want 3", len(threads))
	}
	if threads[0].ID != pinned.ID || !threads[0].Locked {
		t.Errorf("first thread = %+v, want pinned+locked %q", threads[0], "rules")
	}
	if threads[1].ID != recent.ID {
		t.Errorf("second thread = %q, want most recently active", threads[1].Title)
	}
}

func TestMessages_SoftDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "Owner", "owner@example.com")
	p := createTestProject(t, db, "Apollo", owner)
	th := createTestThread(t, db, p.ID, owner.ID, "general")

	msg := &model.Message{ThreadID: th.ID, ProjectID: p.ID, User: owner.ID, Text: "secret"}
	if err := db.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	at := time.Now().UTC()
	if err := db.SoftDeleteMessage(ctx, msg.ID, owner.ID, at); err != nil {
		t.Fatalf("SoftDeleteMessage() error = %v", err)
	}

	got, err := db.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if !got.Deleted || got.DeletedBy != owner.ID || got.DeletedAt == nil {
		t.Errorf("tombstone fields not set: %+v", got)
	}
	if got.Text != "" {
		t.Errorf("Text = %q, original text must be erased", got.Text)
	}
	if got.Redacted().Text != model.DeletedMessagePlaceholder {
		t.Errorf("Redacted().Text = %q", got.Redacted().Text)
	}

	msgs, _ := db.ListMessages(ctx, th.ID, repository.ListOptions{})
	if len(msgs) != 1 {
		t.Errorf("tombstoned message must remain listed, got %d", len(msgs))
	}

	assertNotFound(t, db.SoftDeleteMessage(ctx, "missing", owner.ID, at))
}

func TestListMessages_OrderAndPaging(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "Owner", "owner@example.com")
	bob := createTestUser(t, db, "Bob", "bob@example.com")
	p := createTestProject(t, db, "Apollo", owner)
	th := createTestThread(t, db, p.ID, owner.ID, "general")

	texts := []string{"one", "two", "three", "four"}
	for i, text := range texts {
		author := owner.ID
		if i%2 == 1 {
			author = bob.ID
		}
		db.CreateMessage(ctx, &model.Message{ThreadID: th.ID, ProjectID: p.ID, User: author, Text: text})
	}

	page, err := db.ListMessages(ctx, th.ID, repository.ListOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(page) != 2 || page[0].Text != "two" || page[1].Text != "three" {
		t.Errorf("page = %+v", page)
	}

	participants, err := db.ThreadParticipants(ctx, th.ID)
	if err != nil {
		t.Fatalf("ThreadParticipants() error = %v", err)
	}
	if len(participants) != 2 {
		t.Errorf("participants = %v, want 2 distinct", participants)
	}
}

func TestDeleteThread_RemovesMessages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "Owner", "owner@example.com")
	p := createTestProject(t, db, "Apollo", owner)
	th := createTestThread(t, db, p.ID, owner.ID, "general")
	db.CreateMessage(ctx, &model.Message{ThreadID: th.ID, ProjectID: p.ID, User: owner.ID, Text: "hi"})

	if err := db.DeleteThread(ctx, th.ID); err != nil {
		t.Fatalf("DeleteThread() error = %v", err)
	}
	_, err := db.GetThread(ctx, th.ID)
	assertNotFound(t, err)
	if n := countRows(t, db, "messages", p.ID); n != 0 {
		t.Errorf("%d messages left behind", n)
	}
	assertNotFound(t, db.DeleteThread(ctx, th.ID))
}
