package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/realtime"
	"github.com/sakif/unityboard/internal/repository"
	"github.com/sakif/unityboard/internal/repository/sqlite"
)

type pushed struct {
	userID string
	event  string
}

type recordingPublisher struct {
	mu     sync.Mutex
	pushes []pushed
}

func (p *recordingPublisher) EmitToRoom(string, string, any) {}
func (p *recordingPublisher) EvictUser(string, string) {}
func (p *recordingPublisher) CloseRoom(string) {}

func (p *recordingPublisher) EmitToUser(userID, event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, pushed{userID: userID, event: event})
}

// failingRepo rejects writes for one recipient.
type failingRepo struct {
	repository.NotificationRepository
	failFor string
}

func (f *failingRepo) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.UserID == f.failFor {
		return errors.New("disk full")
	}
	return f.NotificationRepository.CreateNotification(ctx, n)
}

func setup(t *testing.T) (*sqlite.DB, *recordingPublisher, *slog.Logger) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, &recordingPublisher{}, slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotify_StoresThenPushesToRecipientOnly(t *testing.T) {
	db, pub, logger := setup(t)
	n := New(db, pub, logger)
	ctx := context.Background()

	note, err := n.Notify(ctx, "u1", model.NotifyTaskAssigned, "You were assigned", map[string]any{"taskId": "t1"})
	require.NoError(t, err)
	assert.NotEmpty(t, note.ID)

	list, err := db.ListNotifications(ctx, "u1", repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t1", list[0].Metadata["taskId"])

	require.Len(t, pub.pushes, 1)
	assert.Equal(t, pushed{userID: "u1", event: realtime.EventNotificationNew}, pub.pushes[0])
}

func TestNotify_RejectsEmptyRecipient(t *testing.T) {
	db, pub, logger := setup(t)
	_, err := New(db, pub, logger).Notify(context.Background(), " ", model.NotifyTaskDue, "x", nil)
	assert.Error(t, err)
	assert.Empty(t, pub.pushes)
}

func TestNotifyMany_DedupsRecipients(t *testing.T) {
	db, pub, logger := setup(t)
	n := New(db, pub, logger)
	ctx := context.Background()

	count := n.NotifyMany(ctx, []string{"a", "b", "a", "", "c"}, model.NotifyMemberJoined, "joined", nil)
	assert.Equal(t, 3, count)

	for _, id := range []string{"a", "b", "c"} {
		unread, err := db.CountUnread(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, unread, "recipient %s", id)
	}
	assert.Len(t, pub.pushes, 3)
}

func TestNotifyMany_PartialFailureDoesNotBlockOthers(t *testing.T) {
	db, pub, logger := setup(t)
	n := New(&failingRepo{NotificationRepository: db, failFor: "b"}, pub, logger)
	ctx := context.Background()

	count := n.NotifyMany(ctx, []string{"a", "b", "c"}, model.NotifyMemberJoined, "joined", map[string]any{"projectId": "p"})
	assert.Equal(t, 2, count)

	unread, err := db.CountUnread(ctx, "b")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestUniqueAndExcept(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Unique([]string{" a", "b", "a ", ""}))
	assert.Equal(t, []string{"a", "c"}, Except([]string{"a", "b", "c"}, "b"))
	assert.Empty(t, Unique(nil))
}
