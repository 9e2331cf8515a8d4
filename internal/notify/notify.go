// Package notify persists notifications and pushes them to their recipient.
//
// DELIVERY SEMANTICS:
//   - The notification row is written first; a failed insert is an error.
//   - The realtime push happens after the insert and is best effort. A client
//     that is offline picks the notification up from the REST list on load.
//
// Every push is addressed to exactly one user (realtime.Publisher.EmitToUser),
// so clients never see notifications meant for someone else.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/realtime"
	"github.com/sakif/unityboard/internal/repository"
)

// maxConcurrentWrites bounds NotifyMany. SQLite serialises writers anyway.
const maxConcurrentWrites = 8

// Notifier is shared by every service that produces notifications.
type Notifier struct {
	repo   repository.NotificationRepository
	pub    realtime.Publisher
	logger *slog.Logger
}

func New(repo repository.NotificationRepository, pub realtime.Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{repo: repo, pub: pub, logger: logger}
}

// Notify stores one notification for userID and pushes it as
// "notification:new" to that user's open connections.
func (n *Notifier) Notify(ctx context.Context, userID, kind, message string, metadata map[string]any) (*model.Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("notify: recipient must not be empty")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	note := &model.Notification{
		UserID:   userID,
		Type:     kind,
		Message:  message,
		Metadata: metadata,
	}
	if err := n.repo.CreateNotification(ctx, note); err != nil {
		return nil, fmt.Errorf("notify: storing %s for %s: %w", kind, userID, err)
	}

	if n.pub != nil {
		n.pub.EmitToUser(userID, realtime.EventNotificationNew, note)
	}
	return note, nil
}

// NotifyMany sends the same notification to each distinct recipient
// concurrently. Individual failures are logged and do not affect the other
// recipients. It returns how many notifications were stored.
func (n *Notifier) NotifyMany(ctx context.Context, userIDs []string, kind, message string, metadata map[string]any) int {
	recipients := Unique(userIDs)
	if len(recipients) == 0 {
		return 0
	}

	stored := make([]bool, len(recipients))
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(maxConcurrentWrites)
	for i, userID := range recipients {
		g.Go(func() error {
			// Each recipient gets its own metadata map; the store and the
			// realtime encoder must not share one across goroutines.
			meta := make(map[string]any, len(metadata))
			for k, v := range metadata {
				meta[k] = v
			}
			if _, err := n.Notify(gctx, userID, kind, message, meta); err != nil {
				n.logger.Warn("notification not delivered",
					slog.String("user_id", userID),
					slog.String("type", kind),
					slog.String("error", err.Error()),
				)
				return nil
			}
			stored[i] = true
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, ok := range stored {
		if ok {
			count++
		}
	}
	return count
}

// Unique drops empty and repeated ids, keeping first-seen order.
func Unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Except returns ids without skip.
func Except(ids []string, skip string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}
