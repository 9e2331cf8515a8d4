package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

// NotificationService is the caller's own inbox. Every operation is scoped to
// userID; another user's notification is reported as not found.
type NotificationService struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
}

func NewNotificationService(repo repository.NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

// Inbox is one page of notifications plus the unread total.
type Inbox struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

func (s *NotificationService) List(ctx context.Context, userID string, limit, offset int) (*Inbox, error) {
	list, err := s.repo.ListNotifications(ctx, userID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Inbox{Notifications: list, Unread: unread}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "Notification ID is required")
	}
	return s.repo.MarkNotificationRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "Notification ID is required")
	}
	return s.repo.DeleteNotification(ctx, userID, id)
}

func (s *NotificationService) DeleteAll(ctx context.Context, userID string) error {
	if err := s.repo.DeleteAllNotifications(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("notifications cleared", slog.String("user_id", userID))
	return nil
}
