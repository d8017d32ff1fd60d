// Package service contains the business logic layer: validation, permission
// rules and orchestration, behind plain interfaces so the HTTP layer stays
// thin and the tests stay fast.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/appdeck/internal/apperror"
	"github.com/sakif/appdeck/internal/live"
	"github.com/sakif/appdeck/internal/model"
	"github.com/sakif/appdeck/internal/repository"
)

// Pagination bounds shared by the list endpoints.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Broadcaster pushes a message to every open live connection a user has and
// reports how many connections it was queued to. *live.Registry implements
// it; tests substitute a recorder.
type Broadcaster interface {
	BroadcastToUser(userID string, msg live.Message) int
}

var _ Broadcaster = (*live.Registry)(nil)

// Notifier is the slice of NotificationService the other services depend
// on. Keeping it an interface lets their tests record dispatches without a
// database or a registry.
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}

// NotificationService persists notifications and pushes them to live
// connections.
//
// DELIVERY CONTRACT: the row is written first and is the durable record.
// The live push is best-effort, at-most-once — an offline recipient simply
// finds the row on their next fetch. There is no idempotency here; callers
// are responsible for diffing state (e.g. only the false→true half of a
// visibility flip notifies) before calling Notify.
type NotificationService struct {
	notifications repository.NotificationRepository
	broadcaster   Broadcaster
	logger        *slog.Logger
}

var _ Notifier = (*NotificationService)(nil)

// NewNotificationService creates a NotificationService.
func NewNotificationService(
	notifications repository.NotificationRepository,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		broadcaster:   broadcaster,
		logger:        logger,
	}
}

// Notify persists the notification, then pushes it to the recipient's open
// connections. A persistence failure is returned; a push reaching zero
// connections is not an error.
func (s *NotificationService) Notify(ctx context.Context, n *model.Notification) error {
	if n.UserID == "" {
		return apperror.ValidationFailed("userId", "notification recipient is required")
	}
	if n.Type == "" {
		return apperror.ValidationFailed("type", "notification type is required")
	}

	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("service/notification: persisting notification: %w", err)
	}

	delivered := s.broadcaster.BroadcastToUser(n.UserID, live.Message{
		Type: live.MessageTypeNotification,
		Data: n,
	})

	s.logger.Info("notification dispatched",
		slog.String("id", n.ID),
		slog.String("userID", n.UserID),
		slog.String("type", string(n.Type)),
		slog.Int("liveDeliveries", delivered),
	)
	return nil
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.notifications.ListNotifications(ctx, userID, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("service/notification: listing notifications: %w", err)
	}
	return items, nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("service/notification: counting unread: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification as read. The repository enforces
// ownership — a notification belonging to someone else reads as NotFound.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if id == "" {
		return apperror.ValidationFailed("id", "notification ID is required")
	}
	return s.notifications.MarkRead(ctx, id, userID)
}

// MarkAllRead marks every unread notification for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.notifications.MarkAllRead(ctx, userID)
}
