package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chillcar/service-booking/internal/domain/notification"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// NotificationService stores delivered notifications and serves each user's feed.
type NotificationService struct {
	clock
	repo   notification.Repository
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(repo notification.Repository, logger *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

// WithClock replaces the time source.
func (s *NotificationService) WithClock(now func() time.Time) *NotificationService {
	s.now = now
	return s
}

// Deliver persists one message. Delivering the same message twice stores it once.
func (s *NotificationService) Deliver(ctx context.Context, m notification.Message) error {
	if m.UserID == uuid.Nil {
		return domain.NewValidationError("notification recipient is required")
	}
	n := notification.FromMessage(m, s.current())
	if err := s.repo.Save(ctx, n); err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	s.logger.Debug("notification delivered",
		zap.String("notification_id", n.ID.String()),
		zap.String("user_id", n.UserID.String()),
		zap.String("type", string(n.Type)),
	)
	return nil
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]NotificationDTO, int64, error) {
	page, limit = pageBounds(page, limit)
	items, total, err := s.repo.ListByUser(ctx, userID, unreadOnly, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]NotificationDTO, len(items))
	for i, n := range items {
		out[i] = toNotificationDTO(n)
	}
	return out, total, nil
}

// UnreadCount returns how many of the user's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one of the user's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	ok, err := s.repo.MarkRead(ctx, id, userID, s.current())
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewNotFoundError("Notification", id.String())
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.current())
}
