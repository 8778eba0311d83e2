package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chillcar/service-booking/internal/domain/notification"
	"github.com/chillcar/service-booking/internal/platform/database"
)

// NotificationModel is the GORM model for the notifications table.
type NotificationModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	Type      string          `gorm:"size:40;not null"`
	Title     string          `gorm:"size:200;not null"`
	Message   string          `gorm:"type:text;not null"`
	Meta      json.RawMessage `gorm:"type:jsonb"`
	Read      bool            `gorm:"not null;default:false;index"`
	ReadAt    *time.Time      `gorm:""`
	CreatedAt time.Time       `gorm:"not null;index"`
}

func (NotificationModel) TableName() string { return "notifications" }

// GormNotificationRepository is the GORM-based implementation of notification.Repository.
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository.
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Save persists a notification. Saving an id twice is a no-op, so redelivered messages are harmless.
func (r *GormNotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	var meta json.RawMessage
	if len(n.Meta) > 0 {
		data, err := json.Marshal(n.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal notification meta: %w", err)
		}
		meta = data
	}
	m := NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Meta:      meta,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
	if err := database.Conn(ctx, r.db).Where(NotificationModel{ID: n.ID}).FirstOrCreate(&m).Error; err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

func (r *GormNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]*notification.Notification, int64, error) {
	query := func() *gorm.DB {
		q := database.Conn(ctx, r.db).Model(&NotificationModel{}).Where("user_id = ?", userID)
		if unreadOnly {
			q = q.Where("read = ?", false)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	var models []NotificationModel
	if err := query().Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	out := make([]*notification.Notification, len(models))
	for i, m := range models {
		var meta map[string]any
		if len(m.Meta) > 0 {
			if err := json.Unmarshal(m.Meta, &meta); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal notification meta: %w", err)
			}
		}
		out[i] = &notification.Notification{
			ID:        m.ID,
			UserID:    m.UserID,
			Type:      notification.Type(m.Type),
			Title:     m.Title,
			Message:   m.Message,
			Meta:      meta,
			Read:      m.Read,
			ReadAt:    m.ReadAt,
			CreatedAt: m.CreatedAt,
		}
	}
	return out, total, nil
}

func (r *GormNotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := database.Conn(ctx, r.db).Model(&NotificationModel{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *GormNotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	result := database.Conn(ctx, r.db).Model(&NotificationModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"read": true, "read_at": at.UTC()})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *GormNotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	result := database.Conn(ctx, r.db).Model(&NotificationModel{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]interface{}{"read": true, "read_at": at.UTC()})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", result.Error)
	}
	return result.RowsAffected, nil
}
