package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	"github.com/chillcar/service-booking/internal/platform/database"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// ChangeRequestModel is the GORM model for the booking_change_requests table.
type ChangeRequestModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingID      uuid.UUID  `gorm:"type:uuid;index;not null"`
	RequestedBy    uuid.UUID  `gorm:"type:uuid;not null"`
	RequestedAt    time.Time  `gorm:"not null"`
	Reason         string     `gorm:"size:500"`
	Status         string     `gorm:"not null;size:20;index"`
	ResolvedBy     *uuid.UUID `gorm:"type:uuid"`
	ResolutionNote string     `gorm:"size:500"`
	ResolvedAt     *time.Time `gorm:""`
	CreatedAt      time.Time  `gorm:"not null"`
}

func (ChangeRequestModel) TableName() string {
	return "booking_change_requests"
}

// GormChangeRequestRepository is the GORM-based implementation of ChangeRequestRepository.
type GormChangeRequestRepository struct {
	db *gorm.DB
}

// NewGormChangeRequestRepository creates a new GormChangeRequestRepository.
func NewGormChangeRequestRepository(db *gorm.DB) *GormChangeRequestRepository {
	return &GormChangeRequestRepository{db: db}
}

func (r *GormChangeRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.ChangeRequest, error) {
	var model ChangeRequestModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("ChangeRequest", id.String())
		}
		return nil, fmt.Errorf("failed to find change request: %w", err)
	}
	return toDomainChangeRequest(&model), nil
}

func (r *GormChangeRequestRepository) FindPendingByBooking(ctx context.Context, bookingID uuid.UUID) (*bookingDomain.ChangeRequest, error) {
	var model ChangeRequestModel
	err := database.Conn(ctx, r.db).
		Where("booking_id = ? AND status = ?", bookingID, string(bookingDomain.ChangeRequestPending)).
		Order("created_at ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("pending ChangeRequest for booking", bookingID.String())
		}
		return nil, fmt.Errorf("failed to find pending change request: %w", err)
	}
	return toDomainChangeRequest(&model), nil
}

func (r *GormChangeRequestRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*bookingDomain.ChangeRequest, error) {
	var models []ChangeRequestModel
	if err := database.Conn(ctx, r.db).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list change requests: %w", err)
	}
	out := make([]*bookingDomain.ChangeRequest, len(models))
	for i := range models {
		out[i] = toDomainChangeRequest(&models[i])
	}
	return out, nil
}

func (r *GormChangeRequestRepository) Save(ctx context.Context, cr *bookingDomain.ChangeRequest) error {
	if err := database.Conn(ctx, r.db).Create(toChangeRequestModel(cr)).Error; err != nil {
		return fmt.Errorf("failed to save change request: %w", err)
	}
	return nil
}

// Update persists a resolution. Only pending rows can be resolved.
func (r *GormChangeRequestRepository) Update(ctx context.Context, cr *bookingDomain.ChangeRequest) error {
	m := toChangeRequestModel(cr)
	result := database.Conn(ctx, r.db).
		Model(&ChangeRequestModel{}).
		Where("id = ? AND status = ?", m.ID, string(bookingDomain.ChangeRequestPending)).
		Updates(map[string]interface{}{
			"status":          m.Status,
			"resolved_by":     m.ResolvedBy,
			"resolution_note": m.ResolutionNote,
			"resolved_at":     m.ResolvedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update change request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("change request was already resolved")
	}
	return nil
}

func toChangeRequestModel(cr *bookingDomain.ChangeRequest) *ChangeRequestModel {
	return &ChangeRequestModel{
		ID:             cr.ID(),
		BookingID:      cr.BookingID(),
		RequestedBy:    cr.RequestedBy(),
		RequestedAt:    cr.RequestedAt(),
		Reason:         cr.Reason(),
		Status:         string(cr.Status()),
		ResolvedBy:     cr.ResolvedBy(),
		ResolutionNote: cr.ResolutionNote(),
		ResolvedAt:     cr.ResolvedAt(),
		CreatedAt:      cr.CreatedAt(),
	}
}

func toDomainChangeRequest(m *ChangeRequestModel) *bookingDomain.ChangeRequest {
	return bookingDomain.ReconstructChangeRequest(
		m.ID, m.BookingID, m.RequestedBy,
		m.RequestedAt,
		m.Reason,
		bookingDomain.ChangeRequestStatus(m.Status),
		m.ResolvedBy,
		m.ResolutionNote,
		m.ResolvedAt,
		m.CreatedAt,
	)
}
