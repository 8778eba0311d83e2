package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	jobDomain "github.com/chillcar/service-booking/internal/domain/job"
	"github.com/chillcar/service-booking/internal/platform/database"
)

// GormAvailabilityChecker derives technician availability from bookings and jobs. Nothing is stored.
type GormAvailabilityChecker struct {
	db *gorm.DB
}

// NewGormAvailabilityChecker creates a new GormAvailabilityChecker.
func NewGormAvailabilityChecker(db *gorm.DB) *GormAvailabilityChecker {
	return &GormAvailabilityChecker{db: db}
}

type engagementRow struct {
	ID            uuid.UUID
	BookingNumber string
	Status        string
}

// ActiveEngagement returns the oldest confirmed booking whose job keeps technicianID busy, or nil.
func (c *GormAvailabilityChecker) ActiveEngagement(ctx context.Context, technicianID, excludeBookingID uuid.UUID) (*bookingDomain.Engagement, error) {
	var rows []engagementRow
	err := c.assigned(ctx, technicianID).
		Joins("JOIN jobs AS j ON j.booking_id = b.id").
		Where("b.id <> ?", excludeBookingID).
		Where("b.status = ? AND j.stage <> ?",
			string(bookingDomain.StatusConfirmed),
			string(jobDomain.StageCompletion),
		).
		Order("b.created_at ASC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check technician availability: %w", err)
	}
	return firstEngagement(rows), nil
}

// PendingAssignment returns the oldest pending booking technicianID is assigned to, or nil.
func (c *GormAvailabilityChecker) PendingAssignment(ctx context.Context, technicianID uuid.UUID) (*bookingDomain.Engagement, error) {
	var rows []engagementRow
	err := c.assigned(ctx, technicianID).
		Where("b.status = ?", string(bookingDomain.StatusPending)).
		Order("b.created_at ASC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find pending assignment: %w", err)
	}
	return firstEngagement(rows), nil
}

// assigned selects bookings naming technicianID as primary technician or through the join table.
func (c *GormAvailabilityChecker) assigned(ctx context.Context, technicianID uuid.UUID) *gorm.DB {
	return database.Conn(ctx, c.db).
		Table("bookings AS b").
		Select("b.id, b.booking_number, b.status").
		Where(
			"(b.technician_id = ? OR EXISTS (SELECT 1 FROM booking_technicians bt WHERE bt.booking_id = b.id AND bt.technician_id = ?))",
			technicianID, technicianID,
		)
}

func firstEngagement(rows []engagementRow) *bookingDomain.Engagement {
	if len(rows) == 0 {
		return nil
	}
	return &bookingDomain.Engagement{
		BookingID:     rows[0].ID,
		BookingNumber: rows[0].BookingNumber,
		Status:        bookingDomain.BookingStatus(rows[0].Status),
	}
}
