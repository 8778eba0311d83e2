package booking

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a booking listing. Zero values mean "any".
type ListFilter struct {
	CustomerID   *uuid.UUID
	TechnicianID *uuid.UUID // primary or joined assignee
	Status       *BookingStatus
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking, including its assigned technicians, by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByNumber retrieves a booking by its human-readable booking number.
	FindByNumber(ctx context.Context, number string) (*Booking, error)

	// List retrieves bookings matching filter with pagination, newest first.
	List(ctx context.Context, filter ListFilter, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking and its technician assignments.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking. Newly assigned
	// technicians are added to the join table; existing join rows are never removed.
	Update(ctx context.Context, booking *Booking) error
}

// ChangeRequestRepository defines the persistence contract for reschedule requests.
type ChangeRequestRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ChangeRequest, error)
	// FindPendingByBooking returns the oldest pending request for a booking.
	FindPendingByBooking(ctx context.Context, bookingID uuid.UUID) (*ChangeRequest, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*ChangeRequest, error)
	Save(ctx context.Context, cr *ChangeRequest) error
	Update(ctx context.Context, cr *ChangeRequest) error
}

// Engagement identifies the booking that keeps a technician busy.
type Engagement struct {
	BookingID     uuid.UUID
	BookingNumber string
	Status        BookingStatus
}

// AvailabilityChecker answers whether a technician is free to take another booking.
// A technician is engaged while a confirmed booking they are assigned to has a job that has not
// reached COMPLETION. Pending assignments do not engage. Availability does not depend on the
// scheduled date.
type AvailabilityChecker interface {
	// ActiveEngagement returns the booking engaging the technician, ignoring excludeBookingID,
	// or nil when the technician is available.
	ActiveEngagement(ctx context.Context, technicianID, excludeBookingID uuid.UUID) (*Engagement, error)
	// PendingAssignment returns the oldest pending booking the technician is assigned to, or nil.
	PendingAssignment(ctx context.Context, technicianID uuid.UUID) (*Engagement, error)
}
