package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/chillcar/service-booking/internal/platform/domain"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Booking is the aggregate root for the booking domain.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	customerID    uuid.UUID
	carID         uuid.UUID
	serviceID     *uuid.UUID
	packID        *uuid.UUID
	technicianID  *uuid.UUID
	technicians   []uuid.UUID
	status        BookingStatus
	kind          Kind
	preferences   map[string]any

	scheduledAt  time.Time
	notes        string
	rejectReason string
	cancelReason string
	confirmedAt  *time.Time
	cancelledAt  *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBookingParams carries the inputs of a customer booking request for a single service or pack.
type NewBookingParams struct {
	CustomerID  uuid.UUID
	CarID       uuid.UUID
	ServiceID   *uuid.UUID
	PackID      *uuid.UUID
	Kind        Kind
	ScheduledAt time.Time
	Preferences map[string]any
	Notes       string
}

// generateBookingNumber creates a booking number in the format "BK-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "BK-" + string(result), nil
}

// NewBooking creates a PENDING booking. Consultations are scheduled at now and skip the
// opening-hours check; standard bookings must fall inside window and in the future.
func NewBooking(p NewBookingParams, window ServiceWindow, now time.Time) (*Booking, error) {
	if p.CustomerID == uuid.Nil {
		return nil, domain.NewValidationError("customer ID is required")
	}
	if p.CarID == uuid.Nil {
		return nil, domain.NewValidationError("car ID is required")
	}
	if (p.ServiceID == nil) == (p.PackID == nil) {
		return nil, domain.NewValidationError("exactly one of service or pack is required")
	}
	if p.Kind == "" {
		p.Kind = KindStandard
	}

	scheduledAt := p.ScheduledAt
	switch p.Kind {
	case KindConsultation:
		scheduledAt = now
	case KindStandard:
		if err := window.Validate("scheduledAt", scheduledAt, now); err != nil {
			return nil, err
		}
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("invalid booking kind: %s", p.Kind))
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	return &Booking{
		id:            uuid.New(),
		bookingNumber: bookingNumber,
		customerID:    p.CustomerID,
		carID:         p.CarID,
		serviceID:     p.ServiceID,
		packID:        p.PackID,
		status:        StatusPending,
		kind:          p.Kind,
		preferences:   p.Preferences,
		scheduledAt:   scheduledAt.UTC(),
		notes:         p.Notes,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	bookingNumber string,
	customerID uuid.UUID,
	carID uuid.UUID,
	serviceID *uuid.UUID,
	packID *uuid.UUID,
	technicianID *uuid.UUID,
	technicians []uuid.UUID,
	status BookingStatus,
	kind Kind,
	preferences map[string]any,
	scheduledAt time.Time,
	notes string,
	rejectReason string,
	cancelReason string,
	confirmedAt *time.Time,
	cancelledAt *time.Time,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:            id,
		bookingNumber: bookingNumber,
		customerID:    customerID,
		carID:         carID,
		serviceID:     serviceID,
		packID:        packID,
		technicianID:  technicianID,
		technicians:   technicians,
		status:        status,
		kind:          kind,
		preferences:   preferences,
		scheduledAt:   scheduledAt,
		notes:         notes,
		rejectReason:  rejectReason,
		cancelReason:  cancelReason,
		confirmedAt:   confirmedAt,
		cancelledAt:   cancelledAt,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// CustomerID returns the customer who made the booking.
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }

// CarID returns the car being serviced.
func (b *Booking) CarID() uuid.UUID { return b.carID }

// ServiceID returns the booked service, or nil for a pack booking.
func (b *Booking) ServiceID() *uuid.UUID { return b.serviceID }

// PackID returns the booked pack, or nil for a service booking.
func (b *Booking) PackID() *uuid.UUID { return b.packID }

// TechnicianID returns the primary assignee, or nil if unassigned.
func (b *Booking) TechnicianID() *uuid.UUID { return b.technicianID }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// Kind returns whether this is a standard booking or a consultation.
func (b *Booking) Kind() Kind { return b.kind }

// Preferences returns the free-form service preferences supplied by the customer.
func (b *Booking) Preferences() map[string]any { return b.preferences }

// ScheduledAt returns the appointment time in UTC.
func (b *Booking) ScheduledAt() time.Time { return b.scheduledAt }

// Notes returns the customer's notes.
func (b *Booking) Notes() string { return b.notes }

// RejectReason returns why the admin rejected the booking, if it was rejected.
func (b *Booking) RejectReason() string { return b.rejectReason }

// CancelReason returns why the booking was cancelled, if it was cancelled.
func (b *Booking) CancelReason() string { return b.cancelReason }

// ConfirmedAt returns when the booking was confirmed, or nil.
func (b *Booking) ConfirmedAt() *time.Time { return b.confirmedAt }

// CancelledAt returns when the booking was cancelled, or nil.
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// Technicians returns every assigned technician, primary first, without duplicates.
func (b *Booking) Technicians() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(b.technicians)+1)
	seen := make(map[uuid.UUID]struct{}, len(b.technicians)+1)
	if b.technicianID != nil {
		out = append(out, *b.technicianID)
		seen[*b.technicianID] = struct{}{}
	}
	for _, id := range b.technicians {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// IsAssigned reports whether the technician is the primary assignee or in the assigned set.
func (b *Booking) IsAssigned(technicianID uuid.UUID) bool {
	for _, id := range b.Technicians() {
		if id == technicianID {
			return true
		}
	}
	return false
}

// --- Behavior ---

// Assign adds technicians to the booking. The first id of the request becomes the primary assignee.
// It returns the ids that were not already assigned.
func (b *Booking) Assign(technicianIDs []uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	if len(technicianIDs) == 0 {
		return nil, domain.NewValidationError("at least one technician is required")
	}
	if !b.status.IsOpen() {
		return nil, domain.NewBusinessRuleError("cannot assign technicians to a %s booking", b.status)
	}

	var added []uuid.UUID
	for _, id := range technicianIDs {
		if id == uuid.Nil {
			return nil, domain.NewValidationError("technician ID is required")
		}
		if b.IsAssigned(id) {
			continue
		}
		b.technicians = append(b.technicians, id)
		added = append(added, id)
	}
	primary := technicianIDs[0]
	b.technicianID = &primary
	b.updatedAt = now.UTC()
	return added, nil
}

// Confirm transitions the booking from PENDING to CONFIRMED.
func (b *Booking) Confirm(now time.Time) error {
	if !b.status.CanTransitionTo(StatusConfirmed) {
		return domain.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	now = now.UTC()
	b.status = StatusConfirmed
	b.confirmedAt = &now
	b.updatedAt = now
	return nil
}

// Reject transitions the booking from PENDING to REJECTED. A reason is mandatory.
func (b *Booking) Reject(reason string, now time.Time) error {
	if reason == "" {
		return domain.NewFieldValidationError(map[string]string{"reason": "is required"})
	}
	if !b.status.CanTransitionTo(StatusRejected) {
		return domain.NewInvalidStateError(string(b.status), string(StatusRejected))
	}
	b.status = StatusRejected
	b.rejectReason = reason
	b.updatedAt = now.UTC()
	return nil
}

// Cancel transitions a PENDING or CONFIRMED booking to CANCELLED.
func (b *Booking) Cancel(reason string, now time.Time) error {
	if !b.status.CanTransitionTo(StatusCancelled) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	now = now.UTC()
	b.status = StatusCancelled
	b.cancelReason = reason
	b.cancelledAt = &now
	b.updatedAt = now
	return nil
}

// UpdateDetails replaces notes and/or preferences. Only allowed before the scheduled time and while
// the booking is neither cancelled nor rejected.
func (b *Booking) UpdateDetails(notes *string, preferences map[string]any, now time.Time) error {
	if b.status == StatusCancelled || b.status == StatusRejected {
		return domain.NewBusinessRuleError("booking is %s and can no longer be updated", b.status)
	}
	if !b.scheduledAt.After(now) {
		return domain.NewBusinessRuleError("booking has already started and can no longer be updated")
	}
	if notes != nil {
		b.notes = *notes
	}
	if preferences != nil {
		b.preferences = preferences
	}
	b.updatedAt = now.UTC()
	return nil
}

// Reschedule moves the booking to a new time. Window validation happens when the change is requested.
func (b *Booking) Reschedule(at time.Time, now time.Time) error {
	if !b.status.IsOpen() {
		return domain.NewBusinessRuleError("cannot reschedule a %s booking", b.status)
	}
	b.scheduledAt = at.UTC()
	b.updatedAt = now.UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
}
