package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/chillcar/service-booking/internal/platform/domain"
)

// ChangeRequestStatus is the resolution state of a reschedule request.
type ChangeRequestStatus string

const (
	ChangeRequestPending  ChangeRequestStatus = "PENDING"
	ChangeRequestApproved ChangeRequestStatus = "APPROVED"
	ChangeRequestRejected ChangeRequestStatus = "REJECTED"
)

// ChangeRequest is a customer proposal to move a booking to a new time.
type ChangeRequest struct {
	id             uuid.UUID
	bookingID      uuid.UUID
	requestedBy    uuid.UUID
	requestedAt    time.Time
	reason         string
	status         ChangeRequestStatus
	resolvedBy     *uuid.UUID
	resolutionNote string
	resolvedAt     *time.Time
	createdAt      time.Time
}

// NewChangeRequest validates the proposed time against the opening window and creates a PENDING request.
func NewChangeRequest(
	bookingID, requestedBy uuid.UUID,
	requestedAt time.Time,
	reason string,
	window ServiceWindow,
	now time.Time,
) (*ChangeRequest, error) {
	if err := window.Validate("requestedAt", requestedAt, now); err != nil {
		return nil, err
	}
	return &ChangeRequest{
		id:          uuid.New(),
		bookingID:   bookingID,
		requestedBy: requestedBy,
		requestedAt: requestedAt.UTC(),
		reason:      reason,
		status:      ChangeRequestPending,
		createdAt:   now.UTC(),
	}, nil
}

// ReconstructChangeRequest rebuilds a ChangeRequest from persistence data.
func ReconstructChangeRequest(
	id, bookingID, requestedBy uuid.UUID,
	requestedAt time.Time,
	reason string,
	status ChangeRequestStatus,
	resolvedBy *uuid.UUID,
	resolutionNote string,
	resolvedAt *time.Time,
	createdAt time.Time,
) *ChangeRequest {
	return &ChangeRequest{
		id:             id,
		bookingID:      bookingID,
		requestedBy:    requestedBy,
		requestedAt:    requestedAt,
		reason:         reason,
		status:         status,
		resolvedBy:     resolvedBy,
		resolutionNote: resolutionNote,
		resolvedAt:     resolvedAt,
		createdAt:      createdAt,
	}
}

func (r *ChangeRequest) ID() uuid.UUID               { return r.id }
func (r *ChangeRequest) BookingID() uuid.UUID        { return r.bookingID }
func (r *ChangeRequest) RequestedBy() uuid.UUID      { return r.requestedBy }
func (r *ChangeRequest) RequestedAt() time.Time      { return r.requestedAt }
func (r *ChangeRequest) Reason() string              { return r.reason }
func (r *ChangeRequest) Status() ChangeRequestStatus { return r.status }
func (r *ChangeRequest) ResolvedBy() *uuid.UUID      { return r.resolvedBy }
func (r *ChangeRequest) ResolutionNote() string      { return r.resolutionNote }
func (r *ChangeRequest) ResolvedAt() *time.Time      { return r.resolvedAt }
func (r *ChangeRequest) CreatedAt() time.Time        { return r.createdAt }

// Approve marks the request APPROVED. The caller applies the new time to the booking.
func (r *ChangeRequest) Approve(adminID uuid.UUID, now time.Time) error {
	return r.resolve(ChangeRequestApproved, adminID, "", now)
}

// Reject marks the request REJECTED with an optional note.
func (r *ChangeRequest) Reject(adminID uuid.UUID, note string, now time.Time) error {
	return r.resolve(ChangeRequestRejected, adminID, note, now)
}

func (r *ChangeRequest) resolve(to ChangeRequestStatus, adminID uuid.UUID, note string, now time.Time) error {
	if r.status != ChangeRequestPending {
		return domain.NewInvalidStateError(string(r.status), string(to))
	}
	now = now.UTC()
	r.status = to
	r.resolvedBy = &adminID
	r.resolutionNote = note
	r.resolvedAt = &now
	return nil
}
