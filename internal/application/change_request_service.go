package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	"github.com/chillcar/service-booking/internal/domain/notification"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// ChangeRequestInput proposes a new time for a booking.
type ChangeRequestInput struct {
	RequestedAt time.Time `json:"requestedAt" binding:"required"`
	Reason      string    `json:"reason" binding:"max=500"`
}

// ResolveChangeInput optionally names the request to resolve and carries a note for rejections.
type ResolveChangeInput struct {
	RequestID *uuid.UUID `json:"requestId"`
	Reason    string     `json:"reason" binding:"max=500"`
}

// RequestChange records a customer's proposal to move their booking. Only one request may be
// pending per booking.
func (s *BookingService) RequestChange(ctx context.Context, actor Actor, bookingID uuid.UUID, in ChangeRequestInput) (*ChangeRequestDTO, error) {
	bk, err := s.repos.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.CustomerID() != actor.ID {
		return nil, domain.NewForbiddenError("only the customer can request a change to this booking")
	}
	if !bk.Status().IsOpen() {
		return nil, domain.NewBusinessRuleError("cannot reschedule a %s booking", bk.Status())
	}

	if _, err := s.repos.ChangeRequests.FindPendingByBooking(ctx, bk.ID()); err == nil {
		return nil, domain.NewBusinessRuleError("booking %s already has a pending change request", bk.BookingNumber())
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	cr, err := bookingDomain.NewChangeRequest(bk.ID(), actor.ID, in.RequestedAt, in.Reason, s.window, s.current())
	if err != nil {
		return nil, err
	}
	if err := s.repos.ChangeRequests.Save(ctx, cr); err != nil {
		return nil, err
	}

	s.notify.send(ctx, s.notify.toAdmins(ctx, actor.ID, notification.TypeChangeRequested,
		"Reschedule requested",
		fmt.Sprintf("Booking %s: customer asked to move to %s.", bk.BookingNumber(), cr.RequestedAt().Format(time.RFC3339)),
		changeMeta(bk, cr)))

	result := toChangeRequestDTO(cr)
	return &result, nil
}

// ListChangeRequests lists a booking's change requests, newest first.
func (s *BookingService) ListChangeRequests(ctx context.Context, actor Actor, bookingID uuid.UUID) ([]ChangeRequestDTO, error) {
	bk, err := s.repos.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.canSeeBooking(bk) {
		return nil, domain.NewForbiddenError("you do not have access to this booking")
	}
	list, err := s.repos.ChangeRequests.ListByBooking(ctx, bk.ID())
	if err != nil {
		return nil, err
	}
	out := make([]ChangeRequestDTO, len(list))
	for i, cr := range list {
		out[i] = toChangeRequestDTO(cr)
	}
	return out, nil
}

// ApproveChange moves the booking to the requested time. Every assigned technician must still be
// free apart from this booking; otherwise the booking is left untouched.
func (s *BookingService) ApproveChange(ctx context.Context, actor Actor, bookingID uuid.UUID, in ResolveChangeInput) (*BookingDTO, error) {
	now := s.current()
	var (
		bk *bookingDomain.Booking
		cr *bookingDomain.ChangeRequest
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		bk, err = s.repos.Bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		cr, err = s.pendingChange(ctx, bk, in.RequestID)
		if err != nil {
			return err
		}
		for _, techID := range bk.Technicians() {
			eng, err := s.repos.Availability.ActiveEngagement(ctx, techID, bk.ID())
			if err != nil {
				return err
			}
			if eng != nil {
				return domain.NewBusinessRuleError("Technician %s is busy with booking %s and cannot take the new time %s",
					techID, eng.BookingNumber, cr.RequestedAt().Format(time.RFC3339))
			}
		}
		if err := bk.Reschedule(cr.RequestedAt(), now); err != nil {
			return err
		}
		bk.IncrementVersion()
		if err := s.repos.Bookings.Update(ctx, bk); err != nil {
			return err
		}
		if err := cr.Approve(actor.ID, now); err != nil {
			return err
		}
		return s.repos.ChangeRequests.Update(ctx, cr)
	})
	if err != nil {
		return nil, err
	}

	meta := changeMeta(bk, cr)
	msgs := to([]uuid.UUID{cr.RequestedBy()}, actor.ID, notification.TypeChangeApproved,
		"Reschedule approved",
		fmt.Sprintf("Booking %s now takes place at %s.", bk.BookingNumber(), bk.ScheduledAt().Format(time.RFC3339)),
		meta)
	msgs = append(msgs, to(bk.Technicians(), actor.ID, notification.TypeBookingUpdated,
		"Booking rescheduled",
		fmt.Sprintf("Booking %s was moved to %s.", bk.BookingNumber(), bk.ScheduledAt().Format(time.RFC3339)),
		meta)...)
	s.notify.send(ctx, msgs)

	s.logger.Info("change request approved",
		zap.String("booking_id", bk.ID().String()),
		zap.String("change_request_id", cr.ID().String()),
	)
	result := toBookingDTO(bk)
	return &result, nil
}

// RejectChange declines a pending change request. The booking is not modified.
func (s *BookingService) RejectChange(ctx context.Context, actor Actor, bookingID uuid.UUID, in ResolveChangeInput) (*ChangeRequestDTO, error) {
	bk, err := s.repos.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	cr, err := s.pendingChange(ctx, bk, in.RequestID)
	if err != nil {
		return nil, err
	}
	if err := cr.Reject(actor.ID, in.Reason, s.current()); err != nil {
		return nil, err
	}
	if err := s.repos.ChangeRequests.Update(ctx, cr); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Your request to move booking %s was declined.", bk.BookingNumber())
	if in.Reason != "" {
		message += " " + in.Reason
	}
	s.notify.send(ctx, to([]uuid.UUID{cr.RequestedBy()}, actor.ID, notification.TypeChangeRejected,
		"Reschedule declined", message, changeMeta(bk, cr)))

	result := toChangeRequestDTO(cr)
	return &result, nil
}

// pendingChange loads the request to resolve: the named one, or else the oldest pending one.
func (s *BookingService) pendingChange(ctx context.Context, bk *bookingDomain.Booking, requestID *uuid.UUID) (*bookingDomain.ChangeRequest, error) {
	if requestID == nil {
		return s.repos.ChangeRequests.FindPendingByBooking(ctx, bk.ID())
	}
	cr, err := s.repos.ChangeRequests.FindByID(ctx, *requestID)
	if err != nil {
		return nil, err
	}
	if cr.BookingID() != bk.ID() {
		return nil, domain.NewNotFoundError("ChangeRequest", requestID.String())
	}
	return cr, nil
}

func changeMeta(bk *bookingDomain.Booking, cr *bookingDomain.ChangeRequest) map[string]any {
	meta := bookingMeta(bk)
	meta["changeRequestId"] = cr.ID().String()
	meta["requestedAt"] = cr.RequestedAt().Format(time.RFC3339)
	return meta
}
