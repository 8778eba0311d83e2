package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	jobDomain "github.com/chillcar/service-booking/internal/domain/job"
	"github.com/chillcar/service-booking/internal/domain/notification"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// preferenceBookingMode is the servicePreferences key clients use to pick the booking kind.
const preferenceBookingMode = "bookingMode"

// CreateBookingRequest holds the data needed to book one or more services or packs for a car.
type CreateBookingRequest struct {
	CarID              uuid.UUID      `json:"carId" binding:"required"`
	ServiceIDs         []uuid.UUID    `json:"serviceIds"`
	PackIDs            []uuid.UUID    `json:"packIds"`
	ScheduledAt        *time.Time     `json:"scheduledAt"`
	ServicePreferences map[string]any `json:"servicePreferences"`
	TechnicianID       *uuid.UUID     `json:"technicianId"`
	Notes              string         `json:"notes" binding:"max=1000"`
}

// UpdateBookingRequest changes the free-form parts of a booking.
type UpdateBookingRequest struct {
	Notes              *string        `json:"notes" binding:"omitempty,max=1000"`
	ServicePreferences map[string]any `json:"servicePreferences"`
}

// AssignRequest accepts either a single technician or a list.
type AssignRequest struct {
	TechnicianID  *uuid.UUID  `json:"technicianId"`
	TechnicianIDs []uuid.UUID `json:"technicianIds"`
}

// IDs returns the requested technicians in order, without duplicates.
func (r AssignRequest) IDs() []uuid.UUID {
	var ids []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if r.TechnicianID != nil {
		add(*r.TechnicianID)
	}
	for _, id := range r.TechnicianIDs {
		add(id)
	}
	return ids
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	clock
	repos  Repositories
	tx     TxRunner
	window bookingDomain.ServiceWindow
	notify fanout
	logger *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repos Repositories,
	tx TxRunner,
	notifier Notifier,
	window bookingDomain.ServiceWindow,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repos:  repos,
		tx:     tx,
		window: window,
		notify: newFanout(repos, notifier, logger),
		logger: logger,
	}
}

// WithClock replaces the time source.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// CreateBookings creates one PENDING booking per requested service or pack.
func (s *BookingService) CreateBookings(ctx context.Context, customerID uuid.UUID, req CreateBookingRequest) ([]BookingDTO, error) {
	switch {
	case len(req.ServiceIDs) == 0 && len(req.PackIDs) == 0:
		return nil, domain.NewFieldValidationError(map[string]string{"serviceIds": "either serviceIds or packIds is required"})
	case len(req.ServiceIDs) > 0 && len(req.PackIDs) > 0:
		return nil, domain.NewFieldValidationError(map[string]string{"packIds": "cannot be combined with serviceIds"})
	}

	kind, prefs, err := splitPreferences(req.ServicePreferences)
	if err != nil {
		return nil, err
	}

	car, err := s.repos.Users.FindCar(ctx, req.CarID)
	if err != nil {
		return nil, err
	}
	if car.OwnerID != customerID {
		return nil, domain.NewForbiddenError("car does not belong to you")
	}

	for _, id := range req.ServiceIDs {
		svc, err := s.repos.Catalog.FindService(ctx, id)
		if err != nil {
			return nil, err
		}
		if !svc.Active {
			return nil, domain.NewValidationError(fmt.Sprintf("service %q is not available", svc.Name))
		}
		if req.TechnicianID != nil && !svc.AllowTechnicianChoice {
			return nil, domain.NewBusinessRuleError("Service %q does not allow choosing a technician", svc.Name)
		}
	}
	for _, id := range req.PackIDs {
		pack, err := s.repos.Catalog.FindPack(ctx, id)
		if err != nil {
			return nil, err
		}
		if !pack.Active {
			return nil, domain.NewValidationError(fmt.Sprintf("pack %q is not available", pack.Name))
		}
		if req.TechnicianID != nil {
			return nil, domain.NewBusinessRuleError("Pack %q does not allow choosing a technician", pack.Name)
		}
	}
	if req.TechnicianID != nil {
		if err := s.requireAvailableTechnician(ctx, *req.TechnicianID, uuid.Nil); err != nil {
			return nil, err
		}
	}

	now := s.current()
	var scheduledAt time.Time
	if req.ScheduledAt != nil {
		scheduledAt = *req.ScheduledAt
	}
	params := make([]bookingDomain.NewBookingParams, 0, len(req.ServiceIDs)+len(req.PackIDs))
	for _, id := range req.ServiceIDs {
		serviceID := id
		params = append(params, bookingDomain.NewBookingParams{ServiceID: &serviceID})
	}
	for _, id := range req.PackIDs {
		packID := id
		params = append(params, bookingDomain.NewBookingParams{PackID: &packID})
	}

	created := make([]*bookingDomain.Booking, 0, len(params))
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, p := range params {
			p.CustomerID = customerID
			p.CarID = car.ID
			p.Kind = kind
			p.ScheduledAt = scheduledAt
			p.Preferences = prefs
			p.Notes = req.Notes

			bk, err := bookingDomain.NewBooking(p, s.window, now)
			if err != nil {
				return err
			}
			if req.TechnicianID != nil {
				if _, err := bk.Assign([]uuid.UUID{*req.TechnicianID}, now); err != nil {
					return err
				}
			}
			if err := s.repos.Bookings.Save(ctx, bk); err != nil {
				return fmt.Errorf("failed to save booking: %w", err)
			}
			created = append(created, bk)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var msgs []notification.Message
	for _, bk := range created {
		meta := bookingMeta(bk)
		if bk.Kind() == bookingDomain.KindConsultation {
			msgs = append(msgs, s.notify.toAdmins(ctx, customerID, notification.TypeConsultationRequested,
				"New consultation request",
				fmt.Sprintf("Booking %s is a consultation request and needs attention now.", bk.BookingNumber()),
				meta)...)
		} else {
			msgs = append(msgs, s.notify.toAdmins(ctx, customerID, notification.TypeBookingCreated,
				"New booking",
				fmt.Sprintf("Booking %s was created for %s.", bk.BookingNumber(), bk.ScheduledAt().Format(time.RFC3339)),
				meta)...)
		}
		if req.TechnicianID != nil {
			msgs = append(msgs, to([]uuid.UUID{*req.TechnicianID}, uuid.Nil, notification.TypeBookingAssigned,
				"New assignment",
				fmt.Sprintf("A customer chose you for booking %s.", bk.BookingNumber()),
				meta)...)
		}
	}
	s.notify.send(ctx, msgs)

	s.logger.Info("bookings created",
		zap.String("customer_id", customerID.String()),
		zap.Int("count", len(created)),
		zap.String("kind", string(kind)),
	)
	return toBookingDTOs(created), nil
}

// GetBooking returns a booking the actor is allowed to see.
func (s *BookingService) GetBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repos.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.canSeeBooking(bk) {
		return nil, domain.NewForbiddenError("you do not have access to this booking")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListBookings lists bookings scoped to the actor: admins see all, technicians their assignments,
// customers their own.
func (s *BookingService) ListBookings(ctx context.Context, actor Actor, status string, page, limit int) ([]BookingDTO, int64, error) {
	page, limit = pageBounds(page, limit)
	filter := bookingDomain.ListFilter{}
	switch {
	case actor.IsCustomer():
		filter.CustomerID = &actor.ID
	case actor.IsTechnician():
		filter.TechnicianID = &actor.ID
	}
	if status != "" {
		st, err := bookingDomain.ParseBookingStatus(status)
		if err != nil {
			return nil, 0, domain.NewValidationError(err.Error())
		}
		filter.Status = &st
	}

	bookings, total, err := s.repos.Bookings.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toBookingDTOs(bookings), total, nil
}

// AssignTechnicians assigns technicians to a booking. Every technician must be available; if any
// is not, nothing is assigned.
func (s *BookingService) AssignTechnicians(ctx context.Context, actor Actor, bookingID uuid.UUID, req AssignRequest) (*BookingDTO, error) {
	ids := req.IDs()
	if len(ids) == 0 {
		return nil, domain.NewFieldValidationError(map[string]string{"technicianIds": "at least one technician is required"})
	}

	now := s.current()
	var (
		bk    *bookingDomain.Booking
		added []uuid.UUID
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		bk, err = s.repos.Bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := s.requireAvailableTechnician(ctx, id, bk.ID()); err != nil {
				return err
			}
		}
		added, err = bk.Assign(ids, now)
		if err != nil {
			return err
		}
		bk.IncrementVersion()
		return s.repos.Bookings.Update(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	s.notify.send(ctx, to(added, actor.ID, notification.TypeBookingAssigned,
		"New assignment",
		fmt.Sprintf("You have been assigned to booking %s scheduled for %s.", bk.BookingNumber(), bk.ScheduledAt().Format(time.RFC3339)),
		bookingMeta(bk)))

	s.logger.Info("technicians assigned",
		zap.String("booking_id", bk.ID().String()),
		zap.Int("added", len(added)),
	)
	result := toBookingDTO(bk)
	return &result, nil
}

// ConfirmBooking confirms a pending booking and opens its job in the DIAGNOSTIC stage.
func (s *BookingService) ConfirmBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	now := s.current()
	var bk *bookingDomain.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		bk, err = s.repos.Bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := bk.Confirm(now); err != nil {
			return err
		}
		bk.IncrementVersion()
		if err := s.repos.Bookings.Update(ctx, bk); err != nil {
			return err
		}
		j, err := jobDomain.NewJob(bk.ID(), now)
		if err != nil {
			return err
		}
		return s.repos.Jobs.Save(ctx, j)
	})
	if err != nil {
		return nil, err
	}

	recipients := append([]uuid.UUID{bk.CustomerID()}, bk.Technicians()...)
	s.notify.send(ctx, to(recipients, actor.ID, notification.TypeBookingConfirmed,
		"Booking confirmed",
		fmt.Sprintf("Booking %s has been confirmed.", bk.BookingNumber()),
		bookingMeta(bk)))

	result := toBookingDTO(bk)
	return &result, nil
}

// RejectBooking rejects a pending booking with a mandatory reason.
func (s *BookingService) RejectBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (*BookingDTO, error) {
	bk, err := s.repos.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := bk.Reject(reason, s.current()); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.repos.Bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	recipients := append([]uuid.UUID{bk.CustomerID()}, bk.Technicians()...)
	s.notify.send(ctx, to(recipients, actor.ID, notification.TypeBookingRejected,
		"Booking rejected",
		fmt.Sprintf("Booking %s was rejected: %s", bk.BookingNumber(), reason),
		bookingMeta(bk)))

	result := toBookingDTO(bk)
	return &result, nil
}

// CancelBooking cancels a booking on behalf of its customer or an admin.
func (s *BookingService) CancelBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (*BookingDTO, error) {
	now := s.current()
	var bk *bookingDomain.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		bk, err = s.repos.Bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && bk.CustomerID() != actor.ID {
			return domain.NewForbiddenError("only the customer or an admin can cancel this booking")
		}
		j, err := s.repos.Jobs.FindByBookingID(ctx, bk.ID())
		switch {
		case err == nil && j.Stage() == jobDomain.StageCompletion:
			return domain.NewBusinessRuleError("booking %s has already been serviced", bk.BookingNumber())
		case err != nil && !domain.IsNotFound(err):
			return err
		}
		if err := bk.Cancel(reason, now); err != nil {
			return err
		}
		bk.IncrementVersion()
		return s.repos.Bookings.Update(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	meta := bookingMeta(bk)
	message := fmt.Sprintf("Booking %s was cancelled.", bk.BookingNumber())
	msgs := to(append([]uuid.UUID{bk.CustomerID()}, bk.Technicians()...), actor.ID, notification.TypeBookingCancelled, "Booking cancelled", message, meta)
	msgs = append(msgs, s.notify.toAdmins(ctx, actor.ID, notification.TypeBookingCancelled, "Booking cancelled", message, meta)...)
	s.notify.send(ctx, msgs)

	result := toBookingDTO(bk)
	return &result, nil
}

// UpdateBooking changes notes and preferences while the booking is still ahead.
func (s *BookingService) UpdateBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, req UpdateBookingRequest) (*BookingDTO, error) {
	bk, err := s.repos.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && bk.CustomerID() != actor.ID {
		return nil, domain.NewForbiddenError("only the customer or an admin can update this booking")
	}

	var prefs map[string]any
	if req.ServicePreferences != nil {
		kind, rest, err := splitPreferences(req.ServicePreferences)
		if err != nil {
			return nil, err
		}
		if _, ok := req.ServicePreferences[preferenceBookingMode]; ok && kind != bk.Kind() {
			return nil, domain.NewFieldValidationError(map[string]string{"servicePreferences": "booking mode cannot be changed"})
		}
		prefs = rest
		if prefs == nil {
			prefs = map[string]any{}
		}
	}

	if err := bk.UpdateDetails(req.Notes, prefs, s.current()); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.repos.Bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	meta := bookingMeta(bk)
	message := fmt.Sprintf("Booking %s was updated.", bk.BookingNumber())
	msgs := to(bk.Technicians(), actor.ID, notification.TypeBookingUpdated, "Booking updated", message, meta)
	msgs = append(msgs, s.notify.toAdmins(ctx, actor.ID, notification.TypeBookingUpdated, "Booking updated", message, meta)...)
	s.notify.send(ctx, msgs)

	result := toBookingDTO(bk)
	return &result, nil
}

// GetBookingStats returns booking counts by status for the admin dashboard.
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repos.Bookings.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats := &BookingStatsDTO{
		Pending:   counts[string(bookingDomain.StatusPending)],
		Confirmed: counts[string(bookingDomain.StatusConfirmed)],
		Rejected:  counts[string(bookingDomain.StatusRejected)],
		Cancelled: counts[string(bookingDomain.StatusCancelled)],
	}
	for _, c := range counts {
		stats.Total += c
	}
	return stats, nil
}

// requireAvailableTechnician checks that id is an active technician with no engagement other than
// excludeBookingID.
func (s *BookingService) requireAvailableTechnician(ctx context.Context, id, excludeBookingID uuid.UUID) error {
	tech, err := s.repos.Users.FindByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.NewValidationError(fmt.Sprintf("technician %s not found", id))
		}
		return err
	}
	if !tech.IsTechnician() {
		return domain.NewValidationError(fmt.Sprintf("user %s is not a technician", id))
	}
	if tech.Blocked() {
		return domain.NewBusinessRuleError("Technician %s is blocked", tech.Name())
	}

	eng, err := s.repos.Availability.ActiveEngagement(ctx, id, excludeBookingID)
	if err != nil {
		return err
	}
	if eng != nil {
		return domain.NewBusinessRuleError("Technician %s is not available: already engaged on booking %s (%s)",
			tech.Name(), eng.BookingNumber, eng.Status)
	}
	return nil
}

// splitPreferences separates the booking mode from the remaining free-form preferences.
func splitPreferences(prefs map[string]any) (bookingDomain.Kind, map[string]any, error) {
	var mode string
	if raw, ok := prefs[preferenceBookingMode]; ok && raw != nil {
		str, ok := raw.(string)
		if !ok {
			return "", nil, domain.NewFieldValidationError(map[string]string{"servicePreferences": "bookingMode must be a string"})
		}
		mode = str
	}
	kind, err := bookingDomain.KindFromMode(mode)
	if err != nil {
		return "", nil, domain.NewFieldValidationError(map[string]string{"servicePreferences": err.Error()})
	}

	var rest map[string]any
	for k, v := range prefs {
		if k == preferenceBookingMode {
			continue
		}
		if rest == nil {
			rest = make(map[string]any, len(prefs))
		}
		rest[k] = v
	}
	return kind, rest, nil
}

func bookingMeta(bk *bookingDomain.Booking) map[string]any {
	return map[string]any{
		"bookingId":     bk.ID().String(),
		"bookingNumber": bk.BookingNumber(),
	}
}
