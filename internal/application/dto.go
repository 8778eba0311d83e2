package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/chillcar/service-booking/internal/domain/billing"
	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	"github.com/chillcar/service-booking/internal/domain/catalog"
	jobDomain "github.com/chillcar/service-booking/internal/domain/job"
	"github.com/chillcar/service-booking/internal/domain/notification"
	userDomain "github.com/chillcar/service-booking/internal/domain/user"
)

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                 uuid.UUID      `json:"id"`
	BookingNumber      string         `json:"bookingNumber"`
	CustomerID         uuid.UUID      `json:"customerId"`
	CarID              uuid.UUID      `json:"carId"`
	ServiceID          *uuid.UUID     `json:"serviceId,omitempty"`
	PackID             *uuid.UUID     `json:"packId,omitempty"`
	TechnicianID       *uuid.UUID     `json:"technicianId,omitempty"`
	TechnicianIDs      []uuid.UUID    `json:"technicianIds"`
	Status             string         `json:"status"`
	Kind               string         `json:"kind"`
	ServicePreferences map[string]any `json:"servicePreferences"`
	ScheduledAt        time.Time      `json:"scheduledAt"`
	Notes              string         `json:"notes,omitempty"`
	RejectReason       string         `json:"rejectReason,omitempty"`
	CancelReason       string         `json:"cancelReason,omitempty"`
	ConfirmedAt        *time.Time     `json:"confirmedAt,omitempty"`
	CancelledAt        *time.Time     `json:"cancelledAt,omitempty"`
	Version            int64          `json:"version"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	// The booking mode travels back inside the preferences, where clients expect it.
	prefs := make(map[string]any, len(bk.Preferences())+1)
	for k, v := range bk.Preferences() {
		prefs[k] = v
	}
	prefs[preferenceBookingMode] = bk.Kind().Mode()

	return BookingDTO{
		ID:                 bk.ID(),
		BookingNumber:      bk.BookingNumber(),
		CustomerID:         bk.CustomerID(),
		CarID:              bk.CarID(),
		ServiceID:          bk.ServiceID(),
		PackID:             bk.PackID(),
		TechnicianID:       bk.TechnicianID(),
		TechnicianIDs:      bk.Technicians(),
		Status:             string(bk.Status()),
		Kind:               string(bk.Kind()),
		ServicePreferences: prefs,
		ScheduledAt:        bk.ScheduledAt(),
		Notes:              bk.Notes(),
		RejectReason:       bk.RejectReason(),
		CancelReason:       bk.CancelReason(),
		ConfirmedAt:        bk.ConfirmedAt(),
		CancelledAt:        bk.CancelledAt(),
		Version:            bk.Version(),
		CreatedAt:          bk.CreatedAt(),
		UpdatedAt:          bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	out := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		out[i] = toBookingDTO(bk)
	}
	return out
}

// BookingStatsDTO holds booking counts by status for the admin dashboard.
type BookingStatsDTO struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Confirmed int64 `json:"confirmed"`
	Rejected  int64 `json:"rejected"`
	Cancelled int64 `json:"cancelled"`
}

// ChangeRequestDTO is the response representation of a reschedule request.
type ChangeRequestDTO struct {
	ID             uuid.UUID  `json:"id"`
	BookingID      uuid.UUID  `json:"bookingId"`
	RequestedBy    uuid.UUID  `json:"requestedBy"`
	RequestedAt    time.Time  `json:"requestedAt"`
	Reason         string     `json:"reason,omitempty"`
	Status         string     `json:"status"`
	ResolvedBy     *uuid.UUID `json:"resolvedBy,omitempty"`
	ResolutionNote string     `json:"resolutionNote,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func toChangeRequestDTO(cr *bookingDomain.ChangeRequest) ChangeRequestDTO {
	return ChangeRequestDTO{
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

// JobDTO is the response representation of a job.
type JobDTO struct {
	ID          uuid.UUID  `json:"id"`
	BookingID   uuid.UUID  `json:"bookingId"`
	Stage       string     `json:"stage"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Version     int64      `json:"version"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// JobDetailDTO is a job with its notes and consumed parts.
type JobDetailDTO struct {
	JobDTO
	Notes     []JobNoteDTO   `json:"notes"`
	PartsUsed []PartUsageDTO `json:"partsUsed"`
}

// JobNoteDTO is the response representation of a job note.
type JobNoteDTO struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"authorId"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// PartUsageDTO is the response representation of a consumed part.
type PartUsageDTO struct {
	PartID         uuid.UUID `json:"partId"`
	PartName       string    `json:"partName"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	TotalCents     int64     `json:"totalCents"`
}

func toJobDTO(j *jobDomain.Job) JobDTO {
	return JobDTO{
		ID:          j.ID(),
		BookingID:   j.BookingID(),
		Stage:       string(j.Stage()),
		StartedAt:   j.StartedAt(),
		CompletedAt: j.CompletedAt(),
		Version:     j.Version(),
		UpdatedAt:   j.UpdatedAt(),
	}
}

func toJobNoteDTO(n *jobDomain.Note) JobNoteDTO {
	return JobNoteDTO{ID: n.ID, AuthorID: n.AuthorID, Note: n.Body, CreatedAt: n.CreatedAt}
}

func toPartUsageDTO(p *jobDomain.PartUsage) PartUsageDTO {
	return PartUsageDTO{
		PartID:         p.PartID,
		PartName:       p.PartName,
		Quantity:       p.Quantity,
		UnitPriceCents: p.UnitPriceCents,
		TotalCents:     p.TotalCents(),
	}
}

// QuoteDTO is the response representation of a quote.
type QuoteDTO struct {
	ID         uuid.UUID      `json:"id"`
	BookingID  uuid.UUID      `json:"bookingId"`
	Status     string         `json:"status"`
	Lines      []billing.Line `json:"lines"`
	TotalCents int64          `json:"totalCents"`
	Currency   string         `json:"currency"`
	Notes      string         `json:"notes,omitempty"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func toQuoteDTO(q *billing.Quote) QuoteDTO {
	return QuoteDTO{
		ID:         q.ID(),
		BookingID:  q.BookingID(),
		Status:     string(q.Status()),
		Lines:      q.Lines(),
		TotalCents: q.TotalCents(),
		Currency:   q.Currency(),
		Notes:      q.Notes(),
		ResolvedAt: q.ResolvedAt(),
		CreatedAt:  q.CreatedAt(),
	}
}

// BillingDTO is the response representation of a billing.
type BillingDTO struct {
	ID               uuid.UUID    `json:"id"`
	QuoteID          uuid.UUID    `json:"quoteId"`
	BookingID        uuid.UUID    `json:"bookingId"`
	CustomerID       uuid.UUID    `json:"customerId"`
	Status           string       `json:"status"`
	TotalCents       int64        `json:"totalCents"`
	PaidCents        int64        `json:"paidCents"`
	OutstandingCents int64        `json:"outstandingCents"`
	Currency         string       `json:"currency"`
	PaidAt           *time.Time   `json:"paidAt,omitempty"`
	Payments         []PaymentDTO `json:"payments,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// PaymentDTO is the response representation of a payment.
type PaymentDTO struct {
	ID          uuid.UUID `json:"id"`
	AmountCents int64     `json:"amountCents"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference,omitempty"`
	PaidAt      time.Time `json:"paidAt"`
}

func toBillingDTO(b *billing.Billing, payments []*billing.Payment) BillingDTO {
	dto := BillingDTO{
		ID:               b.ID(),
		QuoteID:          b.QuoteID(),
		BookingID:        b.BookingID(),
		CustomerID:       b.CustomerID(),
		Status:           string(b.Status()),
		TotalCents:       b.TotalCents(),
		PaidCents:        b.PaidCents(),
		OutstandingCents: b.OutstandingCents(),
		Currency:         b.Currency(),
		PaidAt:           b.PaidAt(),
		CreatedAt:        b.CreatedAt(),
	}
	for _, p := range payments {
		dto.Payments = append(dto.Payments, PaymentDTO{
			ID:          p.ID,
			AmountCents: p.AmountCents,
			Method:      string(p.Method),
			Reference:   p.Reference,
			PaidAt:      p.PaidAt,
		})
	}
	return dto
}

// NotificationDTO is the response representation of a notification.
type NotificationDTO struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"createdAt"`
}

func toNotificationDTO(n *notification.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Meta:      n.Meta,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// UserDTO is the public representation of an account.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserDTO(u *userDomain.User) UserDTO {
	return UserDTO{
		ID:        u.ID(),
		Name:      u.Name(),
		Email:     u.Email(),
		Phone:     u.Phone(),
		Role:      string(u.Role()),
		Blocked:   u.Blocked(),
		CreatedAt: u.CreatedAt(),
	}
}

// TechnicianDTO is a technician with computed availability.
type TechnicianDTO struct {
	UserDTO
	Available     bool       `json:"available"`
	EngagedOn     *uuid.UUID `json:"engagedOn,omitempty"`
	EngagedNumber string     `json:"engagedBookingNumber,omitempty"`
}

// CarDTO is the response representation of a car.
type CarDTO struct {
	ID          uuid.UUID `json:"id"`
	Make        string    `json:"make"`
	Model       string    `json:"model"`
	Year        int       `json:"year,omitempty"`
	PlateNumber string    `json:"plateNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toCarDTO(c *userDomain.Car) CarDTO {
	return CarDTO{ID: c.ID, Make: c.Make, Model: c.Model, Year: c.Year, PlateNumber: c.PlateNumber, CreatedAt: c.CreatedAt}
}

// ServiceDTO is the response representation of a catalog service.
type ServiceDTO struct {
	ID                    uuid.UUID `json:"id"`
	Name                  string    `json:"name"`
	Description           string    `json:"description,omitempty"`
	PriceCents            int64     `json:"priceCents"`
	DurationMinutes       int       `json:"durationMinutes"`
	AllowTechnicianChoice bool      `json:"allowTechnicianChoice"`
	Active                bool      `json:"active"`
}

// PackDTO is the response representation of a pack.
type PackDTO struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	PriceCents  int64       `json:"priceCents"`
	ServiceIDs  []uuid.UUID `json:"serviceIds"`
	Active      bool        `json:"active"`
}

// PartDTO is the response representation of a spare part.
type PartDTO struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	Stock          int       `json:"stock"`
	UnitPriceCents int64     `json:"unitPriceCents"`
}

func toServiceDTO(s *catalog.Service) ServiceDTO {
	return ServiceDTO{
		ID:                    s.ID,
		Name:                  s.Name,
		Description:           s.Description,
		PriceCents:            s.PriceCents,
		DurationMinutes:       s.DurationMinutes,
		AllowTechnicianChoice: s.AllowTechnicianChoice,
		Active:                s.Active,
	}
}

func toPackDTO(p *catalog.Pack) PackDTO {
	ids := p.ServiceIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return PackDTO{ID: p.ID, Name: p.Name, Description: p.Description, PriceCents: p.PriceCents, ServiceIDs: ids, Active: p.Active}
}

func toPartDTO(p *catalog.Part) PartDTO {
	return PartDTO{ID: p.ID, Name: p.Name, SKU: p.SKU, Stock: p.Stock, UnitPriceCents: p.UnitPriceCents}
}
