package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chillcar/service-booking/internal/domain/billing"
	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	jobDomain "github.com/chillcar/service-booking/internal/domain/job"
	"github.com/chillcar/service-booking/internal/domain/notification"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// QuoteLineInput is an extra line an admin adds on top of the service and parts lines.
type QuoteLineInput struct {
	Kind           string `json:"kind" binding:"required,oneof=LABOR OTHER"`
	Description    string `json:"description" binding:"required,max=200"`
	Quantity       int    `json:"quantity" binding:"required,gt=0"`
	UnitPriceCents int64  `json:"unitPriceCents" binding:"gte=0"`
}

// GenerateQuoteRequest holds the admin's additions to a generated quote.
type GenerateQuoteRequest struct {
	Lines []QuoteLineInput `json:"lines" binding:"dive"`
	Notes string           `json:"notes" binding:"max=1000"`
}

// RecordPaymentRequest holds a payment received against a billing.
type RecordPaymentRequest struct {
	AmountCents int64  `json:"amountCents" binding:"required,gt=0"`
	Method      string `json:"method" binding:"required,oneof=CASH CARD BANK_TRANSFER EWALLET"`
	Reference   string `json:"reference" binding:"max=100"`
}

// UpdateBillingStatusRequest flips a billing's status by hand.
type UpdateBillingStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PAID UNPAID"`
}

// InvoiceDocument gathers everything printed on an invoice.
type InvoiceDocument struct {
	Billing  BillingDTO
	Quote    QuoteDTO
	Booking  BookingDTO
	Customer UserDTO
	Car      CarDTO
	IssuedAt time.Time
}

// InvoiceRenderer turns an invoice into a downloadable file.
type InvoiceRenderer interface {
	Render(doc InvoiceDocument) ([]byte, error)
}

// BillingService orchestrates quoting, billing and payments.
type BillingService struct {
	clock
	repos    Repositories
	tx       TxRunner
	notify   fanout
	renderer InvoiceRenderer
	logger   *zap.Logger
}

// NewBillingService creates a new BillingService.
func NewBillingService(repos Repositories, tx TxRunner, notifier Notifier, renderer InvoiceRenderer, logger *zap.Logger) *BillingService {
	return &BillingService{
		repos:    repos,
		tx:       tx,
		notify:   newFanout(repos, notifier, logger),
		renderer: renderer,
		logger:   logger,
	}
}

// WithClock replaces the time source.
func (s *BillingService) WithClock(now func() time.Time) *BillingService {
	s.now = now
	return s
}

// GenerateQuote prices a completed job: the booked service or pack, every part used, and any extra
// lines the admin adds. A booking has at most one quote.
func (s *BillingService) GenerateQuote(ctx context.Context, actor Actor, bookingID uuid.UUID, req GenerateQuoteRequest) (*QuoteDTO, error) {
	bk, err := s.repos.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	j, err := s.repos.Jobs.FindByBookingID(ctx, bk.ID())
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewBusinessRuleError("booking %s has no job yet", bk.BookingNumber())
		}
		return nil, err
	}
	if j.Stage() != jobDomain.StageCompletion {
		return nil, domain.NewBusinessRuleError("job for booking %s must be completed before quoting", bk.BookingNumber())
	}
	if _, err := s.repos.Quotes.FindByBookingID(ctx, bk.ID()); err == nil {
		return nil, domain.NewConflictError(fmt.Sprintf("booking %s already has a quote", bk.BookingNumber()))
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	lines, err := s.baseLines(ctx, bk, j)
	if err != nil {
		return nil, err
	}
	for _, l := range req.Lines {
		lines = append(lines, billing.Line{
			Kind:           billing.LineKind(l.Kind),
			Description:    l.Description,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		})
	}

	q, err := billing.NewQuote(bk.ID(), lines, req.Notes, actor.ID, s.current())
	if err != nil {
		return nil, err
	}
	if err := s.repos.Quotes.Save(ctx, q); err != nil {
		return nil, err
	}

	s.notify.send(ctx, to([]uuid.UUID{bk.CustomerID()}, actor.ID, notification.TypeQuoteGenerated,
		"Quote ready",
		fmt.Sprintf("A quote of %s for booking %s is waiting for your approval.", formatCents(q.TotalCents(), q.Currency()), bk.BookingNumber()),
		quoteMeta(bk, q)))

	result := toQuoteDTO(q)
	return &result, nil
}

func (s *BillingService) baseLines(ctx context.Context, bk *bookingDomain.Booking, j *jobDomain.Job) ([]billing.Line, error) {
	var lines []billing.Line
	switch {
	case bk.ServiceID() != nil:
		svc, err := s.repos.Catalog.FindService(ctx, *bk.ServiceID())
		if err != nil {
			return nil, err
		}
		lines = append(lines, billing.Line{Kind: billing.LineService, Description: svc.Name, Quantity: 1, UnitPriceCents: svc.PriceCents})
	case bk.PackID() != nil:
		pack, err := s.repos.Catalog.FindPack(ctx, *bk.PackID())
		if err != nil {
			return nil, err
		}
		lines = append(lines, billing.Line{Kind: billing.LineService, Description: pack.Name, Quantity: 1, UnitPriceCents: pack.PriceCents})
	}

	parts, err := s.repos.Jobs.ListPartsUsed(ctx, j.ID())
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		lines = append(lines, billing.Line{Kind: billing.LinePart, Description: p.PartName, Quantity: p.Quantity, UnitPriceCents: p.UnitPriceCents})
	}
	return lines, nil
}

// GetQuoteByBooking returns the quote of a booking the actor can see.
func (s *BillingService) GetQuoteByBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*QuoteDTO, error) {
	bk, err := s.repos.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.canSeeBooking(bk) {
		return nil, domain.NewForbiddenError("you do not have access to this booking")
	}
	q, err := s.repos.Quotes.FindByBookingID(ctx, bk.ID())
	if err != nil {
		return nil, err
	}
	result := toQuoteDTO(q)
	return &result, nil
}

// AcceptQuote approves a quote and raises its billing in one transaction.
func (s *BillingService) AcceptQuote(ctx context.Context, actor Actor, quoteID uuid.UUID) (*BillingDTO, error) {
	now := s.current()
	var (
		bk *bookingDomain.Booking
		q  *billing.Quote
		b  *billing.Billing
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		q, bk, err = s.loadQuote(ctx, actor, quoteID)
		if err != nil {
			return err
		}
		if err := q.Accept(now); err != nil {
			return err
		}
		if err := s.repos.Quotes.Update(ctx, q); err != nil {
			return err
		}
		b, err = billing.NewBillingFromQuote(q, bk.CustomerID(), now)
		if err != nil {
			return err
		}
		return s.repos.Billings.Save(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	meta := quoteMeta(bk, q)
	meta["billingId"] = b.ID().String()
	message := fmt.Sprintf("Quote for booking %s was accepted. Amount due: %s.", bk.BookingNumber(), formatCents(b.TotalCents(), b.Currency()))
	msgs := to([]uuid.UUID{bk.CustomerID()}, actor.ID, notification.TypeQuoteAccepted, "Quote accepted", message, meta)
	msgs = append(msgs, s.notify.toAdmins(ctx, actor.ID, notification.TypeQuoteAccepted, "Quote accepted", message, meta)...)
	s.notify.send(ctx, msgs)

	result := toBillingDTO(b, nil)
	return &result, nil
}

// RejectQuote declines a pending quote.
func (s *BillingService) RejectQuote(ctx context.Context, actor Actor, quoteID uuid.UUID) (*QuoteDTO, error) {
	q, bk, err := s.loadQuote(ctx, actor, quoteID)
	if err != nil {
		return nil, err
	}
	if err := q.Reject(s.current()); err != nil {
		return nil, err
	}
	if err := s.repos.Quotes.Update(ctx, q); err != nil {
		return nil, err
	}

	s.notify.send(ctx, s.notify.toAdmins(ctx, actor.ID, notification.TypeQuoteRejected,
		"Quote rejected",
		fmt.Sprintf("Quote for booking %s was rejected.", bk.BookingNumber()),
		quoteMeta(bk, q)))

	result := toQuoteDTO(q)
	return &result, nil
}

// loadQuote fetches a quote that the actor, an admin or the booking's customer, may resolve.
func (s *BillingService) loadQuote(ctx context.Context, actor Actor, quoteID uuid.UUID) (*billing.Quote, *bookingDomain.Booking, error) {
	q, err := s.repos.Quotes.FindByID(ctx, quoteID)
	if err != nil {
		return nil, nil, err
	}
	bk, err := s.repos.Bookings.FindByID(ctx, q.BookingID())
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsAdmin() && bk.CustomerID() != actor.ID {
		return nil, nil, domain.NewForbiddenError("only the customer or an admin can resolve this quote")
	}
	return q, bk, nil
}

// ListBillings lists billings; customers only see their own.
func (s *BillingService) ListBillings(ctx context.Context, actor Actor, status string, page, limit int) ([]BillingDTO, int64, error) {
	if actor.IsTechnician() {
		return nil, 0, domain.NewForbiddenError("technicians cannot view billings")
	}
	page, limit = pageBounds(page, limit)
	filter := billing.ListFilter{}
	if actor.IsCustomer() {
		filter.CustomerID = &actor.ID
	}
	if status != "" {
		st, err := billing.ParseStatus(status)
		if err != nil {
			return nil, 0, domain.NewValidationError(err.Error())
		}
		filter.Status = &st
	}

	list, total, err := s.repos.Billings.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]BillingDTO, len(list))
	for i, b := range list {
		out[i] = toBillingDTO(b, nil)
	}
	return out, total, nil
}

// GetBilling returns a billing with its payments.
func (s *BillingService) GetBilling(ctx context.Context, actor Actor, billingID uuid.UUID) (*BillingDTO, error) {
	b, err := s.loadBilling(ctx, actor, billingID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repos.Billings.ListPayments(ctx, b.ID())
	if err != nil {
		return nil, err
	}
	result := toBillingDTO(b, payments)
	return &result, nil
}

// RecordPayment stores a payment. A payment that settles the outstanding amount marks the billing PAID.
func (s *BillingService) RecordPayment(ctx context.Context, actor Actor, billingID uuid.UUID, req RecordPaymentRequest) (*BillingDTO, error) {
	now := s.current()
	var (
		b        *billing.Billing
		payments []*billing.Payment
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.repos.Billings.FindByID(ctx, billingID)
		if err != nil {
			return err
		}
		p, err := b.RecordPayment(req.AmountCents, billing.PaymentMethod(req.Method), req.Reference, actor.ID, now)
		if err != nil {
			return err
		}
		b.IncrementVersion()
		if err := s.repos.Billings.Update(ctx, b); err != nil {
			return err
		}
		if err := s.repos.Billings.AddPayment(ctx, p); err != nil {
			return err
		}
		payments, err = s.repos.Billings.ListPayments(ctx, b.ID())
		return err
	})
	if err != nil {
		return nil, err
	}

	meta := billingMeta(b)
	msgs := to([]uuid.UUID{b.CustomerID()}, actor.ID, notification.TypePaymentRecorded,
		"Payment received",
		fmt.Sprintf("We received %s. Outstanding: %s.", formatCents(req.AmountCents, b.Currency()), formatCents(b.OutstandingCents(), b.Currency())),
		meta)
	if b.Status() == billing.StatusPaid {
		msgs = append(msgs, to([]uuid.UUID{b.CustomerID()}, actor.ID, notification.TypeBillingPaid,
			"Billing settled", "Your billing is fully paid. Thank you!", meta)...)
	}
	s.notify.send(ctx, msgs)

	s.logger.Info("payment recorded",
		zap.String("billing_id", b.ID().String()),
		zap.Int64("amount_cents", req.AmountCents),
		zap.String("status", string(b.Status())),
	)
	result := toBillingDTO(b, payments)
	return &result, nil
}

// UpdateBillingStatus is the admin's manual reconciliation path.
func (s *BillingService) UpdateBillingStatus(ctx context.Context, actor Actor, billingID uuid.UUID, req UpdateBillingStatusRequest) (*BillingDTO, error) {
	status, err := billing.ParseStatus(req.Status)
	if err != nil {
		return nil, domain.NewFieldValidationError(map[string]string{"status": err.Error()})
	}
	b, err := s.repos.Billings.FindByID(ctx, billingID)
	if err != nil {
		return nil, err
	}
	if err := b.SetStatus(status, s.current()); err != nil {
		return nil, err
	}
	b.IncrementVersion()
	if err := s.repos.Billings.Update(ctx, b); err != nil {
		return nil, err
	}

	if b.Status() == billing.StatusPaid {
		s.notify.send(ctx, to([]uuid.UUID{b.CustomerID()}, actor.ID, notification.TypeBillingPaid,
			"Billing settled", "Your billing has been marked as paid.", billingMeta(b)))
	}
	result := toBillingDTO(b, nil)
	return &result, nil
}

// Invoice renders the invoice file of a billing and returns it with a suggested file name.
func (s *BillingService) Invoice(ctx context.Context, actor Actor, billingID uuid.UUID) ([]byte, string, error) {
	b, err := s.loadBilling(ctx, actor, billingID)
	if err != nil {
		return nil, "", err
	}
	payments, err := s.repos.Billings.ListPayments(ctx, b.ID())
	if err != nil {
		return nil, "", err
	}
	q, err := s.repos.Quotes.FindByID(ctx, b.QuoteID())
	if err != nil {
		return nil, "", err
	}
	bk, err := s.repos.Bookings.FindByID(ctx, b.BookingID())
	if err != nil {
		return nil, "", err
	}
	customer, err := s.repos.Users.FindByID(ctx, b.CustomerID())
	if err != nil {
		return nil, "", err
	}
	car, err := s.repos.Users.FindCar(ctx, bk.CarID())
	if err != nil {
		return nil, "", err
	}

	doc := InvoiceDocument{
		Billing:  toBillingDTO(b, payments),
		Quote:    toQuoteDTO(q),
		Booking:  toBookingDTO(bk),
		Customer: toUserDTO(customer),
		Car:      toCarDTO(car),
		IssuedAt: s.current(),
	}
	data, err := s.renderer.Render(doc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render invoice: %w", err)
	}
	return data, fmt.Sprintf("invoice-%s.xlsx", bk.BookingNumber()), nil
}

// loadBilling fetches a billing visible to the actor: admins see all, customers their own.
func (s *BillingService) loadBilling(ctx context.Context, actor Actor, billingID uuid.UUID) (*billing.Billing, error) {
	b, err := s.repos.Billings.FindByID(ctx, billingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && b.CustomerID() != actor.ID {
		return nil, domain.NewForbiddenError("you do not have access to this billing")
	}
	return b, nil
}

func quoteMeta(bk *bookingDomain.Booking, q *billing.Quote) map[string]any {
	meta := bookingMeta(bk)
	meta["quoteId"] = q.ID().String()
	return meta
}

func billingMeta(b *billing.Billing) map[string]any {
	return map[string]any{
		"billingId": b.ID().String(),
		"bookingId": b.BookingID().String(),
	}
}

// formatCents renders an amount like "MYR 125.50".
func formatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, cents/100, cents%100)
}
