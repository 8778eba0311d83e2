package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chillcar/service-booking/internal/platform/domain"
)

// Status is the payment state of a billing.
type Status string

const (
	StatusUnpaid Status = "UNPAID"
	StatusPaid   Status = "PAID"
)

// ParseStatus converts a string to a billing Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusUnpaid, StatusPaid:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid billing status: %s", s)
}

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodEWallet      PaymentMethod = "EWALLET"
)

// IsValid reports whether m is a supported payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodEWallet:
		return true
	}
	return false
}

// Payment is money received against a billing.
type Payment struct {
	ID          uuid.UUID
	BillingID   uuid.UUID
	AmountCents int64
	Method      PaymentMethod
	Reference   string
	RecordedBy  uuid.UUID
	PaidAt      time.Time
}

// Billing is the invoice raised from an approved quote.
type Billing struct {
	id         uuid.UUID
	quoteID    uuid.UUID
	bookingID  uuid.UUID
	customerID uuid.UUID
	status     Status
	totalCents int64
	paidCents  int64
	currency   string
	paidAt     *time.Time
	version    int64
	createdAt  time.Time
	updatedAt  time.Time
}

// NewBillingFromQuote raises an UNPAID billing for an approved quote. A zero total has nothing to
// collect, so that billing starts out PAID.
func NewBillingFromQuote(q *Quote, customerID uuid.UUID, now time.Time) (*Billing, error) {
	if q.Status() != QuoteApproved {
		return nil, domain.NewBusinessRuleError("billing can only be raised from an approved quote")
	}
	now = now.UTC()
	b := &Billing{
		id:         uuid.New(),
		quoteID:    q.ID(),
		bookingID:  q.BookingID(),
		customerID: customerID,
		status:     StatusUnpaid,
		totalCents: q.TotalCents(),
		currency:   q.Currency(),
		version:    1,
		createdAt:  now,
		updatedAt:  now,
	}
	if b.totalCents == 0 {
		b.status = StatusPaid
		b.paidAt = &now
	}
	return b, nil
}

// ReconstructBilling rebuilds a Billing from persistence data.
func ReconstructBilling(
	id, quoteID, bookingID, customerID uuid.UUID,
	status Status,
	totalCents, paidCents int64,
	currency string,
	paidAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Billing {
	return &Billing{
		id:         id,
		quoteID:    quoteID,
		bookingID:  bookingID,
		customerID: customerID,
		status:     status,
		totalCents: totalCents,
		paidCents:  paidCents,
		currency:   currency,
		paidAt:     paidAt,
		version:    version,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (b *Billing) ID() uuid.UUID         { return b.id }
func (b *Billing) QuoteID() uuid.UUID    { return b.quoteID }
func (b *Billing) BookingID() uuid.UUID  { return b.bookingID }
func (b *Billing) CustomerID() uuid.UUID { return b.customerID }
func (b *Billing) Status() Status        { return b.status }
func (b *Billing) TotalCents() int64     { return b.totalCents }
func (b *Billing) PaidCents() int64      { return b.paidCents }
func (b *Billing) Currency() string      { return b.currency }
func (b *Billing) PaidAt() *time.Time    { return b.paidAt }
func (b *Billing) Version() int64        { return b.version }
func (b *Billing) CreatedAt() time.Time  { return b.createdAt }
func (b *Billing) UpdatedAt() time.Time  { return b.updatedAt }

// OutstandingCents is the amount still to be paid.
func (b *Billing) OutstandingCents() int64 {
	if b.paidCents >= b.totalCents {
		return 0
	}
	return b.totalCents - b.paidCents
}

// RecordPayment applies a payment. When the paid sum reaches the total the billing becomes PAID.
func (b *Billing) RecordPayment(amountCents int64, method PaymentMethod, reference string, recordedBy uuid.UUID, now time.Time) (*Payment, error) {
	if b.status == StatusPaid {
		return nil, domain.NewBusinessRuleError("billing is already paid")
	}
	if amountCents <= 0 {
		return nil, domain.NewFieldValidationError(map[string]string{"amount": "must be positive"})
	}
	if !method.IsValid() {
		return nil, domain.NewFieldValidationError(map[string]string{"method": "is not a supported payment method"})
	}
	if amountCents > b.OutstandingCents() {
		return nil, domain.NewBusinessRuleError("payment of %d exceeds the outstanding amount of %d", amountCents, b.OutstandingCents())
	}

	now = now.UTC()
	b.paidCents += amountCents
	b.updatedAt = now
	if b.paidCents >= b.totalCents {
		b.status = StatusPaid
		b.paidAt = &now
	}
	return &Payment{
		ID:          uuid.New(),
		BillingID:   b.id,
		AmountCents: amountCents,
		Method:      method,
		Reference:   reference,
		RecordedBy:  recordedBy,
		PaidAt:      now,
	}, nil
}

// SetStatus is the manual reconciliation path used by admins. A billing whose payments already
// cover the total cannot go back to UNPAID, since no further payment could settle it.
func (b *Billing) SetStatus(status Status, now time.Time) error {
	if status == b.status {
		return domain.NewInvalidStateError(string(b.status), string(status))
	}
	if status == StatusUnpaid && b.paidCents >= b.totalCents {
		return domain.NewBusinessRuleError("billing is fully covered by its payments (%d of %d)", b.paidCents, b.totalCents)
	}
	now = now.UTC()
	b.status = status
	b.updatedAt = now
	if status == StatusPaid {
		b.paidAt = &now
	} else {
		b.paidAt = nil
	}
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Billing) IncrementVersion() {
	b.version++
}
