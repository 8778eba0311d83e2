package billing

import (
	"context"

	"github.com/google/uuid"
)

// QuoteRepository defines the persistence contract for quotes.
type QuoteRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Quote, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*Quote, error)
	Save(ctx context.Context, q *Quote) error
	Update(ctx context.Context, q *Quote) error
}

// ListFilter narrows a billing listing.
type ListFilter struct {
	CustomerID *uuid.UUID
	Status     *Status
}

// BillingRepository defines the persistence contract for billings and their payments.
type BillingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Billing, error)
	FindByQuoteID(ctx context.Context, quoteID uuid.UUID) (*Billing, error)
	List(ctx context.Context, filter ListFilter, page, limit int) ([]*Billing, int64, error)
	Save(ctx context.Context, b *Billing) error
	// Update persists changes with optimistic locking.
	Update(ctx context.Context, b *Billing) error

	AddPayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, billingID uuid.UUID) ([]*Payment, error)
}
