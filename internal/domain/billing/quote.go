// Package billing covers the money side of a job: the quote proposed after the work, the billing
// raised when a quote is accepted, and the payments recorded against it.
package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chillcar/service-booking/internal/platform/domain"
)

// QuoteStatus is the approval state of a quote.
type QuoteStatus string

const (
	QuotePending  QuoteStatus = "PENDING"
	QuoteApproved QuoteStatus = "APPROVED"
	QuoteRejected QuoteStatus = "REJECTED"
)

// LineKind classifies a quote line.
type LineKind string

const (
	LineService LineKind = "SERVICE"
	LinePart    LineKind = "PART"
	LineLabor   LineKind = "LABOR"
	LineOther   LineKind = "OTHER"
)

// Line is one priced entry of a quote.
type Line struct {
	Kind           LineKind `json:"kind"`
	Description    string   `json:"description"`
	Quantity       int      `json:"quantity"`
	UnitPriceCents int64    `json:"unitPriceCents"`
}

// TotalCents returns quantity times unit price.
func (l Line) TotalCents() int64 { return int64(l.Quantity) * l.UnitPriceCents }

func (l Line) validate() error {
	switch {
	case strings.TrimSpace(l.Description) == "":
		return domain.NewValidationError("quote line description is required")
	case l.Quantity <= 0:
		return domain.NewValidationError("quote line quantity must be positive")
	case l.UnitPriceCents < 0:
		return domain.NewValidationError("quote line price cannot be negative")
	}
	return nil
}

// Quote is the priced proposal for a completed job.
type Quote struct {
	id         uuid.UUID
	bookingID  uuid.UUID
	status     QuoteStatus
	lines      []Line
	totalCents int64
	currency   string
	notes      string
	createdBy  uuid.UUID
	resolvedAt *time.Time
	createdAt  time.Time
	updatedAt  time.Time
}

// NewQuote creates a PENDING quote and computes its total from lines.
func NewQuote(bookingID uuid.UUID, lines []Line, notes string, createdBy uuid.UUID, now time.Time) (*Quote, error) {
	if bookingID == uuid.Nil {
		return nil, domain.NewValidationError("booking ID is required")
	}
	if len(lines) == 0 {
		return nil, domain.NewValidationError("a quote needs at least one line")
	}
	var total int64
	for _, l := range lines {
		if err := l.validate(); err != nil {
			return nil, err
		}
		total += l.TotalCents()
	}
	now = now.UTC()
	return &Quote{
		id:         uuid.New(),
		bookingID:  bookingID,
		status:     QuotePending,
		lines:      lines,
		totalCents: total,
		currency:   domain.CurrencyMYR,
		notes:      notes,
		createdBy:  createdBy,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructQuote rebuilds a Quote from persistence data.
func ReconstructQuote(
	id, bookingID uuid.UUID,
	status QuoteStatus,
	lines []Line,
	totalCents int64,
	currency, notes string,
	createdBy uuid.UUID,
	resolvedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Quote {
	return &Quote{
		id:         id,
		bookingID:  bookingID,
		status:     status,
		lines:      lines,
		totalCents: totalCents,
		currency:   currency,
		notes:      notes,
		createdBy:  createdBy,
		resolvedAt: resolvedAt,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (q *Quote) ID() uuid.UUID          { return q.id }
func (q *Quote) BookingID() uuid.UUID   { return q.bookingID }
func (q *Quote) Status() QuoteStatus    { return q.status }
func (q *Quote) Lines() []Line          { return q.lines }
func (q *Quote) TotalCents() int64      { return q.totalCents }
func (q *Quote) Currency() string       { return q.currency }
func (q *Quote) Notes() string          { return q.notes }
func (q *Quote) CreatedBy() uuid.UUID   { return q.createdBy }
func (q *Quote) ResolvedAt() *time.Time { return q.resolvedAt }
func (q *Quote) CreatedAt() time.Time   { return q.createdAt }
func (q *Quote) UpdatedAt() time.Time   { return q.updatedAt }

// Accept approves a pending quote.
func (q *Quote) Accept(now time.Time) error {
	return q.resolve(QuoteApproved, now)
}

// Reject declines a pending quote.
func (q *Quote) Reject(now time.Time) error {
	return q.resolve(QuoteRejected, now)
}

func (q *Quote) resolve(to QuoteStatus, now time.Time) error {
	if q.status != QuotePending {
		return domain.NewInvalidStateError(string(q.status), string(to))
	}
	now = now.UTC()
	q.status = to
	q.resolvedAt = &now
	q.updatedAt = now
	return nil
}
