package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

type completedJob struct {
	admin, customer, tech application.Actor
	booking               application.BookingDTO
}

// completeWithParts books, confirms and completes a job consuming two parts at 2500 each.
func (h *harness) completeWithParts(t *testing.T) completedJob {
	t.Helper()
	ctx := context.Background()
	c := completedJob{
		admin:    h.user(t, auth.RoleAdmin),
		customer: h.user(t, auth.RoleCustomer),
		tech:     h.user(t, auth.RoleTechnician),
	}
	part := h.part(t, "Expansion valve", 4)
	c.booking = h.book(t, c.customer, h.service(t, false))
	jobID := h.assignAndConfirm(t, c.admin, c.booking.ID, c.tech.ID)
	_, err := h.jobs.CompleteJob(ctx, c.tech, jobID, application.CompleteJobRequest{
		Parts: []application.PartInput{{PartID: part.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	return c
}

func TestGenerateQuote_PricesServicePartsAndExtras(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.completeWithParts(t)

	q, err := h.billing.GenerateQuote(ctx, c.admin, c.booking.ID, application.GenerateQuoteRequest{
		Lines: []application.QuoteLineInput{{Kind: "LABOR", Description: "Compressor flush", Quantity: 1, UnitPriceCents: 5000}},
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", q.Status)
	assert.Equal(t, int64(18000), q.TotalCents)
	require.Len(t, q.Lines, 3)
	assert.Equal(t, "SERVICE", string(q.Lines[0].Kind))
	assert.Equal(t, "PART", string(q.Lines[1].Kind))
	assert.Equal(t, 2, q.Lines[1].Quantity)
	assert.Contains(t, h.unreadTypes(t, c.customer.ID), "QUOTE_GENERATED")

	var conflict *domain.ConflictError
	_, err = h.billing.GenerateQuote(ctx, c.admin, c.booking.ID, application.GenerateQuoteRequest{})
	assert.ErrorAs(t, err, &conflict, "one quote per booking")

	got, err := h.billing.GetQuoteByBooking(ctx, c.customer, c.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.ID)

	var forbidden *domain.ForbiddenError
	_, err = h.billing.GetQuoteByBooking(ctx, h.user(t, auth.RoleCustomer), c.booking.ID)
	assert.ErrorAs(t, err, &forbidden)
}

func TestGenerateQuote_RequiresCompletedJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, auth.RoleAdmin)
	customer := h.user(t, auth.RoleCustomer)
	tech := h.user(t, auth.RoleTechnician)

	bk := h.book(t, customer, h.service(t, false))

	var rule *domain.BusinessRuleError
	_, err := h.billing.GenerateQuote(ctx, admin, bk.ID, application.GenerateQuoteRequest{})
	assert.ErrorAs(t, err, &rule, "no job yet")

	h.assignAndConfirm(t, admin, bk.ID, tech.ID)
	_, err = h.billing.GenerateQuote(ctx, admin, bk.ID, application.GenerateQuoteRequest{})
	assert.ErrorAs(t, err, &rule, "job still in DIAGNOSTIC")
}

func TestAcceptQuote_PaymentsSettleBilling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.completeWithParts(t)

	q, err := h.billing.GenerateQuote(ctx, c.admin, c.booking.ID, application.GenerateQuoteRequest{
		Lines: []application.QuoteLineInput{{Kind: "LABOR", Description: "Compressor flush", Quantity: 1, UnitPriceCents: 5000}},
	})
	require.NoError(t, err)

	var forbidden *domain.ForbiddenError
	_, err = h.billing.AcceptQuote(ctx, c.tech, q.ID)
	assert.ErrorAs(t, err, &forbidden)

	b, err := h.billing.AcceptQuote(ctx, c.customer, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "UNPAID", b.Status)
	assert.Equal(t, int64(18000), b.TotalCents)
	assert.Equal(t, int64(18000), b.OutstandingCents)
	assert.Contains(t, h.unreadTypes(t, c.admin.ID), "QUOTE_ACCEPTED")

	var serr *domain.InvalidStateError
	_, err = h.billing.RejectQuote(ctx, c.customer, q.ID)
	assert.ErrorAs(t, err, &serr, "an accepted quote is final")

	b, err = h.billing.RecordPayment(ctx, c.admin, b.ID, application.RecordPaymentRequest{AmountCents: 10000, Method: "CASH"})
	require.NoError(t, err)
	assert.Equal(t, "UNPAID", b.Status)
	assert.Equal(t, int64(8000), b.OutstandingCents)

	var rule *domain.BusinessRuleError
	_, err = h.billing.RecordPayment(ctx, c.admin, b.ID, application.RecordPaymentRequest{AmountCents: 9000, Method: "CARD"})
	assert.ErrorAs(t, err, &rule, "overpayment is refused")

	b, err = h.billing.RecordPayment(ctx, c.admin, b.ID, application.RecordPaymentRequest{AmountCents: 8000, Method: "EWALLET", Reference: "TNG-123"})
	require.NoError(t, err)
	assert.Equal(t, "PAID", b.Status)
	assert.NotNil(t, b.PaidAt)
	assert.Len(t, b.Payments, 2)
	assert.Contains(t, h.unreadTypes(t, c.customer.ID), "BILLING_PAID")

	list, total, err := h.billing.ListBillings(ctx, c.customer, "PAID", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, b.ID, list[0].ID)

	_, total, err = h.billing.ListBillings(ctx, h.user(t, auth.RoleCustomer), "", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = h.billing.ListBillings(ctx, c.tech, "", 1, 10)
	assert.ErrorAs(t, err, &forbidden)
}

func TestRejectQuote_NoBilling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.completeWithParts(t)

	q, err := h.billing.GenerateQuote(ctx, c.admin, c.booking.ID, application.GenerateQuoteRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(13000), q.TotalCents)

	rejected, err := h.billing.RejectQuote(ctx, c.customer, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", rejected.Status)
	assert.NotNil(t, rejected.ResolvedAt)
	assert.Contains(t, h.unreadTypes(t, c.admin.ID), "QUOTE_REJECTED")

	var serr *domain.InvalidStateError
	_, err = h.billing.AcceptQuote(ctx, c.customer, q.ID)
	assert.ErrorAs(t, err, &serr)

	_, total, err := h.billing.ListBillings(ctx, c.admin, "", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestUpdateBillingStatusAndInvoice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.completeWithParts(t)

	q, err := h.billing.GenerateQuote(ctx, c.admin, c.booking.ID, application.GenerateQuoteRequest{})
	require.NoError(t, err)
	b, err := h.billing.AcceptQuote(ctx, c.customer, q.ID)
	require.NoError(t, err)

	var serr *domain.InvalidStateError
	_, err = h.billing.UpdateBillingStatus(ctx, c.admin, b.ID, application.UpdateBillingStatusRequest{Status: "UNPAID"})
	assert.ErrorAs(t, err, &serr)

	paid, err := h.billing.UpdateBillingStatus(ctx, c.admin, b.ID, application.UpdateBillingStatusRequest{Status: "PAID"})
	require.NoError(t, err)
	assert.Equal(t, "PAID", paid.Status)

	data, name, err := h.billing.Invoice(ctx, c.customer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), data)
	assert.Equal(t, "invoice-"+c.booking.BookingNumber+".xlsx", name)

	doc := h.renderer.last
	assert.Equal(t, b.ID, doc.Billing.ID)
	assert.Equal(t, q.ID, doc.Quote.ID)
	assert.Equal(t, c.customer.ID, doc.Customer.ID)
	assert.Equal(t, c.booking.CarID, doc.Car.ID)
	assert.True(t, testNow.Equal(doc.IssuedAt))

	var forbidden *domain.ForbiddenError
	_, _, err = h.billing.Invoice(ctx, h.user(t, auth.RoleCustomer), b.ID)
	assert.ErrorAs(t, err, &forbidden)
}
