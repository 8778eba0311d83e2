package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chillcar/service-booking/internal/platform/domain"
)

var (
	testNow    = time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)
	testWindow = DefaultServiceWindow(time.UTC)
)

func newStandardBooking(t *testing.T, at time.Time) *Booking {
	t.Helper()
	serviceID := uuid.New()
	b, err := NewBooking(NewBookingParams{
		CustomerID:  uuid.New(),
		CarID:       uuid.New(),
		ServiceID:   &serviceID,
		Kind:        KindStandard,
		ScheduledAt: at,
	}, testWindow, testNow)
	require.NoError(t, err)
	return b
}

func TestNewBooking_Standard(t *testing.T) {
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	b := newStandardBooking(t, at)

	assert.Equal(t, StatusPending, b.Status())
	assert.Equal(t, KindStandard, b.Kind())
	assert.Equal(t, at, b.ScheduledAt())
	assert.Regexp(t, `^BK-[A-Z2-9]{6}$`, b.BookingNumber())
	assert.Equal(t, int64(1), b.Version())
}

func TestNewBooking_WindowValidation(t *testing.T) {
	serviceID := uuid.New()
	cases := map[string]time.Time{
		"before opening": time.Date(2025, 1, 15, 7, 59, 0, 0, time.UTC),
		"after closing":  time.Date(2025, 1, 15, 17, 1, 0, 0, time.UTC),
		"in the past":    time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC),
		"missing":        {},
	}
	for name, at := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewBooking(NewBookingParams{
				CustomerID: uuid.New(), CarID: uuid.New(), ServiceID: &serviceID, ScheduledAt: at,
			}, testWindow, testNow)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, "scheduledAt")
		})
	}

	closing := time.Date(2025, 1, 15, 17, 0, 0, 0, time.UTC)
	assert.Equal(t, closing, newStandardBooking(t, closing).ScheduledAt())
}

func TestNewBooking_ConsultationUsesNow(t *testing.T) {
	packID := uuid.New()
	b, err := NewBooking(NewBookingParams{
		CustomerID:  uuid.New(),
		CarID:       uuid.New(),
		PackID:      &packID,
		Kind:        KindConsultation,
		ScheduledAt: time.Date(2020, 1, 1, 23, 0, 0, 0, time.UTC),
	}, testWindow, testNow)
	require.NoError(t, err)
	assert.Equal(t, testNow, b.ScheduledAt())
	assert.Equal(t, KindConsultation, b.Kind())
}

func TestNewBooking_RequiresExactlyOneOfServiceOrPack(t *testing.T) {
	id := uuid.New()
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	_, err := NewBooking(NewBookingParams{CustomerID: uuid.New(), CarID: uuid.New(), ScheduledAt: at}, testWindow, testNow)
	assert.Error(t, err)

	_, err = NewBooking(NewBookingParams{
		CustomerID: uuid.New(), CarID: uuid.New(), ServiceID: &id, PackID: &id, ScheduledAt: at,
	}, testWindow, testNow)
	assert.Error(t, err)
}

func TestBooking_StatusTransitions(t *testing.T) {
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	b := newStandardBooking(t, at)
	require.NoError(t, b.Confirm(testNow))
	assert.Equal(t, StatusConfirmed, b.Status())
	assert.NotNil(t, b.ConfirmedAt())

	var serr *domain.InvalidStateError
	assert.True(t, errors.As(b.Reject("late", testNow), &serr))
	require.NoError(t, b.Cancel("changed plans", testNow))
	assert.Equal(t, StatusCancelled, b.Status())
	assert.True(t, errors.As(b.Confirm(testNow), &serr))

	r := newStandardBooking(t, at)
	assert.Error(t, r.Reject("", testNow))
	require.NoError(t, r.Reject("no slots", testNow))
	assert.Equal(t, "no slots", r.RejectReason())
	assert.True(t, r.Status().IsTerminal())
}

func TestBooking_Assign(t *testing.T) {
	b := newStandardBooking(t, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))
	t1, t2 := uuid.New(), uuid.New()

	added, err := b.Assign([]uuid.UUID{t1, t2}, testNow)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{t1, t2}, added)
	require.NotNil(t, b.TechnicianID())
	assert.Equal(t, t1, *b.TechnicianID())

	added, err = b.Assign([]uuid.UUID{t2}, testNow)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, t2, *b.TechnicianID())
	assert.ElementsMatch(t, []uuid.UUID{t1, t2}, b.Technicians())
	assert.True(t, b.IsAssigned(t1))
	assert.False(t, b.IsAssigned(uuid.New()))

	require.NoError(t, b.Reject("full", testNow))
	_, err = b.Assign([]uuid.UUID{uuid.New()}, testNow)
	var rerr *domain.BusinessRuleError
	assert.True(t, errors.As(err, &rerr))
}

func TestBooking_UpdateDetails(t *testing.T) {
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	notes := "please check the compressor"

	b := newStandardBooking(t, at)
	require.NoError(t, b.UpdateDetails(&notes, map[string]any{"gas": "R134a"}, testNow))
	assert.Equal(t, notes, b.Notes())
	assert.Equal(t, "R134a", b.Preferences()["gas"])

	err := b.UpdateDetails(&notes, nil, at.Add(time.Minute))
	var rerr *domain.BusinessRuleError
	assert.True(t, errors.As(err, &rerr), "updates after scheduledAt are refused")

	require.NoError(t, b.Cancel("", testNow))
	assert.Error(t, b.UpdateDetails(&notes, nil, testNow))
}

func TestChangeRequest_Lifecycle(t *testing.T) {
	bookingID, customer, admin := uuid.New(), uuid.New(), uuid.New()

	_, err := NewChangeRequest(bookingID, customer, time.Date(2025, 1, 16, 18, 0, 0, 0, time.UTC), "", testWindow, testNow)
	assert.Error(t, err)

	cr, err := NewChangeRequest(bookingID, customer, time.Date(2025, 1, 16, 9, 30, 0, 0, time.UTC), "meeting", testWindow, testNow)
	require.NoError(t, err)
	assert.Equal(t, ChangeRequestPending, cr.Status())

	require.NoError(t, cr.Approve(admin, testNow))
	assert.Equal(t, ChangeRequestApproved, cr.Status())
	assert.Equal(t, admin, *cr.ResolvedBy())

	var serr *domain.InvalidStateError
	assert.True(t, errors.As(cr.Reject(admin, "no", testNow), &serr))
}

func TestServiceWindow_Timezone(t *testing.T) {
	kl := time.FixedZone("MYT", 8*3600)
	w := DefaultServiceWindow(kl)

	// 02:00 UTC is 10:00 in Kuala Lumpur.
	assert.True(t, w.Contains(time.Date(2025, 1, 15, 2, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)))
}

func TestKindFromMode(t *testing.T) {
	k, err := KindFromMode("consult")
	require.NoError(t, err)
	assert.Equal(t, KindConsultation, k)

	k, err = KindFromMode("")
	require.NoError(t, err)
	assert.Equal(t, KindStandard, k)

	_, err = KindFromMode("walk-in")
	assert.Error(t, err)
}
