package application_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chillcar/service-booking/internal/application"
	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	"github.com/chillcar/service-booking/internal/domain/catalog"
	userDomain "github.com/chillcar/service-booking/internal/domain/user"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/database"
	"github.com/chillcar/service-booking/internal/platform/database/dbtest"
	"github.com/chillcar/service-booking/internal/repository"
)

// Tuesday morning; bookings in these tests are made for the following days.
var testNow = time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)

type harness struct {
	now   time.Time
	repos application.Repositories

	bookings      *application.BookingService
	jobs          *application.JobService
	billing       *application.BillingService
	users         *application.UserService
	catalog       *application.CatalogService
	notifications *application.NotificationService
	renderer      *fakeRenderer
}

type fakeRenderer struct {
	last application.InvoiceDocument
}

func (r *fakeRenderer) Render(doc application.InvoiceDocument) ([]byte, error) {
	r.last = doc
	return []byte("xlsx"), nil
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.NewSQLite(t, repository.Models()...)
	h := &harness{
		now: testNow,
		repos: application.Repositories{
			Bookings:       repository.NewGormBookingRepository(db),
			ChangeRequests: repository.NewGormChangeRequestRepository(db),
			Availability:   repository.NewGormAvailabilityChecker(db),
			Jobs:           repository.NewGormJobRepository(db),
			Catalog:        repository.NewGormCatalogRepository(db),
			Users:          repository.NewGormUserRepository(db),
			Quotes:         repository.NewGormQuoteRepository(db),
			Billings:       repository.NewGormBillingRepository(db),
			Notifications:  repository.NewGormNotificationRepository(db),
		},
		renderer: &fakeRenderer{},
	}
	clock := func() time.Time { return h.now }
	tx := database.NewTransactor(db)
	logger := zap.NewNop()

	h.notifications = application.NewNotificationService(h.repos.Notifications, logger).WithClock(clock)
	notifier := application.NewDirectNotifier(h.notifications)
	window := bookingDomain.DefaultServiceWindow(time.UTC)

	h.bookings = application.NewBookingService(h.repos, tx, notifier, window, logger).WithClock(clock)
	h.jobs = application.NewJobService(h.repos, tx, notifier, logger).WithClock(clock)
	h.billing = application.NewBillingService(h.repos, tx, notifier, h.renderer, logger).WithClock(clock)
	h.users = application.NewUserService(h.repos, logger).WithClock(clock)
	h.catalog = application.NewCatalogService(h.repos.Catalog, tx, logger).WithClock(clock)
	return h
}

func (h *harness) user(t *testing.T, role auth.Role) application.Actor {
	t.Helper()
	u, err := userDomain.NewUser(
		fmt.Sprintf("%s user", role),
		fmt.Sprintf("%s@example.com", uuid.NewString()),
		"", "hashed", role, h.now,
	)
	require.NoError(t, err)
	require.NoError(t, h.repos.Users.Save(context.Background(), u))
	return application.Actor{ID: u.ID(), Role: role}
}

func (h *harness) car(t *testing.T, owner application.Actor) uuid.UUID {
	t.Helper()
	c, err := userDomain.NewCar(owner.ID, "Proton", "Saga", 2020, "WXY 1234", h.now)
	require.NoError(t, err)
	require.NoError(t, h.repos.Users.SaveCar(context.Background(), c))
	return c.ID
}

func (h *harness) service(t *testing.T, allowChoice bool) *catalog.Service {
	t.Helper()
	svc := &catalog.Service{
		ID:                    uuid.New(),
		Name:                  "Aircond gas refill",
		PriceCents:            8000,
		DurationMinutes:       45,
		AllowTechnicianChoice: allowChoice,
		Active:                true,
		CreatedAt:             h.now,
	}
	require.NoError(t, h.repos.Catalog.SaveService(context.Background(), svc))
	return svc
}

func (h *harness) part(t *testing.T, name string, stock int) *catalog.Part {
	t.Helper()
	p := &catalog.Part{
		ID:             uuid.New(),
		Name:           name,
		SKU:            uuid.NewString()[:8],
		Stock:          stock,
		UnitPriceCents: 2500,
		CreatedAt:      h.now,
		UpdatedAt:      h.now,
	}
	require.NoError(t, h.repos.Catalog.SavePart(context.Background(), p))
	return p
}

// book creates a standard booking for 2025-01-15 10:00 and returns it.
func (h *harness) book(t *testing.T, customer application.Actor, svc *catalog.Service) application.BookingDTO {
	t.Helper()
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	created, err := h.bookings.CreateBookings(context.Background(), customer.ID, application.CreateBookingRequest{
		CarID:       h.car(t, customer),
		ServiceIDs:  []uuid.UUID{svc.ID},
		ScheduledAt: &at,
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	return created[0]
}

// assignAndConfirm assigns tech to the booking, confirms it and returns the job id.
func (h *harness) assignAndConfirm(t *testing.T, admin application.Actor, bookingID, tech uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	_, err := h.bookings.AssignTechnicians(ctx, admin, bookingID, application.AssignRequest{TechnicianID: &tech})
	require.NoError(t, err)
	_, err = h.bookings.ConfirmBooking(ctx, admin, bookingID)
	require.NoError(t, err)
	j, err := h.repos.Jobs.FindByBookingID(ctx, bookingID)
	require.NoError(t, err)
	return j.ID()
}

func (h *harness) unreadTypes(t *testing.T, userID uuid.UUID) []string {
	t.Helper()
	items, _, err := h.notifications.List(context.Background(), userID, true, 1, 100)
	require.NoError(t, err)
	types := make([]string, len(items))
	for i, n := range items {
		types[i] = n.Type
	}
	return types
}
