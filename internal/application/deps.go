package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chillcar/service-booking/internal/domain/billing"
	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	"github.com/chillcar/service-booking/internal/domain/catalog"
	jobDomain "github.com/chillcar/service-booking/internal/domain/job"
	"github.com/chillcar/service-booking/internal/domain/notification"
	userDomain "github.com/chillcar/service-booking/internal/domain/user"
	"github.com/chillcar/service-booking/internal/platform/auth"
)

// Repositories bundles the persistence ports the services depend on.
type Repositories struct {
	Bookings       bookingDomain.BookingRepository
	ChangeRequests bookingDomain.ChangeRequestRepository
	Availability   bookingDomain.AvailabilityChecker
	Jobs           jobDomain.JobRepository
	Catalog        catalog.Repository
	Users          userDomain.Repository
	Quotes         billing.QuoteRepository
	Billings       billing.BillingRepository
	Notifications  notification.Repository
}

// TxRunner runs fn in a transaction carried by the context passed to fn.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Actor is the authenticated caller of a use case.
type Actor struct {
	ID   uuid.UUID
	Role auth.Role
}

func (a Actor) IsAdmin() bool      { return a.Role == auth.RoleAdmin }
func (a Actor) IsTechnician() bool { return a.Role == auth.RoleTechnician }
func (a Actor) IsCustomer() bool   { return a.Role == auth.RoleCustomer }

// canSeeBooking reports whether the actor may read a booking and everything hanging off it.
func (a Actor) canSeeBooking(bk *bookingDomain.Booking) bool {
	switch a.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleTechnician:
		return bk.IsAssigned(a.ID)
	case auth.RoleCustomer:
		return bk.CustomerID() == a.ID
	}
	return false
}

// clock is embedded by services that need the current time.
type clock struct {
	now func() time.Time
}

func (c clock) current() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now().UTC()
}

// pageBounds clamps pagination input to sane values.
func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
