package booking

import (
	"fmt"
	"time"

	"github.com/chillcar/service-booking/internal/platform/domain"
)

// ServiceWindow is the daily opening window within which bookings may be scheduled.
type ServiceWindow struct {
	Open     time.Duration // offset from local midnight
	Close    time.Duration // inclusive
	Location *time.Location
}

// DefaultServiceWindow is 08:00 to 17:00 in loc.
func DefaultServiceWindow(loc *time.Location) ServiceWindow {
	if loc == nil {
		loc = time.UTC
	}
	return ServiceWindow{Open: 8 * time.Hour, Close: 17 * time.Hour, Location: loc}
}

// Contains reports whether at falls inside the window on its own local day.
func (w ServiceWindow) Contains(at time.Time) bool {
	local := at.In(w.location())
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	offset := local.Sub(midnight)
	return offset >= w.Open && offset <= w.Close
}

// Validate checks that at is in the future relative to now and inside the window.
func (w ServiceWindow) Validate(field string, at, now time.Time) error {
	if at.IsZero() {
		return domain.NewFieldValidationError(map[string]string{field: "is required"})
	}
	if !at.After(now) {
		return domain.NewFieldValidationError(map[string]string{field: "must be in the future"})
	}
	if !w.Contains(at) {
		return domain.NewFieldValidationError(map[string]string{
			field: fmt.Sprintf("must be between %s and %s", clock(w.Open), clock(w.Close)),
		})
	}
	return nil
}

func (w ServiceWindow) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
