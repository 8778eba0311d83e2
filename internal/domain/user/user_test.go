package user

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

var now = time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)

func TestNewUser(t *testing.T) {
	u, err := NewUser(" Aina ", " Aina@Example.com ", "", "hash", auth.RoleCustomer, now)
	require.NoError(t, err)
	assert.Equal(t, "Aina", u.Name())
	assert.Equal(t, "aina@example.com", u.Email())
	assert.False(t, u.Blocked())

	_, err = NewUser("", "not-an-email", "", "hash", auth.RoleCustomer, now)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "email")

	_, err = NewUser("A", "a@example.com", "", "hash", auth.Role("OWNER"), now)
	assert.Error(t, err)
}

func TestUser_SetBlocked(t *testing.T) {
	tech, err := NewUser("Tech", "tech@example.com", "", "hash", auth.RoleTechnician, now)
	require.NoError(t, err)
	require.NoError(t, tech.SetBlocked(true, now))
	assert.True(t, tech.Blocked())
	assert.True(t, tech.IsTechnician())

	admin, err := NewUser("Admin", "admin@example.com", "", "hash", auth.RoleAdmin, now)
	require.NoError(t, err)
	assert.Error(t, admin.SetBlocked(true, now))
}

func TestNewCar(t *testing.T) {
	c, err := NewCar(uuid.New(), "Proton", "Saga", 2019, "wxy 1234", now)
	require.NoError(t, err)
	assert.Equal(t, "WXY1234", c.PlateNumber)

	_, err = NewCar(uuid.New(), "", "Saga", 1800, "", now)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
}
