package user

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// User is an account of any role. Technician availability is not stored here; it is derived from
// the bookings a technician is engaged on.
type User struct {
	id           uuid.UUID
	name         string
	email        string
	phone        string
	passwordHash string
	role         auth.Role
	blocked      bool
	createdAt    time.Time
	updatedAt    time.Time
}

// NewUser validates and creates a user with an already hashed password.
func NewUser(name, email, phone, passwordHash string, role auth.Role, now time.Time) (*User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "is required"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "must be a valid email address"
	}
	if len(fields) > 0 {
		return nil, domain.NewFieldValidationError(fields)
	}
	if !role.IsValid() {
		return nil, domain.NewValidationError("invalid role: " + string(role))
	}
	if passwordHash == "" {
		return nil, domain.NewValidationError("password is required")
	}
	now = now.UTC()
	return &User{
		id:           uuid.New(),
		name:         name,
		email:        email,
		phone:        phone,
		passwordHash: passwordHash,
		role:         role,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructUser rebuilds a User from persistence data.
func ReconstructUser(id uuid.UUID, name, email, phone, passwordHash string, role auth.Role, blocked bool, createdAt, updatedAt time.Time) *User {
	return &User{
		id:           id,
		name:         name,
		email:        email,
		phone:        phone,
		passwordHash: passwordHash,
		role:         role,
		blocked:      blocked,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (u *User) ID() uuid.UUID        { return u.id }
func (u *User) Name() string         { return u.name }
func (u *User) Email() string        { return u.email }
func (u *User) Phone() string        { return u.phone }
func (u *User) PasswordHash() string { return u.passwordHash }
func (u *User) Role() auth.Role      { return u.role }
func (u *User) Blocked() bool        { return u.blocked }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// IsTechnician reports whether the user can be assigned to bookings.
func (u *User) IsTechnician() bool { return u.role == auth.RoleTechnician }

// SetBlocked blocks or unblocks the account. Admins cannot be blocked.
func (u *User) SetBlocked(blocked bool, now time.Time) error {
	if blocked && u.role == auth.RoleAdmin {
		return domain.NewBusinessRuleError("admin accounts cannot be blocked")
	}
	u.blocked = blocked
	u.updatedAt = now.UTC()
	return nil
}

// NormalizeEmail lowercases and trims an email address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Car is a customer's vehicle.
type Car struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Make        string
	Model       string
	Year        int
	PlateNumber string
	CreatedAt   time.Time
}

// NewCar validates and creates a car owned by ownerID.
func NewCar(ownerID uuid.UUID, carMake, model string, year int, plate string, now time.Time) (*Car, error) {
	fields := map[string]string{}
	if strings.TrimSpace(carMake) == "" {
		fields["make"] = "is required"
	}
	if strings.TrimSpace(model) == "" {
		fields["model"] = "is required"
	}
	plate = strings.ToUpper(strings.Join(strings.Fields(plate), ""))
	if plate == "" {
		fields["plateNumber"] = "is required"
	}
	if year != 0 && (year < 1950 || year > now.Year()+1) {
		fields["year"] = "is out of range"
	}
	if len(fields) > 0 {
		return nil, domain.NewFieldValidationError(fields)
	}
	return &Car{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Make:        strings.TrimSpace(carMake),
		Model:       strings.TrimSpace(model),
		Year:        year,
		PlateNumber: plate,
		CreatedAt:   now.UTC(),
	}, nil
}

// Repository defines the persistence contract for users and their cars.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByRole(ctx context.Context, role auth.Role) ([]*User, error)
	Save(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error

	FindCar(ctx context.Context, id uuid.UUID) (*Car, error)
	ListCarsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Car, error)
	SaveCar(ctx context.Context, c *Car) error
}
