package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	userDomain "github.com/chillcar/service-booking/internal/domain/user"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// CreateStaffRequest holds the data an admin uses to open a technician or admin account.
type CreateStaffRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"max=30"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Role     string `json:"role" binding:"required,oneof=ADMIN TECHNICIAN"`
}

// SetBlockedRequest blocks or unblocks an account.
type SetBlockedRequest struct {
	Blocked *bool `json:"blocked" binding:"required"`
}

// CreateCarRequest registers a customer's car.
type CreateCarRequest struct {
	Make        string `json:"make" binding:"required,max=50"`
	Model       string `json:"model" binding:"required,max=50"`
	Year        int    `json:"year"`
	PlateNumber string `json:"plateNumber" binding:"required,max=20"`
}

// UserService covers account administration and customers' cars.
type UserService struct {
	clock
	repos  Repositories
	logger *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(repos Repositories, logger *zap.Logger) *UserService {
	return &UserService{repos: repos, logger: logger}
}

// WithClock replaces the time source.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

// ListTechnicians lists technicians with their availability. A technician shows as unavailable
// while a job of theirs is open or while they hold a pending assignment.
func (s *UserService) ListTechnicians(ctx context.Context) ([]TechnicianDTO, error) {
	techs, err := s.repos.Users.ListByRole(ctx, auth.RoleTechnician)
	if err != nil {
		return nil, err
	}
	out := make([]TechnicianDTO, 0, len(techs))
	for _, t := range techs {
		eng, err := s.repos.Availability.ActiveEngagement(ctx, t.ID(), uuid.Nil)
		if err != nil {
			return nil, err
		}
		if eng == nil {
			if eng, err = s.repos.Availability.PendingAssignment(ctx, t.ID()); err != nil {
				return nil, err
			}
		}
		dto := TechnicianDTO{UserDTO: toUserDTO(t), Available: eng == nil && !t.Blocked()}
		if eng != nil {
			id := eng.BookingID
			dto.EngagedOn = &id
			dto.EngagedNumber = eng.BookingNumber
		}
		out = append(out, dto)
	}
	return out, nil
}

// ListUsers lists accounts with the given role.
func (s *UserService) ListUsers(ctx context.Context, role string) ([]UserDTO, error) {
	r := auth.Role(role)
	if !r.IsValid() {
		return nil, domain.NewValidationError("invalid role: " + role)
	}
	users, err := s.repos.Users.ListByRole(ctx, r)
	if err != nil {
		return nil, err
	}
	out := make([]UserDTO, len(users))
	for i, u := range users {
		out[i] = toUserDTO(u)
	}
	return out, nil
}

// CreateStaff opens a technician or admin account.
func (s *UserService) CreateStaff(ctx context.Context, req CreateStaffRequest) (*UserDTO, error) {
	u, err := newAccount(req.Name, req.Email, req.Phone, req.Password, auth.Role(req.Role), s.current())
	if err != nil {
		return nil, err
	}
	if err := s.repos.Users.Save(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("staff account created",
		zap.String("user_id", u.ID().String()),
		zap.String("role", string(u.Role())),
	)
	result := toUserDTO(u)
	return &result, nil
}

// SetBlocked blocks or unblocks an account. Admins cannot block themselves or other admins.
func (s *UserService) SetBlocked(ctx context.Context, actor Actor, userID uuid.UUID, req SetBlockedRequest) (*UserDTO, error) {
	if userID == actor.ID {
		return nil, domain.NewBusinessRuleError("you cannot change your own blocked status")
	}
	u, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := u.SetBlocked(*req.Blocked, s.current()); err != nil {
		return nil, err
	}
	if err := s.repos.Users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user blocked status changed",
		zap.String("user_id", u.ID().String()),
		zap.Bool("blocked", u.Blocked()),
	)
	result := toUserDTO(u)
	return &result, nil
}

// CreateCar registers a car for the customer.
func (s *UserService) CreateCar(ctx context.Context, ownerID uuid.UUID, req CreateCarRequest) (*CarDTO, error) {
	car, err := userDomain.NewCar(ownerID, req.Make, req.Model, req.Year, req.PlateNumber, s.current())
	if err != nil {
		return nil, err
	}
	if err := s.repos.Users.SaveCar(ctx, car); err != nil {
		return nil, err
	}
	result := toCarDTO(car)
	return &result, nil
}

// ListCars lists the customer's cars.
func (s *UserService) ListCars(ctx context.Context, ownerID uuid.UUID) ([]CarDTO, error) {
	cars, err := s.repos.Users.ListCarsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]CarDTO, len(cars))
	for i, c := range cars {
		out[i] = toCarDTO(c)
	}
	return out, nil
}
