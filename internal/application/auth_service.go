package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	userDomain "github.com/chillcar/service-booking/internal/domain/user"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// RegisterRequest holds the data a customer signs up with.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"max=30"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequest holds login credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Session is an issued token together with the user it belongs to.
type Session struct {
	User      UserDTO   `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

var errBadCredentials = domain.NewUnauthorizedError("invalid email or password")

// AuthService handles registration and sessions.
type AuthService struct {
	clock
	users       userDomain.Repository
	jwt         *auth.JWTManager
	revocations auth.RevocationStore
	logger      *zap.Logger
}

// NewAuthService creates a new AuthService. revocations may be nil, in which case logout only
// clears the cookie.
func NewAuthService(users userDomain.Repository, jwt *auth.JWTManager, revocations auth.RevocationStore, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, jwt: jwt, revocations: revocations, logger: logger}
}

// Register creates a customer account and signs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	u, err := newAccount(req.Name, req.Email, req.Phone, req.Password, auth.RoleCustomer, s.current())
	if err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("customer registered", zap.String("user_id", u.ID().String()))
	return s.issue(u)
}

// Login checks credentials and issues a session. Blocked accounts are refused.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	u, err := s.users.FindByEmail(ctx, userDomain.NormalizeEmail(req.Email))
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash(), req.Password) {
		return nil, errBadCredentials
	}
	if u.Blocked() {
		return nil, domain.NewForbiddenError("account is blocked")
	}
	return s.issue(u)
}

// Logout revokes the token behind claims for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.revocations == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

// CurrentUser returns the signed-in user's profile.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewUnauthorizedError("user no longer exists")
		}
		return nil, err
	}
	if u.Blocked() {
		return nil, domain.NewForbiddenError("account is blocked")
	}
	result := toUserDTO(u)
	return &result, nil
}

// EnsureAdmin creates the bootstrap admin account unless the email is already taken.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	_, err := s.users.FindByEmail(ctx, userDomain.NormalizeEmail(email))
	if err == nil {
		return nil
	}
	if !domain.IsNotFound(err) {
		return err
	}
	u, err := newAccount(name, email, "", password, auth.RoleAdmin, s.current())
	if err != nil {
		return err
	}
	if err := s.users.Save(ctx, u); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return nil
		}
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("email", u.Email()))
	return nil
}

func (s *AuthService) issue(u *userDomain.User) (*Session, error) {
	token, claims, err := s.jwt.Generate(u.ID(), u.Role())
	if err != nil {
		return nil, err
	}
	return &Session{User: toUserDTO(u), Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func newAccount(name, email, phone, password string, role auth.Role, now time.Time) (*userDomain.User, error) {
	if len(password) < 8 {
		return nil, domain.NewFieldValidationError(map[string]string{"password": "must be at least 8 characters"})
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return userDomain.NewUser(name, email, phone, hash, role, now)
}
