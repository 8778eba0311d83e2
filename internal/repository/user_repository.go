package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	userDomain "github.com/chillcar/service-booking/internal/domain/user"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/database"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"size:200;not null"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"`
	Phone        string    `gorm:"size:30"`
	PasswordHash string    `gorm:"size:255;not null"`
	Role         string    `gorm:"size:20;not null;index"`
	Blocked      bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

// CarModel is the GORM model for the cars table.
type CarModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID     uuid.UUID `gorm:"type:uuid;index;not null"`
	Make        string    `gorm:"size:100;not null"`
	Model       string    `gorm:"size:100;not null"`
	Year        int       `gorm:""`
	PlateNumber string    `gorm:"size:20;not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (CarModel) TableName() string { return "cars" }

// GormUserRepository is the GORM-based implementation of user.Repository.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	var m UserModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User", id.String())
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return toDomainUser(&m), nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*userDomain.User, error) {
	email = userDomain.NormalizeEmail(email)
	var m UserModel
	if err := database.Conn(ctx, r.db).Where("email = ?", email).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User", email)
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return toDomainUser(&m), nil
}

func (r *GormUserRepository) ListByRole(ctx context.Context, role auth.Role) ([]*userDomain.User, error) {
	var models []UserModel
	if err := database.Conn(ctx, r.db).Where("role = ?", string(role)).Order("name ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	out := make([]*userDomain.User, len(models))
	for i := range models {
		out[i] = toDomainUser(&models[i])
	}
	return out, nil
}

// Save persists a new user. A duplicate email is reported as a conflict.
func (r *GormUserRepository) Save(ctx context.Context, u *userDomain.User) error {
	db := database.Conn(ctx, r.db)
	var count int64
	if err := db.Model(&UserModel{}).Where("email = ?", u.Email()).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return domain.NewConflictError("email is already registered")
	}
	if err := db.Create(toUserModel(u)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("email is already registered")
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (r *GormUserRepository) Update(ctx context.Context, u *userDomain.User) error {
	m := toUserModel(u)
	result := database.Conn(ctx, r.db).Model(&UserModel{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
		"name":       m.Name,
		"phone":      m.Phone,
		"blocked":    m.Blocked,
		"updated_at": m.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("User", m.ID.String())
	}
	return nil
}

func (r *GormUserRepository) FindCar(ctx context.Context, id uuid.UUID) (*userDomain.Car, error) {
	var m CarModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Car", id.String())
		}
		return nil, fmt.Errorf("failed to find car: %w", err)
	}
	return toDomainCar(&m), nil
}

func (r *GormUserRepository) ListCarsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*userDomain.Car, error) {
	var models []CarModel
	if err := database.Conn(ctx, r.db).Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	out := make([]*userDomain.Car, len(models))
	for i := range models {
		out[i] = toDomainCar(&models[i])
	}
	return out, nil
}

func (r *GormUserRepository) SaveCar(ctx context.Context, c *userDomain.Car) error {
	m := CarModel{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		Make:        c.Make,
		Model:       c.Model,
		Year:        c.Year,
		PlateNumber: c.PlateNumber,
		CreatedAt:   c.CreatedAt,
	}
	if err := database.Conn(ctx, r.db).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to save car: %w", err)
	}
	return nil
}

func toUserModel(u *userDomain.User) *UserModel {
	return &UserModel{
		ID:           u.ID(),
		Name:         u.Name(),
		Email:        u.Email(),
		Phone:        u.Phone(),
		PasswordHash: u.PasswordHash(),
		Role:         string(u.Role()),
		Blocked:      u.Blocked(),
		CreatedAt:    u.CreatedAt(),
		UpdatedAt:    u.UpdatedAt(),
	}
}

func toDomainUser(m *UserModel) *userDomain.User {
	return userDomain.ReconstructUser(m.ID, m.Name, m.Email, m.Phone, m.PasswordHash, auth.Role(m.Role), m.Blocked, m.CreatedAt, m.UpdatedAt)
}

func toDomainCar(m *CarModel) *userDomain.Car {
	return &userDomain.Car{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Make:        m.Make,
		Model:       m.Model,
		Year:        m.Year,
		PlateNumber: m.PlateNumber,
		CreatedAt:   m.CreatedAt,
	}
}
