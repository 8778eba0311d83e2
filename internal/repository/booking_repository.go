package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	"github.com/chillcar/service-booking/internal/platform/database"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber string          `gorm:"uniqueIndex;not null;size:20"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	CarID         uuid.UUID       `gorm:"type:uuid;index;not null"`
	ServiceID     *uuid.UUID      `gorm:"type:uuid;index"`
	PackID        *uuid.UUID      `gorm:"type:uuid;index"`
	TechnicianID  *uuid.UUID      `gorm:"type:uuid;index"`
	Status        string          `gorm:"not null;size:20;index"`
	Kind          string          `gorm:"not null;size:20;default:'STANDARD'"`
	Preferences   json.RawMessage `gorm:"type:jsonb"`
	ScheduledAt   time.Time       `gorm:"not null;index"`
	Notes         string          `gorm:"size:1000"`
	RejectReason  string          `gorm:"size:500"`
	CancelReason  string          `gorm:"size:500"`
	ConfirmedAt   *time.Time      `gorm:""`
	CancelledAt   *time.Time      `gorm:""`
	Version       int64           `gorm:"not null;default:1"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// BookingTechnicianModel records that a technician is assigned to a booking.
type BookingTechnicianModel struct {
	BookingID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	TechnicianID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	AssignedAt   time.Time `gorm:"not null"`
}

func (BookingTechnicianModel) TableName() string {
	return "booking_technicians"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	bookings, err := r.withTechnicians(ctx, []BookingModel{model})
	if err != nil {
		return nil, err
	}
	return bookings[0], nil
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := database.Conn(ctx, r.db).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by number: %w", err)
	}
	bookings, err := r.withTechnicians(ctx, []BookingModel{model})
	if err != nil {
		return nil, err
	}
	return bookings[0], nil
}

// List retrieves bookings matching filter with pagination.
func (r *GormBookingRepository) List(ctx context.Context, filter bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	query := func() *gorm.DB {
		q := database.Conn(ctx, r.db).Model(&BookingModel{})
		if filter.CustomerID != nil {
			q = q.Where("customer_id = ?", *filter.CustomerID)
		}
		if filter.TechnicianID != nil {
			q = q.Where(
				"(technician_id = ? OR id IN (SELECT booking_id FROM booking_technicians WHERE technician_id = ?))",
				*filter.TechnicianID, *filter.TechnicianID,
			)
		}
		if filter.Status != nil {
			q = q.Where("status = ?", string(*filter.Status))
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := query().
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := r.withTechnicians(ctx, models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	if err := database.Conn(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return r.syncTechnicians(ctx, bk)
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// Optimistic locking: only update if the version matches (current version - 1 since IncrementVersion was called)
	expectedVersion := bk.Version() - 1
	result := database.Conn(ctx, r.db).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"technician_id": model.TechnicianID,
			"status":        model.Status,
			"preferences":   model.Preferences,
			"scheduled_at":  model.ScheduledAt,
			"notes":         model.Notes,
			"reject_reason": model.RejectReason,
			"cancel_reason": model.CancelReason,
			"confirmed_at":  model.ConfirmedAt,
			"cancelled_at":  model.CancelledAt,
			"version":       model.Version,
			"updated_at":    model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	return r.syncTechnicians(ctx, bk)
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := database.Conn(ctx, r.db).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// syncTechnicians inserts join rows for every assigned technician. Existing rows are left alone.
func (r *GormBookingRepository) syncTechnicians(ctx context.Context, bk *bookingDomain.Booking) error {
	techs := bk.Technicians()
	if len(techs) == 0 {
		return nil
	}
	rows := make([]BookingTechnicianModel, len(techs))
	for i, id := range techs {
		rows[i] = BookingTechnicianModel{BookingID: bk.ID(), TechnicianID: id, AssignedAt: bk.UpdatedAt()}
	}
	if err := database.Conn(ctx, r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to save booking technicians: %w", err)
	}
	return nil
}

func (r *GormBookingRepository) withTechnicians(ctx context.Context, models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	if len(models) == 0 {
		return bookings, nil
	}

	ids := make([]uuid.UUID, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	var rows []BookingTechnicianModel
	if err := database.Conn(ctx, r.db).
		Where("booking_id IN ?", ids).
		Order("assigned_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load booking technicians: %w", err)
	}
	byBooking := make(map[uuid.UUID][]uuid.UUID, len(models))
	for _, row := range rows {
		byBooking[row.BookingID] = append(byBooking[row.BookingID], row.TechnicianID)
	}

	for i := range models {
		bk, err := toDomainBooking(&models[i], byBooking[models[i].ID])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	var prefsJSON json.RawMessage
	if len(bk.Preferences()) > 0 {
		data, err := json.Marshal(bk.Preferences())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal preferences: %w", err)
		}
		prefsJSON = data
	}

	return &BookingModel{
		ID:            bk.ID(),
		BookingNumber: bk.BookingNumber(),
		CustomerID:    bk.CustomerID(),
		CarID:         bk.CarID(),
		ServiceID:     bk.ServiceID(),
		PackID:        bk.PackID(),
		TechnicianID:  bk.TechnicianID(),
		Status:        string(bk.Status()),
		Kind:          string(bk.Kind()),
		Preferences:   prefsJSON,
		ScheduledAt:   bk.ScheduledAt(),
		Notes:         bk.Notes(),
		RejectReason:  bk.RejectReason(),
		CancelReason:  bk.CancelReason(),
		ConfirmedAt:   bk.ConfirmedAt(),
		CancelledAt:   bk.CancelledAt(),
		Version:       bk.Version(),
		CreatedAt:     bk.CreatedAt(),
		UpdatedAt:     bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel, technicians []uuid.UUID) (*bookingDomain.Booking, error) {
	var prefs map[string]any
	if len(m.Preferences) > 0 {
		if err := json.Unmarshal(m.Preferences, &prefs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
	}

	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}
	kind, err := bookingDomain.ParseKind(m.Kind)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.BookingNumber,
		m.CustomerID,
		m.CarID,
		m.ServiceID,
		m.PackID,
		m.TechnicianID,
		technicians,
		status,
		kind,
		prefs,
		m.ScheduledAt,
		m.Notes,
		m.RejectReason,
		m.CancelReason,
		m.ConfirmedAt,
		m.CancelledAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
