package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	jobDomain "github.com/chillcar/service-booking/internal/domain/job"
	"github.com/chillcar/service-booking/internal/platform/database"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// JobModel is the GORM model for the jobs table.
type JobModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingID   uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	Stage       string     `gorm:"not null;size:20;index"`
	StartedAt   time.Time  `gorm:"not null"`
	CompletedAt *time.Time `gorm:""`
	Version     int64      `gorm:"not null;default:1"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

func (JobModel) TableName() string { return "jobs" }

// JobNoteModel is the GORM model for the job_notes table.
type JobNoteModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobID     uuid.UUID `gorm:"type:uuid;index;not null"`
	AuthorID  uuid.UUID `gorm:"type:uuid;not null"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (JobNoteModel) TableName() string { return "job_notes" }

// PartsUsedModel is the GORM model for the parts_used table.
type PartsUsedModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobID          uuid.UUID `gorm:"type:uuid;index;not null"`
	PartID         uuid.UUID `gorm:"type:uuid;index;not null"`
	PartName       string    `gorm:"size:200;not null"`
	Quantity       int       `gorm:"not null"`
	UnitPriceCents int64     `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (PartsUsedModel) TableName() string { return "parts_used" }

// GormJobRepository is the GORM-based implementation of JobRepository.
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository.
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// FindByID retrieves a job by its unique identifier.
func (r *GormJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*jobDomain.Job, error) {
	var model JobModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Job", id.String())
		}
		return nil, fmt.Errorf("failed to find job by ID: %w", err)
	}
	return toDomainJob(&model)
}

// FindByBookingID retrieves the job of a booking.
func (r *GormJobRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*jobDomain.Job, error) {
	var model JobModel
	if err := database.Conn(ctx, r.db).Where("booking_id = ?", bookingID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Job for booking", bookingID.String())
		}
		return nil, fmt.Errorf("failed to find job by booking: %w", err)
	}
	return toDomainJob(&model)
}

// List retrieves jobs matching filter with pagination, newest first.
func (r *GormJobRepository) List(ctx context.Context, filter jobDomain.ListFilter, page, limit int) ([]*jobDomain.Job, int64, error) {
	query := func() *gorm.DB {
		q := database.Conn(ctx, r.db).Model(&JobModel{})
		if filter.CustomerID != nil {
			q = q.Where("booking_id IN (SELECT id FROM bookings WHERE customer_id = ?)", *filter.CustomerID)
		}
		if filter.TechnicianID != nil {
			q = q.Where(
				"booking_id IN (SELECT id FROM bookings WHERE technician_id = ? UNION SELECT booking_id FROM booking_technicians WHERE technician_id = ?)",
				*filter.TechnicianID, *filter.TechnicianID,
			)
		}
		if filter.Stage != nil {
			q = q.Where("stage = ?", string(*filter.Stage))
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	var models []JobModel
	if err := query().
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*jobDomain.Job, len(models))
	for i := range models {
		j, err := toDomainJob(&models[i])
		if err != nil {
			return nil, 0, err
		}
		jobs[i] = j
	}
	return jobs, total, nil
}

// Save persists a new job.
func (r *GormJobRepository) Save(ctx context.Context, j *jobDomain.Job) error {
	if err := database.Conn(ctx, r.db).Create(toJobModel(j)).Error; err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// Update persists changes to an existing job with optimistic locking.
func (r *GormJobRepository) Update(ctx context.Context, j *jobDomain.Job) error {
	m := toJobModel(j)
	result := database.Conn(ctx, r.db).
		Model(&JobModel{}).
		Where("id = ? AND version = ?", m.ID, j.Version()-1).
		Updates(map[string]interface{}{
			"stage":        m.Stage,
			"completed_at": m.CompletedAt,
			"version":      m.Version,
			"updated_at":   m.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("job was modified by another transaction")
	}
	return nil
}

func (r *GormJobRepository) AddNote(ctx context.Context, n *jobDomain.Note) error {
	model := JobNoteModel{ID: n.ID, JobID: n.JobID, AuthorID: n.AuthorID, Body: n.Body, CreatedAt: n.CreatedAt}
	if err := database.Conn(ctx, r.db).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save job note: %w", err)
	}
	return nil
}

func (r *GormJobRepository) ListNotes(ctx context.Context, jobID uuid.UUID) ([]*jobDomain.Note, error) {
	var models []JobNoteModel
	if err := database.Conn(ctx, r.db).Where("job_id = ?", jobID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list job notes: %w", err)
	}
	notes := make([]*jobDomain.Note, len(models))
	for i, m := range models {
		notes[i] = &jobDomain.Note{ID: m.ID, JobID: m.JobID, AuthorID: m.AuthorID, Body: m.Body, CreatedAt: m.CreatedAt}
	}
	return notes, nil
}

func (r *GormJobRepository) AddPartUsage(ctx context.Context, u *jobDomain.PartUsage) error {
	model := PartsUsedModel{
		ID:             u.ID,
		JobID:          u.JobID,
		PartID:         u.PartID,
		PartName:       u.PartName,
		Quantity:       u.Quantity,
		UnitPriceCents: u.UnitPriceCents,
		CreatedAt:      u.CreatedAt,
	}
	if err := database.Conn(ctx, r.db).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save part usage: %w", err)
	}
	return nil
}

func (r *GormJobRepository) ListPartsUsed(ctx context.Context, jobID uuid.UUID) ([]*jobDomain.PartUsage, error) {
	var models []PartsUsedModel
	if err := database.Conn(ctx, r.db).Where("job_id = ?", jobID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list parts used: %w", err)
	}
	out := make([]*jobDomain.PartUsage, len(models))
	for i, m := range models {
		out[i] = &jobDomain.PartUsage{
			ID:             m.ID,
			JobID:          m.JobID,
			PartID:         m.PartID,
			PartName:       m.PartName,
			Quantity:       m.Quantity,
			UnitPriceCents: m.UnitPriceCents,
			CreatedAt:      m.CreatedAt,
		}
	}
	return out, nil
}

func toJobModel(j *jobDomain.Job) *JobModel {
	return &JobModel{
		ID:          j.ID(),
		BookingID:   j.BookingID(),
		Stage:       string(j.Stage()),
		StartedAt:   j.StartedAt(),
		CompletedAt: j.CompletedAt(),
		Version:     j.Version(),
		CreatedAt:   j.CreatedAt(),
		UpdatedAt:   j.UpdatedAt(),
	}
}

func toDomainJob(m *JobModel) (*jobDomain.Job, error) {
	stage, err := jobDomain.ParseStage(m.Stage)
	if err != nil {
		return nil, err
	}
	return jobDomain.ReconstructJob(m.ID, m.BookingID, stage, m.StartedAt, m.CompletedAt, m.Version, m.CreatedAt, m.UpdatedAt), nil
}
