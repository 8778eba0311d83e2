package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/chillcar/service-booking/internal/platform/domain"
)

// Job is the execution record of a confirmed booking.
type Job struct {
	id          uuid.UUID
	bookingID   uuid.UUID
	stage       Stage
	startedAt   time.Time
	completedAt *time.Time
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

// NewJob creates a job in the DIAGNOSTIC stage for a confirmed booking.
func NewJob(bookingID uuid.UUID, now time.Time) (*Job, error) {
	if bookingID == uuid.Nil {
		return nil, domain.NewValidationError("booking ID is required")
	}
	now = now.UTC()
	return &Job{
		id:        uuid.New(),
		bookingID: bookingID,
		stage:     StageDiagnostic,
		startedAt: now,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructJob rebuilds a Job from persistence data (no validation).
func ReconstructJob(
	id, bookingID uuid.UUID,
	stage Stage,
	startedAt time.Time,
	completedAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Job {
	return &Job{
		id:          id,
		bookingID:   bookingID,
		stage:       stage,
		startedAt:   startedAt,
		completedAt: completedAt,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the job's unique identifier.
func (j *Job) ID() uuid.UUID { return j.id }

// BookingID returns the confirmed booking this job carries out.
func (j *Job) BookingID() uuid.UUID { return j.bookingID }

// Stage returns the current work stage.
func (j *Job) Stage() Stage { return j.stage }

// StartedAt returns when the job was opened.
func (j *Job) StartedAt() time.Time { return j.startedAt }

// CompletedAt returns when the job reached COMPLETION, or nil.
func (j *Job) CompletedAt() *time.Time { return j.completedAt }

// Version returns the entity version for optimistic locking.
func (j *Job) Version() int64 { return j.version }

// CreatedAt returns the creation timestamp.
func (j *Job) CreatedAt() time.Time { return j.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (j *Job) UpdatedAt() time.Time { return j.updatedAt }

// AdvanceTo moves the job one step forward. COMPLETION is refused here; use Complete.
func (j *Job) AdvanceTo(target Stage, now time.Time) error {
	if target == StageCompletion {
		return domain.NewValidationError("use the complete operation to finish a job")
	}
	if !target.IsValid() {
		return domain.NewValidationError("invalid job stage: " + string(target))
	}
	if !j.stage.CanAdvanceTo(target) {
		return domain.NewInvalidStateError(string(j.stage), string(target))
	}
	j.stage = target
	j.updatedAt = now.UTC()
	return nil
}

// Complete finishes the job from any open stage.
func (j *Job) Complete(now time.Time) error {
	if !j.stage.IsOpen() {
		return domain.NewInvalidStateError(string(j.stage), string(StageCompletion))
	}
	now = now.UTC()
	j.stage = StageCompletion
	j.completedAt = &now
	j.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (j *Job) IncrementVersion() {
	j.version++
}
