package job

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a job listing. Zero values mean "any".
type ListFilter struct {
	CustomerID   *uuid.UUID
	TechnicianID *uuid.UUID
	Stage        *Stage
}

// JobRepository defines the persistence contract for jobs and their notes and parts.
type JobRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*Job, error)
	List(ctx context.Context, filter ListFilter, page, limit int) ([]*Job, int64, error)
	Save(ctx context.Context, job *Job) error
	// Update persists changes with optimistic locking.
	Update(ctx context.Context, job *Job) error

	AddNote(ctx context.Context, note *Note) error
	ListNotes(ctx context.Context, jobID uuid.UUID) ([]*Note, error)
	AddPartUsage(ctx context.Context, usage *PartUsage) error
	ListPartsUsed(ctx context.Context, jobID uuid.UUID) ([]*PartUsage, error)
}
