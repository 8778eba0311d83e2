package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	"github.com/chillcar/service-booking/internal/domain/catalog"
	jobDomain "github.com/chillcar/service-booking/internal/domain/job"
	"github.com/chillcar/service-booking/internal/domain/notification"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// UpdateStageRequest moves a job to its next stage.
type UpdateStageRequest struct {
	Stage string `json:"stage" binding:"required"`
}

// AddNoteRequest appends a note to a job.
type AddNoteRequest struct {
	Note string `json:"note" binding:"required,max=2000"`
}

// PartInput is one part consumed when completing a job.
type PartInput struct {
	PartID   uuid.UUID `json:"partId" binding:"required"`
	Quantity int       `json:"quantity" binding:"required,gt=0"`
}

// CompleteJobRequest lists the parts consumed by a job.
type CompleteJobRequest struct {
	Parts []PartInput `json:"parts" binding:"dive"`
}

// JobService orchestrates the technician-facing job workflow.
type JobService struct {
	clock
	repos  Repositories
	tx     TxRunner
	notify fanout
	logger *zap.Logger
}

// NewJobService creates a new JobService.
func NewJobService(repos Repositories, tx TxRunner, notifier Notifier, logger *zap.Logger) *JobService {
	return &JobService{
		repos:  repos,
		tx:     tx,
		notify: newFanout(repos, notifier, logger),
		logger: logger,
	}
}

// WithClock replaces the time source.
func (s *JobService) WithClock(now func() time.Time) *JobService {
	s.now = now
	return s
}

// ListJobs lists jobs scoped to the actor.
func (s *JobService) ListJobs(ctx context.Context, actor Actor, stage string, page, limit int) ([]JobDTO, int64, error) {
	page, limit = pageBounds(page, limit)
	filter := jobDomain.ListFilter{}
	switch {
	case actor.IsCustomer():
		filter.CustomerID = &actor.ID
	case actor.IsTechnician():
		filter.TechnicianID = &actor.ID
	}
	if stage != "" {
		st, err := jobDomain.ParseStage(stage)
		if err != nil {
			return nil, 0, domain.NewValidationError(err.Error())
		}
		filter.Stage = &st
	}

	jobs, total, err := s.repos.Jobs.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]JobDTO, len(jobs))
	for i, j := range jobs {
		out[i] = toJobDTO(j)
	}
	return out, total, nil
}

// GetJob returns a job with its notes and consumed parts.
func (s *JobService) GetJob(ctx context.Context, actor Actor, jobID uuid.UUID) (*JobDetailDTO, error) {
	j, bk, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.canSeeBooking(bk) {
		return nil, domain.NewForbiddenError("you do not have access to this job")
	}

	notes, err := s.repos.Jobs.ListNotes(ctx, j.ID())
	if err != nil {
		return nil, err
	}
	parts, err := s.repos.Jobs.ListPartsUsed(ctx, j.ID())
	if err != nil {
		return nil, err
	}

	detail := &JobDetailDTO{
		JobDTO:    toJobDTO(j),
		Notes:     make([]JobNoteDTO, len(notes)),
		PartsUsed: make([]PartUsageDTO, len(parts)),
	}
	for i, n := range notes {
		detail.Notes[i] = toJobNoteDTO(n)
	}
	for i, p := range parts {
		detail.PartsUsed[i] = toPartUsageDTO(p)
	}
	return detail, nil
}

// UpdateStage advances a job by one stage. COMPLETION is only reachable through CompleteJob.
func (s *JobService) UpdateStage(ctx context.Context, actor Actor, jobID uuid.UUID, req UpdateStageRequest) (*JobDTO, error) {
	j, bk, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := requireWorker(actor, bk); err != nil {
		return nil, err
	}
	if err := requireActiveBooking(bk); err != nil {
		return nil, err
	}

	if err := j.AdvanceTo(jobDomain.Stage(req.Stage), s.current()); err != nil {
		return nil, err
	}
	j.IncrementVersion()
	if err := s.repos.Jobs.Update(ctx, j); err != nil {
		return nil, err
	}

	meta := jobMeta(bk, j)
	s.notify.send(ctx, to(append([]uuid.UUID{bk.CustomerID()}, bk.Technicians()...), actor.ID,
		notification.TypeJobStageUpdated,
		"Job progress",
		fmt.Sprintf("Booking %s moved to %s.", bk.BookingNumber(), j.Stage()),
		meta))

	result := toJobDTO(j)
	return &result, nil
}

// AddNote appends a note. Assigned technicians, admins and the booking's customer may write notes.
func (s *JobService) AddNote(ctx context.Context, actor Actor, jobID uuid.UUID, req AddNoteRequest) (*JobNoteDTO, error) {
	j, bk, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.canSeeBooking(bk) {
		return nil, domain.NewForbiddenError("you cannot add notes to this job")
	}

	note, err := jobDomain.NewNote(j.ID(), actor.ID, req.Note, s.current())
	if err != nil {
		return nil, err
	}
	if err := s.repos.Jobs.AddNote(ctx, note); err != nil {
		return nil, err
	}

	s.notify.send(ctx, to(bk.Technicians(), actor.ID, notification.TypeJobNoteAdded,
		"New job note",
		fmt.Sprintf("A note was added to booking %s.", bk.BookingNumber()),
		jobMeta(bk, j)))

	result := toJobNoteDTO(note)
	return &result, nil
}

// CompleteJob consumes the requested parts and moves the job to COMPLETION in one transaction.
// A missing part or short stock rolls everything back.
func (s *JobService) CompleteJob(ctx context.Context, actor Actor, jobID uuid.UUID, req CompleteJobRequest) (*JobDetailDTO, error) {
	requests := make([]jobDomain.PartRequest, len(req.Parts))
	for i, p := range req.Parts {
		requests[i] = jobDomain.PartRequest{PartID: p.PartID, Quantity: p.Quantity}
	}
	merged, err := jobDomain.MergePartRequests(requests)
	if err != nil {
		return nil, err
	}

	now := s.current()
	var (
		j     *jobDomain.Job
		bk    *bookingDomain.Booking
		usage []*jobDomain.PartUsage
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		j, bk, err = s.load(ctx, jobID)
		if err != nil {
			return err
		}
		if err := requireWorker(actor, bk); err != nil {
			return err
		}
		if err := requireActiveBooking(bk); err != nil {
			return err
		}
		if err := j.Complete(now); err != nil {
			return err
		}

		for _, pr := range merged {
			u, err := s.consumePart(ctx, actor, j, pr, now)
			if err != nil {
				return err
			}
			usage = append(usage, u)
		}

		j.IncrementVersion()
		return s.repos.Jobs.Update(ctx, j)
	})
	if err != nil {
		return nil, err
	}

	meta := jobMeta(bk, j)
	msgs := to(bk.Technicians(), actor.ID, notification.TypeJobCompleted,
		"Job completed",
		fmt.Sprintf("Work on booking %s is complete.", bk.BookingNumber()),
		meta)
	msgs = append(msgs, to([]uuid.UUID{bk.CustomerID()}, actor.ID, notification.TypeJobCompleted,
		"Your car is ready",
		fmt.Sprintf("Work on booking %s is complete. A quote will follow.", bk.BookingNumber()),
		meta)...)
	msgs = append(msgs, s.notify.toAdmins(ctx, actor.ID, notification.TypeJobCompleted,
		"Job completed",
		fmt.Sprintf("Booking %s is ready for quoting.", bk.BookingNumber()),
		meta)...)
	s.notify.send(ctx, msgs)

	s.logger.Info("job completed",
		zap.String("job_id", j.ID().String()),
		zap.String("booking_id", bk.ID().String()),
		zap.Int("parts", len(usage)),
	)

	detail := &JobDetailDTO{JobDTO: toJobDTO(j), Notes: []JobNoteDTO{}, PartsUsed: make([]PartUsageDTO, len(usage))}
	for i, u := range usage {
		detail.PartsUsed[i] = toPartUsageDTO(u)
	}
	return detail, nil
}

// consumePart takes stock for one part request and records the movement and the usage.
func (s *JobService) consumePart(ctx context.Context, actor Actor, j *jobDomain.Job, pr jobDomain.PartRequest, now time.Time) (*jobDomain.PartUsage, error) {
	part, err := s.repos.Catalog.FindPart(ctx, pr.PartID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewValidationError(fmt.Sprintf("Part not found: %s", pr.PartID))
		}
		return nil, err
	}

	ok, err := s.repos.Catalog.DecrementStock(ctx, part.ID, pr.Quantity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NewBusinessRuleError("Not enough stock for part %s (requested %d, available %d)",
			part.Name, pr.Quantity, part.Stock)
	}

	jobID, actorID := j.ID(), actor.ID
	entry, err := catalog.NewInventoryLog(part.ID, catalog.InventoryOut, pr.Quantity, &jobID, "used on job", &actorID, now)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Catalog.AddInventoryLog(ctx, entry); err != nil {
		return nil, err
	}

	usage := &jobDomain.PartUsage{
		ID:             uuid.New(),
		JobID:          j.ID(),
		PartID:         part.ID,
		PartName:       part.Name,
		Quantity:       pr.Quantity,
		UnitPriceCents: part.UnitPriceCents,
		CreatedAt:      now,
	}
	if err := s.repos.Jobs.AddPartUsage(ctx, usage); err != nil {
		return nil, err
	}
	return usage, nil
}

func (s *JobService) load(ctx context.Context, jobID uuid.UUID) (*jobDomain.Job, *bookingDomain.Booking, error) {
	j, err := s.repos.Jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	bk, err := s.repos.Bookings.FindByID(ctx, j.BookingID())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load booking of job %s: %w", jobID, err)
	}
	return j, bk, nil
}

// requireWorker allows admins and technicians assigned to the booking.
func requireWorker(actor Actor, bk *bookingDomain.Booking) error {
	if actor.IsAdmin() || (actor.IsTechnician() && bk.IsAssigned(actor.ID)) {
		return nil
	}
	return domain.NewForbiddenError("only an assigned technician or an admin can work on this job")
}

func requireActiveBooking(bk *bookingDomain.Booking) error {
	if bk.Status() != bookingDomain.StatusConfirmed {
		return domain.NewBusinessRuleError("booking %s is %s", bk.BookingNumber(), bk.Status())
	}
	return nil
}

func jobMeta(bk *bookingDomain.Booking, j *jobDomain.Job) map[string]any {
	meta := bookingMeta(bk)
	meta["jobId"] = j.ID().String()
	meta["stage"] = string(j.Stage())
	return meta
}
