package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/domain/catalog"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

func TestCompleteJob_ConsumesStockAndFreesTechnician(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, auth.RoleAdmin)
	customer := h.user(t, auth.RoleCustomer)
	tech := h.user(t, auth.RoleTechnician)
	part := h.part(t, "Cabin filter", 5)

	bk := h.book(t, customer, h.service(t, false))
	assert.Equal(t, "PENDING", bk.Status)

	_, err := h.bookings.AssignTechnicians(ctx, admin, bk.ID, application.AssignRequest{TechnicianID: &tech.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"BOOKING_ASSIGNED"}, h.unreadTypes(t, tech.ID))

	techs, err := h.users.ListTechnicians(ctx)
	require.NoError(t, err)
	require.Len(t, techs, 1)
	assert.False(t, techs[0].Available)
	assert.Equal(t, bk.BookingNumber, techs[0].EngagedNumber)

	confirmed, err := h.bookings.ConfirmBooking(ctx, admin, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", confirmed.Status)

	j, err := h.repos.Jobs.FindByBookingID(ctx, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, "DIAGNOSTIC", string(j.Stage()))

	detail, err := h.jobs.CompleteJob(ctx, tech, j.ID(), application.CompleteJobRequest{
		Parts: []application.PartInput{{PartID: part.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETION", detail.Stage)
	require.NotNil(t, detail.CompletedAt)
	require.Len(t, detail.PartsUsed, 1)
	assert.Equal(t, int64(5000), detail.PartsUsed[0].TotalCents)

	stocked, err := h.repos.Catalog.FindPart(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stocked.Stock)

	logs, err := h.repos.Catalog.ListInventoryLogs(ctx, part.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, catalog.InventoryOut, logs[0].Type)
	assert.Equal(t, 2, logs[0].Quantity)
	require.NotNil(t, logs[0].Reference)
	assert.Equal(t, j.ID(), *logs[0].Reference)

	techs, err = h.users.ListTechnicians(ctx)
	require.NoError(t, err)
	assert.True(t, techs[0].Available, "a completed job frees the technician")

	assert.Contains(t, h.unreadTypes(t, customer.ID), "JOB_COMPLETED")
	assert.Contains(t, h.unreadTypes(t, admin.ID), "JOB_COMPLETED")

	var serr *domain.InvalidStateError
	_, err = h.jobs.CompleteJob(ctx, tech, j.ID(), application.CompleteJobRequest{})
	assert.ErrorAs(t, err, &serr, "a job completes once")
}

func TestCompleteJob_NotEnoughStockRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, auth.RoleAdmin)
	customer := h.user(t, auth.RoleCustomer)
	tech := h.user(t, auth.RoleTechnician)
	plenty := h.part(t, "Refrigerant R134a", 5)
	scarce := h.part(t, "Compressor valve", 1)

	bk := h.book(t, customer, h.service(t, false))
	jobID := h.assignAndConfirm(t, admin, bk.ID, tech.ID)

	_, err := h.jobs.CompleteJob(ctx, tech, jobID, application.CompleteJobRequest{
		Parts: []application.PartInput{
			{PartID: plenty.ID, Quantity: 2},
			{PartID: scarce.ID, Quantity: 2},
		},
	})
	var rule *domain.BusinessRuleError
	require.ErrorAs(t, err, &rule)
	assert.Contains(t, rule.Message, "Not enough stock")

	for _, p := range []*catalog.Part{plenty, scarce} {
		got, err := h.repos.Catalog.FindPart(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Stock, got.Stock, "stock of %s is untouched", p.Name)

		logs, err := h.repos.Catalog.ListInventoryLogs(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, logs)
	}

	detail, err := h.jobs.GetJob(ctx, tech, jobID)
	require.NoError(t, err)
	assert.Equal(t, "DIAGNOSTIC", detail.Stage)
	assert.Empty(t, detail.PartsUsed)

	eng, err := h.repos.Availability.ActiveEngagement(ctx, tech.ID, uuid.Nil)
	require.NoError(t, err)
	assert.NotNil(t, eng, "the technician stays engaged")
}

func TestCompleteJob_UnknownPart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, auth.RoleAdmin)
	customer := h.user(t, auth.RoleCustomer)
	tech := h.user(t, auth.RoleTechnician)

	bk := h.book(t, customer, h.service(t, false))
	jobID := h.assignAndConfirm(t, admin, bk.ID, tech.ID)

	var verr *domain.ValidationError
	_, err := h.jobs.CompleteJob(ctx, admin, jobID, application.CompleteJobRequest{
		Parts: []application.PartInput{{PartID: uuid.New(), Quantity: 1}},
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "Part not found")
}

func TestUpdateStage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, auth.RoleAdmin)
	customer := h.user(t, auth.RoleCustomer)
	tech := h.user(t, auth.RoleTechnician)
	outsider := h.user(t, auth.RoleTechnician)

	bk := h.book(t, customer, h.service(t, false))
	jobID := h.assignAndConfirm(t, admin, bk.ID, tech.ID)

	var verr *domain.ValidationError
	_, err := h.jobs.UpdateStage(ctx, tech, jobID, application.UpdateStageRequest{Stage: "COMPLETION"})
	assert.ErrorAs(t, err, &verr, "COMPLETION goes through CompleteJob")

	var serr *domain.InvalidStateError
	_, err = h.jobs.UpdateStage(ctx, tech, jobID, application.UpdateStageRequest{Stage: "TESTING"})
	assert.ErrorAs(t, err, &serr, "stages cannot be skipped")

	var forbidden *domain.ForbiddenError
	_, err = h.jobs.UpdateStage(ctx, outsider, jobID, application.UpdateStageRequest{Stage: "REPAIR"})
	assert.ErrorAs(t, err, &forbidden)
	_, err = h.jobs.UpdateStage(ctx, customer, jobID, application.UpdateStageRequest{Stage: "REPAIR"})
	assert.ErrorAs(t, err, &forbidden)

	got, err := h.jobs.UpdateStage(ctx, tech, jobID, application.UpdateStageRequest{Stage: "REPAIR"})
	require.NoError(t, err)
	assert.Equal(t, "REPAIR", got.Stage)
	assert.Contains(t, h.unreadTypes(t, customer.ID), "JOB_STAGE_UPDATED")

	_, err = h.jobs.UpdateStage(ctx, tech, jobID, application.UpdateStageRequest{Stage: "DIAGNOSTIC"})
	assert.ErrorAs(t, err, &serr, "stages only move forward")

	got, err = h.jobs.UpdateStage(ctx, admin, jobID, application.UpdateStageRequest{Stage: "TESTING"})
	require.NoError(t, err)
	assert.Equal(t, "TESTING", got.Stage)
}

func TestAddNote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, auth.RoleAdmin)
	customer := h.user(t, auth.RoleCustomer)
	stranger := h.user(t, auth.RoleCustomer)
	lead := h.user(t, auth.RoleTechnician)
	helper := h.user(t, auth.RoleTechnician)

	bk := h.book(t, customer, h.service(t, false))
	_, err := h.bookings.AssignTechnicians(ctx, admin, bk.ID, application.AssignRequest{TechnicianIDs: []uuid.UUID{lead.ID, helper.ID}})
	require.NoError(t, err)
	_, err = h.bookings.ConfirmBooking(ctx, admin, bk.ID)
	require.NoError(t, err)
	j, err := h.repos.Jobs.FindByBookingID(ctx, bk.ID)
	require.NoError(t, err)

	_, err = h.jobs.AddNote(ctx, lead, j.ID(), application.AddNoteRequest{Note: "  leaking condenser  "})
	require.NoError(t, err)
	h.now = h.now.Add(time.Minute)
	_, err = h.jobs.AddNote(ctx, customer, j.ID(), application.AddNoteRequest{Note: "please call before replacing parts"})
	require.NoError(t, err)

	var forbidden *domain.ForbiddenError
	_, err = h.jobs.AddNote(ctx, stranger, j.ID(), application.AddNoteRequest{Note: "hello"})
	assert.ErrorAs(t, err, &forbidden)

	detail, err := h.jobs.GetJob(ctx, helper, j.ID())
	require.NoError(t, err)
	require.Len(t, detail.Notes, 2)
	assert.Equal(t, "leaking condenser", detail.Notes[0].Note)

	assert.Contains(t, h.unreadTypes(t, helper.ID), "JOB_NOTE_ADDED")

	jobs, total, err := h.jobs.ListJobs(ctx, helper, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, j.ID(), jobs[0].ID)

	_, total, err = h.jobs.ListJobs(ctx, stranger, "", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}
