//go:build integration

package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/domain/notification"
	"github.com/chillcar/service-booking/internal/events"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// TestAssignment_NotifiesTechnicianThroughKafka verifies that assigning a technician publishes a
// notification CloudEvent and that the consumer stores it in the technician's feed.
func TestAssignment_NotifiesTechnicianThroughKafka(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupServiceStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	admin := seedUser(t, stack, auth.RoleAdmin)
	customer := seedUser(t, stack, auth.RoleCustomer)
	tech := seedUser(t, stack, auth.RoleTechnician)
	bk := seedBooking(t, stack, customer)

	// The admin hears about the new booking.
	waitForNotification(t, infra.DB, admin.ID, string(notification.TypeBookingCreated), 15*time.Second)

	_, err := stack.Bookings.AssignTechnicians(ctx, admin, bk.ID, application.AssignRequest{TechnicianID: &tech.ID})
	require.NoError(t, err)

	model := waitForNotification(t, infra.DB, tech.ID, string(notification.TypeBookingAssigned), 15*time.Second)
	assert.False(t, model.Read)
	assert.Contains(t, model.Message, bk.BookingNumber)

	ce := consumeOneEvent(t, infra.KafkaBrokers, testTopic, tech.ID.String(), 15*time.Second)
	assert.Equal(t, events.EventNotificationCreated, ce.Type)
	var msg notification.Message
	require.NoError(t, ce.ParseData(&msg))
	assert.Equal(t, tech.ID, msg.UserID)
	assert.Equal(t, notification.TypeBookingAssigned, msg.Type)

	count, err := stack.Notifications.UnreadCount(ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// TestCompleteJob_StockOnPostgres runs job completion against the migrated schema so that the
// row locks and the stock check constraint are exercised on a real database.
func TestCompleteJob_StockOnPostgres(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupServiceStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	ctx := context.Background()
	admin := seedUser(t, stack, auth.RoleAdmin)
	customer := seedUser(t, stack, auth.RoleCustomer)
	tech := seedUser(t, stack, auth.RoleTechnician)
	part := seedPart(t, stack, 3)
	bk := seedBooking(t, stack, customer)

	_, err := stack.Bookings.AssignTechnicians(ctx, admin, bk.ID, application.AssignRequest{TechnicianID: &tech.ID})
	require.NoError(t, err)
	_, err = stack.Bookings.ConfirmBooking(ctx, admin, bk.ID)
	require.NoError(t, err)
	j, err := stack.Repos.Jobs.FindByBookingID(ctx, bk.ID)
	require.NoError(t, err)

	var rule *domain.BusinessRuleError
	_, err = stack.Jobs.CompleteJob(ctx, tech, j.ID(), application.CompleteJobRequest{
		Parts: []application.PartInput{{PartID: part.ID, Quantity: 4}},
	})
	require.ErrorAs(t, err, &rule)

	detail, err := stack.Jobs.CompleteJob(ctx, tech, j.ID(), application.CompleteJobRequest{
		Parts: []application.PartInput{{PartID: part.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETION", detail.Stage)

	stocked, err := stack.Repos.Catalog.FindPart(ctx, part.ID)
	require.NoError(t, err)
	assert.Zero(t, stocked.Stock)

	logs, err := stack.Repos.Catalog.ListInventoryLogs(ctx, part.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 3, logs[0].Quantity)
}
