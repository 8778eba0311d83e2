//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chillcar/service-booking/internal/application"
	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	"github.com/chillcar/service-booking/internal/domain/catalog"
	userDomain "github.com/chillcar/service-booking/internal/domain/user"
	"github.com/chillcar/service-booking/internal/events"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/database"
	"github.com/chillcar/service-booking/internal/platform/kafka"
	"github.com/chillcar/service-booking/internal/repository"
	"github.com/chillcar/service-booking/migrations"
)

const testTopic = "carservice.notifications.test"

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// serviceStack holds wired-up service components publishing notifications through Kafka.
type serviceStack struct {
	Repos           application.Repositories
	Bookings        *application.BookingService
	Jobs            *application.JobService
	Notifications   *application.NotificationService
	Consumer        *events.NotificationConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers, applies the SQL migrations and
// returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_carservice",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_carservice",
		SSLMode:  "disable",
	}

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(dbConfig, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(dbConfig.DatabaseURL(), migrations.FS, logger))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, testTopic)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupServiceStack wires the booking and job services to a Kafka notifier and a consumer that
// stores what it reads.
func setupServiceStack(t *testing.T, db *gorm.DB, brokers []string) *serviceStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	repos := application.Repositories{
		Bookings:       repository.NewGormBookingRepository(db),
		ChangeRequests: repository.NewGormChangeRequestRepository(db),
		Availability:   repository.NewGormAvailabilityChecker(db),
		Jobs:           repository.NewGormJobRepository(db),
		Catalog:        repository.NewGormCatalogRepository(db),
		Users:          repository.NewGormUserRepository(db),
		Quotes:         repository.NewGormQuoteRepository(db),
		Billings:       repository.NewGormBillingRepository(db),
		Notifications:  repository.NewGormNotificationRepository(db),
	}
	tx := database.NewTransactor(db)

	producer := kafka.NewProducer(brokers, logger)
	notifier := events.NewKafkaNotifier(producer, testTopic, logger)
	notifications := application.NewNotificationService(repos.Notifications, logger)

	groupID := fmt.Sprintf("test-carservice-%s", uuid.New().String()[:8])
	consumer := events.NewNotificationConsumer(brokers, groupID, testTopic, notifications, logger)

	return &serviceStack{
		Repos:           repos,
		Bookings:        application.NewBookingService(repos, tx, notifier, bookingDomain.DefaultServiceWindow(time.UTC), logger),
		Jobs:            application.NewJobService(repos, tx, notifier, logger),
		Notifications:   notifications,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedUser inserts an account with the given role.
func seedUser(t *testing.T, s *serviceStack, role auth.Role) application.Actor {
	t.Helper()
	u, err := userDomain.NewUser(string(role)+" user", uuid.NewString()+"@example.com", "", "hashed", role, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, s.Repos.Users.Save(context.Background(), u))
	return application.Actor{ID: u.ID(), Role: role}
}

// seedBooking creates a car and a catalog service for customer and books it for tomorrow morning.
func seedBooking(t *testing.T, s *serviceStack, customer application.Actor) application.BookingDTO {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	car, err := userDomain.NewCar(customer.ID, "Honda", "City", 2019, "WBC "+uuid.NewString()[:4], now)
	require.NoError(t, err)
	require.NoError(t, s.Repos.Users.SaveCar(ctx, car))

	svc := &catalog.Service{
		ID:              uuid.New(),
		Name:            "Aircond full service",
		PriceCents:      15000,
		DurationMinutes: 90,
		Active:          true,
		CreatedAt:       now,
	}
	require.NoError(t, s.Repos.Catalog.SaveService(ctx, svc))

	tomorrow := now.AddDate(0, 0, 1)
	at := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 10, 0, 0, 0, time.UTC)
	created, err := s.Bookings.CreateBookings(ctx, customer.ID, application.CreateBookingRequest{
		CarID:       car.ID,
		ServiceIDs:  []uuid.UUID{svc.ID},
		ScheduledAt: &at,
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	return created[0]
}

// seedPart inserts a stocked part.
func seedPart(t *testing.T, s *serviceStack, stock int) *catalog.Part {
	t.Helper()
	now := time.Now().UTC()
	p := &catalog.Part{
		ID:             uuid.New(),
		Name:           "Compressor oil",
		SKU:            "OIL-" + uuid.NewString()[:6],
		Stock:          stock,
		UnitPriceCents: 3000,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.Repos.Catalog.SavePart(context.Background(), p))
	return p
}

// waitForNotification polls the notifications table until userID has one of the given type.
func waitForNotification(t *testing.T, db *gorm.DB, userID uuid.UUID, notificationType string, timeout time.Duration) repository.NotificationModel {
	t.Helper()
	var result repository.NotificationModel
	require.Eventually(t, func() bool {
		var model repository.NotificationModel
		err := db.Where("user_id = ? AND type = ?", userID, notificationType).First(&model).Error
		if err != nil {
			return false
		}
		result = model
		return true
	}, timeout, 200*time.Millisecond, "no %s notification for %s", notificationType, userID)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event keyed for the given user.
func consumeOneEvent(t *testing.T, brokers []string, topic, key string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event keyed %q on topic %q", key, topic)
			}
			continue
		}
		if string(msg.Key) != key {
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		return ce
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
