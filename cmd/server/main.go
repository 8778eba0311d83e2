package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/config"
	"github.com/chillcar/service-booking/internal/events"
	"github.com/chillcar/service-booking/internal/handler"
	"github.com/chillcar/service-booking/internal/invoice"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/database"
	"github.com/chillcar/service-booking/internal/platform/health"
	"github.com/chillcar/service-booking/internal/platform/kafka"
	"github.com/chillcar/service-booking/internal/platform/logger"
	"github.com/chillcar/service-booking/internal/platform/middleware"
	"github.com/chillcar/service-booking/internal/repository"
	"github.com/chillcar/service-booking/migrations"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(repository.Models()...); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), migrations.FS, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, cfg.JWTConfig.AccessTTL)

	// Token revocation lives in Redis; without it logout only clears the cookie.
	var revocations auth.RevocationStore
	if cfg.RedisConfig.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		revocations = auth.NewRedisRevocationStore(rdb)
	} else {
		log.Warn("redis not configured, logged out tokens stay valid until expiry")
	}

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notificationService := application.NewNotificationService(repos.Notifications, log)

	// Notifications go through Kafka when brokers are configured; the consumer stores them.
	var notifier application.Notifier = application.NewDirectNotifier(notificationService)
	if len(cfg.KafkaConfig.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = producer.Close() }()
		notifier = events.NewKafkaNotifier(producer, cfg.KafkaConfig.NotificationTopic, log)

		consumer := events.NewNotificationConsumer(
			cfg.KafkaConfig.Brokers,
			cfg.KafkaConfig.GroupPrefix+serviceName,
			cfg.KafkaConfig.NotificationTopic,
			notificationService,
			log,
		)
		defer func() { _ = consumer.Close() }()

		go func() {
			log.Info("starting notification consumer")
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("notification consumer error", zap.Error(err))
			}
		}()
	}

	// Initialize application services
	authService := application.NewAuthService(repos.Users, jwtManager, revocations, log)
	userService := application.NewUserService(repos, log)
	catalogService := application.NewCatalogService(repos.Catalog, tx, log)
	bookingService := application.NewBookingService(repos, tx, notifier, cfg.Window, log)
	jobService := application.NewJobService(repos, tx, notifier, log)
	billingService := application.NewBillingService(repos, tx, notifier, invoice.NewExcelRenderer(cfg.Workshop), log)

	if cfg.Admin.Email != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatal("failed to create bootstrap admin", zap.Error(err))
		}
	}

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.FrontendURL))
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	health.NewHandler(db, serviceName).RegisterRoutes(router)

	// Register routes
	api := router.Group("/api")
	authMW := middleware.AuthMiddleware(jwtManager, revocations)
	handler.NewAuthHandler(authService, cfg.CookieSecure).RegisterRoutes(api, authMW)
	handler.NewAdminHandler(userService, bookingService).RegisterRoutes(api, authMW)
	handler.NewCarHandler(userService).RegisterRoutes(api, authMW)
	handler.NewCatalogHandler(catalogService).RegisterRoutes(api, authMW)
	handler.NewBookingHandler(bookingService, billingService).RegisterRoutes(api, authMW)
	handler.NewJobHandler(jobService).RegisterRoutes(api, authMW)
	handler.NewBillingHandler(billingService).RegisterRoutes(api, authMW)
	handler.NewNotificationHandler(notificationService).RegisterRoutes(api, authMW)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Cancel the consumer context
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
