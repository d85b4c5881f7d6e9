package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/clinicore/booking-api/internal/config"
	appointmentHandler "github.com/clinicore/booking-api/internal/handler/appointment"
	authHandler "github.com/clinicore/booking-api/internal/handler/auth"
	doctorHandler "github.com/clinicore/booking-api/internal/handler/doctor"
	healthHandler "github.com/clinicore/booking-api/internal/handler/health"
	patientHandler "github.com/clinicore/booking-api/internal/handler/patient"
	roomHandler "github.com/clinicore/booking-api/internal/handler/room"
	serviceHandler "github.com/clinicore/booking-api/internal/handler/service"
	"github.com/clinicore/booking-api/internal/middleware"
	"github.com/clinicore/booking-api/internal/repository/postgres"
	"github.com/clinicore/booking-api/internal/router"
	authService "github.com/clinicore/booking-api/internal/service/auth"
	bookingService "github.com/clinicore/booking-api/internal/service/booking"
	doctorService "github.com/clinicore/booking-api/internal/service/doctor"
	"github.com/clinicore/booking-api/internal/service/notification"
	"github.com/clinicore/booking-api/pkg/auth"
	"github.com/clinicore/booking-api/pkg/logger"
	redisbroker "github.com/clinicore/booking-api/pkg/messaging/redis"
	"github.com/clinicore/booking-api/pkg/metrics"
	"github.com/clinicore/booking-api/pkg/security"
	"github.com/clinicore/booking-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	appointmentRepo := postgres.NewAppointmentRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	roomRepo := postgres.NewRoomRepository(db)
	serviceRepo := postgres.NewServiceRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	var notifier notification.Service = notification.NoopService{}
	if cfg.SMTP.Host != "" {
		notifier = notification.NewEmailService(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	m := metrics.NewMetrics("clinicore", "booking")

	bookingSvc := bookingService.NewService(
		appointmentRepo,
		doctorRepo,
		patientRepo,
		roomRepo,
		notifier,
		m,
		appLogger,
	)
	doctorSvc := doctorService.NewService(doctorRepo, security.NewBcryptHasher(0), bookingSvc.InvalidateDoctor)

	jwtSvc := auth.NewJWTService(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		cfg.JWT.Issuer,
	)
	authSvc := authService.NewService(doctorRepo, jwtSvc, security.NewBcryptHasher(0), appLogger)

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{URL: cfg.Redis.URL}, appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	outboxProcessor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  time.Duration(cfg.Outbox.PollIntervalSeconds) * time.Second,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			MaxRetries:    cfg.Outbox.MaxRetries,
			RetentionAge:  time.Duration(cfg.Outbox.RetentionDays) * 24 * time.Hour,
		},
		appLogger,
		m,
	)

	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	r := router.NewRouter(
		authMiddleware,
		authHandler.NewHandler(authSvc),
		healthHandler.NewHandler(db, broker.Client()),
		appointmentHandler.NewHandler(bookingSvc),
		doctorHandler.NewHandler(doctorSvc),
		patientHandler.NewHandler(patientRepo),
		roomHandler.NewHandler(roomRepo),
		serviceHandler.NewHandler(serviceRepo),
		router.Config{
			RateLimit:      rate.Limit(cfg.Server.RateLimit),
			RateBurst:      cfg.Server.RateBurst,
			RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			MetricsPrefix:  "booking_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go outboxProcessor.Start(ctx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
