package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/config"
	"github.com/onlinecourse/backend/internal/logger"
	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/payments/byl"
	"github.com/onlinecourse/backend/internal/payments/qpay"
	"github.com/onlinecourse/backend/internal/repositories"
	"github.com/onlinecourse/backend/internal/services"
	"github.com/onlinecourse/backend/internal/tasks"
)

const sweepTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	hostname, _ := os.Hostname()
	logger.InitRollbar(logger.RollbarConfig{
		Token:       cfg.Rollbar.Token,
		Environment: cfg.Env,
		ServerHost:  hostname,
		CodeVersion: "scheduler",
	})
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Online Course Scheduler", zap.String("schedule", cfg.Payments.SweepSchedule))

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Test Redis connection
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Create Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db, logger.Logger)
	userTokenRepo := repositories.NewUserTokenRepository(db, logger.Logger)
	courseRepo := repositories.NewCourseRepository(db, logger.Logger)
	enrollmentRepo := repositories.NewEnrollmentRepository(db, logger.Logger)
	paymentRepo := repositories.NewPaymentRepository(db, logger.Logger)
	settingsRepo := repositories.NewSettingsRepository(db, logger.Logger)

	paymentService := services.NewPaymentService(
		paymentRepo, courseRepo, userRepo, enrollmentRepo, settingsRepo,
		qpay.NewClient(qpay.Config{
			BaseURL:     cfg.QPay.BaseURL,
			Username:    cfg.QPay.Username,
			Password:    cfg.QPay.Password,
			InvoiceCode: cfg.QPay.InvoiceCode,
		}, nil, logger.Logger),
		byl.NewClient(byl.Config{
			BaseURL:    cfg.Byl.BaseURL,
			ProjectID:  cfg.Byl.ProjectID,
			Token:      cfg.Byl.Token,
			HookSecret: cfg.Byl.HookSecret,
		}, nil, logger.Logger),
		tasks.NewEnqueuer(asynqClient, logger.Logger),
		services.PaymentConfig{
			PublicBaseURL: cfg.PublicBaseURL,
			FrontendURL:   cfg.Google.FrontendRedirectURL,
			Windows: models.ExpiryWindows{
				Gateway:      cfg.Payments.ExpiryWindow,
				BankTransfer: cfg.Payments.BankTransferExpiryWindow,
			},
		},
		logger.Logger,
	)
	maintenanceService := services.NewMaintenanceService(userTokenRepo, paymentService, cfg.JWT.RefreshTokenExpiry, logger.Logger)

	// Create scheduler instance
	scheduler, err := NewScheduler(maintenanceService, cfg.Payments.SweepSchedule, sweepTimeout, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to create scheduler", zap.Error(err))
	}

	// Start scheduler
	scheduler.Start()
	defer func() {
		logger.Logger.Info("Shutting down scheduler...")
		scheduler.Stop()
		logger.Logger.Info("Scheduler exited")
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
