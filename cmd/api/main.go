package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/sessions"
	"github.com/hibiken/asynq"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/onlinecourse/backend/docs"
	"github.com/onlinecourse/backend/internal/auth/middleware"
	"github.com/onlinecourse/backend/internal/auth/service"
	"github.com/onlinecourse/backend/internal/config"
	"github.com/onlinecourse/backend/internal/handlers"
	"github.com/onlinecourse/backend/internal/logger"
	loggerMiddleware "github.com/onlinecourse/backend/internal/logger/middleware"
	sharedMiddleware "github.com/onlinecourse/backend/internal/middlewares"
	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/payments/byl"
	"github.com/onlinecourse/backend/internal/payments/qpay"
	"github.com/onlinecourse/backend/internal/repositories"
	"github.com/onlinecourse/backend/internal/services"
	"github.com/onlinecourse/backend/internal/storage"
	"github.com/onlinecourse/backend/internal/tasks"
)

// @title Online Course API
// @version 1.0
// @description API for the online course platform: catalog, lessons, payments and administration

// @contact.name API Support
// @contact.email support@onlinecourse.mn

// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
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
		CodeVersion: "api",
	})
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Online Course API", zap.String("env", cfg.Env))

	if config.WebhookSkipRequested(cfg) {
		logger.Logger.Warn("WEBHOOK_SKIP_SIGNATURE is ignored outside development")
	}
	if cfg.Payments.SkipWebhookSignature {
		logger.Logger.Warn("Webhook signature verification is disabled")
	}

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	pingCancel()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()
	enqueuer := tasks.NewEnqueuer(asynqClient, logger.Logger)

	// Initialize JWT token generator
	tokenGenerator := service.NewTokenGenerator(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db, logger.Logger)
	userTokenRepo := repositories.NewUserTokenRepository(db, logger.Logger)
	courseRepo := repositories.NewCourseRepository(db, logger.Logger)
	subCourseRepo := repositories.NewSubCourseRepository(db, logger.Logger)
	lessonRepo := repositories.NewLessonRepository(db, logger.Logger)
	enrollmentRepo := repositories.NewEnrollmentRepository(db, logger.Logger)
	mediaRepo := repositories.NewMediaRepository(db, logger.Logger)
	paymentRepo := repositories.NewPaymentRepository(db, logger.Logger)
	settingsRepo := repositories.NewSettingsRepository(db, logger.Logger)
	statsRepo := repositories.NewStatsRepository(db, logger.Logger)

	// Initialize external providers
	images := storage.NewImageStore(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.Bucket)
	videos := storage.NewVideoStore(cfg.Bunny.LibraryID, cfg.Bunny.APIKey, cfg.Bunny.TicketExpiry, logger.Logger)
	oauthStates := storage.NewStateStore(redisClient)
	qpayClient := qpay.NewClient(qpay.Config{
		BaseURL:     cfg.QPay.BaseURL,
		Username:    cfg.QPay.Username,
		Password:    cfg.QPay.Password,
		InvoiceCode: cfg.QPay.InvoiceCode,
	}, nil, logger.Logger)
	bylClient := byl.NewClient(byl.Config{
		BaseURL:    cfg.Byl.BaseURL,
		ProjectID:  cfg.Byl.ProjectID,
		Token:      cfg.Byl.Token,
		HookSecret: cfg.Byl.HookSecret,
	}, nil, logger.Logger)

	// Initialize services
	authService := services.NewAuthService(userRepo, userTokenRepo, tokenGenerator, enqueuer, logger.Logger)
	oauthService := services.NewOAuthService(services.GoogleConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
	}, userRepo, userTokenRepo, oauthStates, tokenGenerator, enqueuer, logger.Logger)
	profileService := services.NewProfileService(userRepo, enrollmentRepo, images, logger.Logger)
	catalogService := services.NewCatalogService(courseRepo, subCourseRepo, lessonRepo, enrollmentRepo, logger.Logger)
	enrollmentService := services.NewEnrollmentService(enrollmentRepo, courseRepo, lessonRepo, logger.Logger)
	mediaService := services.NewMediaService(mediaRepo, images, logger.Logger)
	courseAdminService := services.NewCourseAdminService(courseRepo, subCourseRepo, lessonRepo, images, videos, logger.Logger)
	adminService := services.NewAdminService(userRepo, courseRepo, enrollmentRepo, paymentRepo, settingsRepo, statsRepo, logger.Logger)
	paymentService := services.NewPaymentService(
		paymentRepo, courseRepo, userRepo, enrollmentRepo, settingsRepo,
		qpayClient, bylClient, enqueuer,
		services.PaymentConfig{
			PublicBaseURL: cfg.PublicBaseURL,
			FrontendURL:   cfg.Google.FrontendRedirectURL,
			Windows: models.ExpiryWindows{
				Gateway:      cfg.Payments.ExpiryWindow,
				BankTransfer: cfg.Payments.BankTransferExpiryWindow,
			},
			SkipWebhookSignature: cfg.Payments.SkipWebhookSignature,
		},
		logger.Logger,
	)
	maintenanceService := services.NewMaintenanceService(userTokenRepo, paymentService, cfg.JWT.RefreshTokenExpiry, logger.Logger)

	// Session store keeps the OAuth state between redirect and callback
	sessionStore := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, oauthService, sessionStore, handlers.CookieConfig{
		Secure:             cfg.Session.Secure,
		AccessTokenExpiry:  cfg.JWT.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.JWT.RefreshTokenExpiry,
	}, cfg.Google.FrontendRedirectURL, logger.Logger)
	profileHandler := handlers.NewProfileHandler(profileService, logger.Logger)
	courseHandler := handlers.NewCourseHandler(catalogService, logger.Logger)
	enrollmentHandler := handlers.NewEnrollmentHandler(enrollmentService, logger.Logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger.Logger)
	mediaHandler := handlers.NewMediaHandler(mediaService, logger.Logger)
	courseAdminHandler := handlers.NewCourseAdminHandler(courseAdminService, logger.Logger)
	adminHandler := handlers.NewAdminHandler(adminService, logger.Logger)
	maintenanceHandler := handlers.NewMaintenanceHandler(maintenanceService, logger.Logger)
	healthHandler := handlers.NewHealthHandler(db, logger.Logger)

	// Initialize auth middleware
	authMiddleware := middleware.AuthMiddleware(tokenGenerator)
	optionalAuthMiddleware := middleware.OptionalAuthMiddleware(tokenGenerator)
	adminMiddleware := middleware.RoleMiddleware(tokenGenerator, int(models.RoleAdmin))
	apiKeyMiddleware := middleware.APIKeyMiddleware(cfg.APIKey)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(sharedMiddleware.RequestIDMiddleware)
	r.Use(loggerMiddleware.LoggerMiddleware(logger.Logger))
	r.Use(sharedMiddleware.RecoveryMiddleware(logger.Logger))
	r.Use(sharedMiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(100, time.Minute))
	r.Use(sharedMiddleware.RequestSizeLimitMiddleware(10*1024*1024, logger.Logger)) // 10MB

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	healthHandler.RegisterRoutes(r)

	// Scope router to /api/v1
	r.Route("/api/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authMiddleware)
		profileHandler.RegisterRoutes(r, authMiddleware)
		courseHandler.RegisterRoutes(r, optionalAuthMiddleware)
		enrollmentHandler.RegisterRoutes(r, authMiddleware)
		paymentHandler.RegisterRoutes(r, authMiddleware)
		mediaHandler.RegisterRoutes(r)

		// Register maintenance routes with API key middleware
		r.Group(func(r chi.Router) {
			r.Use(apiKeyMiddleware)
			maintenanceHandler.RegisterRoutes(r)
		})

		// Register admin routes with role middleware
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminMiddleware)
			adminHandler.RegisterRoutes(r)
			courseAdminHandler.RegisterRoutes(r)
			mediaHandler.RegisterAdminRoutes(r)
			paymentHandler.RegisterAdminRoutes(r)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "lms_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Binaries started from cmd/api look one and two levels up
	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		for _, candidate := range []string{"../migrations", "../../migrations"} {
			if _, err := os.Stat(candidate); err == nil {
				migrationPath = "file://" + candidate
				break
			}
		}
	}

	m, err := migrate.NewWithDatabaseInstance(
		migrationPath,
		"mysql",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
