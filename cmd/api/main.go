package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/config"
	"github.com/rubriq/rubriq-api/internal/database"
	"github.com/rubriq/rubriq-api/internal/grading"
	"github.com/rubriq/rubriq-api/internal/handler"
	"github.com/rubriq/rubriq-api/internal/middleware"
	"github.com/rubriq/rubriq-api/internal/models"
	"github.com/rubriq/rubriq-api/internal/repository"
	"github.com/rubriq/rubriq-api/internal/router"
	"github.com/rubriq/rubriq-api/internal/service"
	"github.com/rubriq/rubriq-api/internal/session"
	"github.com/rubriq/rubriq-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.UserCourse{}, &models.Subscription{}, &models.PaymentRecord{}, &models.GradingHistory{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	grader, err := ai.NewOpenAIGrader(ai.OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to create grader: %v", err)
	}

	reviewer, err := ai.NewAnthropicReviewer(ai.AnthropicConfig{
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.AnthropicModel,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to create reviewer: %v", err)
	}

	jobStore := grading.NewRedisStore(redisClient, cfg.GradingJobTTL)
	runner := grading.NewRunner(jobStore, grader, reviewer, cfg.GradingJobTimeout, logger)
	poller := grading.NewPoller(jobStore.Get, cfg.GradingPollInterval, cfg.GradingJobTimeout, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	canvasFactory := service.CanvasFactory(func(baseURL, token, courseID string) service.CanvasAPI {
		return canvas.New(baseURL, token, courseID, logger)
	})

	userRepo := repository.NewUserRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	historyRepo := repository.NewGradingHistoryRepository(db)

	stripeGateway := service.NewStripeGateway(cfg.StripeAPIKey, cfg.StripeWebhookSecret)
	billingService := service.NewBillingService(userRepo, subscriptionRepo, stripeGateway, service.BillingConfig{
		Enforced:         cfg.BillingEnforced,
		FreeAccessEmails: cfg.FreeAccessEmails,
		PriceMonthly:     cfg.StripePriceMonthly,
		PriceYearly:      cfg.StripePriceYearly,
		PriceExtraClass:  cfg.StripePriceExtra,
	}, validate, logger)

	userService := service.NewUserService(userRepo, canvasFactory, validate, logger)
	assignmentService := service.NewAssignmentService(userRepo, canvasFactory, logger)
	gradingService := service.NewGradingService(userRepo, historyRepo, runner, jobStore, poller, billingService, canvasFactory, validate, logger)
	reviewService := service.NewReviewService(session.NewStore(), jobStore, validate, logger)
	adminService := service.NewAdminService(userRepo, subscriptionRepo, historyRepo, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		GradingHandler:    handler.NewGradingHandler(gradingService, logger),
		ReviewHandler:     handler.NewReviewHandler(reviewService, logger),
		UserHandler:       handler.NewUserHandler(userService, logger),
		BillingHandler:    handler.NewBillingHandler(billingService, logger),
		AdminHandler:      handler.NewAdminHandler(adminService, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
