package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/config"
	"github.com/noah-isme/algogenius-api/internal/database"
	"github.com/noah-isme/algogenius-api/internal/flows"
	"github.com/noah-isme/algogenius-api/internal/handler"
	"github.com/noah-isme/algogenius-api/internal/middleware"
	"github.com/noah-isme/algogenius-api/internal/observability"
	"github.com/noah-isme/algogenius-api/internal/repository"
	"github.com/noah-isme/algogenius-api/internal/router"
	"github.com/noah-isme/algogenius-api/internal/service"
	"github.com/noah-isme/algogenius-api/pkg/ai"
	cloud "github.com/noah-isme/algogenius-api/pkg/cloudinary"
	"github.com/noah-isme/algogenius-api/pkg/docker"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = logger.With().Str("service", cfg.AppName).Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.AppName,
		Environment: cfg.AppEnv,
		Endpoint:    cfg.TracingEndpoint,
		Insecure:    cfg.TracingInsecure,
		Stdout:      cfg.TracingStdout,
		SampleRatio: cfg.TracingSampleRatio,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	provider, err := ai.NewProvider(ctx, ai.Config{
		Provider:  cfg.AIProvider,
		Model:     cfg.AIModel,
		OpenAI:    ai.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL},
		Anthropic: ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey},
		Gemini:    ai.GeminiConfig{APIKey: cfg.GeminiAPIKey},
		Retry: ai.RetryConfig{
			MaxAttempts:    cfg.AIMaxAttempts,
			AttemptTimeout: cfg.AITimeout,
			InitialWait:    500 * time.Millisecond,
			MaxWait:        5 * time.Second,
			Multiplier:     2,
		},
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generative backend")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	scenarioRepo := repository.NewScenarioRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	goalRepo := repository.NewLearningGoalRepository(db)
	runRepo := repository.NewPipelineRunRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	scenarioFlow := flows.NewScenarioFlow(provider, logger)

	dashboardService := service.NewDashboardService(userRepo, rosterRepo, assignmentRepo, goalRepo, redisClient, cfg.DashboardCacheTTL, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.NotificationChannel, natsConn, validate, logger)
	notificationService.Start(ctx)

	activityService := service.NewActivityService(activityRepo, userRepo, rosterRepo, validate, logger)
	userService := service.NewUserService(userRepo, validate, logger)
	rosterService := service.NewRosterService(rosterRepo, userRepo, dashboardService, validate, logger)
	scenarioService := service.NewScenarioService(scenarioRepo, assignmentRepo, rosterRepo, userRepo, scenarioFlow, validate, logger)
	assignmentService := service.NewAssignmentService(service.AssignmentServiceDeps{
		Assignments: assignmentRepo,
		Scenarios:   scenarioRepo,
		Roster:      rosterRepo,
		Users:       userRepo,
		Notifier:    notificationService,
		Cache:       dashboardService,
		Activity:    activityService,
		Validator:   validate,
		DefaultDue:  cfg.DefaultDue,
		Logger:      logger,
	})
	learningService := service.NewLearningService(userRepo, flows.NewQuizFlow(provider, logger), flows.NewStudyPlanFlow(provider, logger), validate, logger)

	pipelineDeps := service.PipelineDeps{
		Users:        userRepo,
		Roster:       rosterRepo,
		Scenarios:    scenarioRepo,
		Assignments:  assignmentRepo,
		Goals:        goalRepo,
		Runs:         runRepo,
		Assessor:     flows.NewAssessmentFlow(provider, logger),
		GoalAgent:    flows.NewGoalAgent(provider, logger),
		Generator:    scenarioFlow,
		Notifier:     notificationService,
		Cache:        dashboardService,
		Activity:     activityService,
		Validator:    validate,
		HistoryLimit: cfg.PipelineHistoryLimit,
		DefaultDue:   cfg.DefaultDue,
		Logger:       logger,
	}
	if natsConn != nil {
		pipelineDeps.Events = service.NewNATSEventPublisher(natsConn, logger)
	}

	archiveCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if archiveCfg.Enabled() {
		archive, err := cloud.New(archiveCfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		pipelineDeps.Archive = archive
	}

	if cfg.SandboxEnabled {
		executor, err := docker.NewDockerExecutor(docker.Config{
			Host:          cfg.DockerHost,
			Timeout:       cfg.ExecutionTimeout,
			MemoryLimitMB: int64(cfg.CodeRunMemoryMB),
			CPUShares:     int64(cfg.CodeRunCPUShares),
			Logger:        logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create docker executor")
		}
		defer executor.Close()
		pipelineDeps.Sandbox = docker.NewSandbox(executor, cfg.ExecutionTimeout, logger)
	}

	pipelineService := service.NewPipelineService(pipelineDeps)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(service.MaxSubmissionBytes) * 2,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	probes := map[string]database.Probe{"database": database.SQLProbe(db)}
	if redisClient != nil {
		probes["redis"] = database.RedisProbe(redisClient)
	}
	if natsConn != nil {
		probes["nats"] = database.NATSProbe(natsConn)
	}

	router.Register(app, cfg, router.Dependencies{
		UserHandler:         handler.NewUserHandler(userService, rosterService, logger),
		ScenarioHandler:     handler.NewScenarioHandler(scenarioService, logger),
		AssignmentHandler:   handler.NewAssignmentHandler(assignmentService, pipelineService, logger),
		DashboardHandler:    handler.NewDashboardHandler(dashboardService, logger),
		LearningHandler:     handler.NewLearningHandler(learningService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, 30*time.Second),
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		RoleMiddleware:      middleware.LoadRole(userService.Role),
		GenerationLimit:     router.DefaultGenerationLimit(),
		HealthProbes:        probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
