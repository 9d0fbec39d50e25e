package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	"github.com/maheshrc27/postflow/internal/gateway"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/live"
	"github.com/maheshrc27/postflow/internal/progress"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg.Env)

	db, err := sqlx.Connect("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer closeDB(db)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	inspector := asynq.NewInspector(redisConn)
	defer inspector.Close()

	sink, err := live.New(cfg.Live, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up live updates")
	}
	defer sink.Close()

	ctx := context.Background()
	mediaService, err := service.NewMediaService(ctx, cfg.R2)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up media storage")
	}

	rps := cfg.Platforms.RateLimit
	apiClient := &http.Client{Timeout: 60 * time.Second}
	registry := gateway.NewRegistry(
		gateway.NewInstagramGateway(cfg.Platforms.InstagramBaseURL, apiClient, rps),
		gateway.NewTiktokGateway(cfg.Platforms.TiktokBaseURL, apiClient, rps),
		gateway.NewFacebookGateway(cfg.Platforms.FacebookBaseURL, apiClient, rps),
		gateway.NewYoutubeGateway(&http.Client{Timeout: 30 * time.Minute}, "", rps),
	)

	postRepo := repository.NewPostRepository(db)
	recordRepo := repository.NewPublishRecordRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)

	progressStore := progress.NewStore(rdb, cfg.ProgressTTL)
	queueClient := queue.NewClient(client, inspector, cfg.Tuning)

	credentialService := service.NewCredentialService(socialAccountRepo, cfg.SecretKey, map[string]*oauth2.Config{
		gateway.PlatformYoutube: {
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
			Endpoint:     google.Endpoint,
		},
	})
	publishService := service.NewPublishService(postRepo, recordRepo, registry, credentialService, mediaService,
		queueClient, queueClient, sink, progressStore, cfg.Live.Timeout)
	pollService := service.NewPollService(postRepo, recordRepo, registry, sink, progressStore, cfg.Live.Timeout)
	postService := service.NewPostService(postRepo, recordRepo, registry, publishService, queueClient)
	analyticsService := service.NewAnalyticsService(postRepo, recordRepo, registry, credentialService)
	statusService := job.NewStatusService(inspector, progressStore, queue.Queues(registry.AsyncPlatforms()))

	// cron jobs
	reconciler := job.NewPendingReconciler(recordRepo, postRepo, registry, credentialService, queueClient, pollService, cfg.ReconcileAfter)
	c := cron.New()
	if err := c.AddFunc(cfg.ReconcileInterval, reconciler.Reconcile); err != nil {
		log.Fatal().Err(err).Msg("invalid reconcile interval")
	}
	c.Start()
	defer c.Stop()

	// queue
	worker := queue.NewWorker(publishService, pollService)
	mux := asynq.NewServeMux()
	worker.Register(mux)

	servers := queue.NewServers(redisConn, cfg.Tuning, registry.AsyncPlatforms(), cfg.WorkerConcurrency)
	if err := servers.Start(mux); err != nil {
		log.Fatal().Err(err).Msg("could not start asynq servers")
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	api.Register(app,
		middleware.NewAuthMiddleware(cfg.SecretKey, cfg.CookieName),
		handlers.NewPostHandler(postService, publishService, analyticsService),
		handlers.NewJobHandler(statusService),
	)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("server is running")

	gracefulShutdown(app, servers)
}

func setupLogger(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func closeDB(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
		return
	}
	log.Info().Msg("database connection closed")
}

func gracefulShutdown(app *fiber.App, servers *queue.Servers) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("shutting down server...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Error().Err(err).Msg("failed to shut down server")
	}
	servers.Shutdown()
	log.Info().Msg("server shutdown complete")
}
