package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/rubiai-api/internal/config"
	"github.com/noah-isme/rubiai-api/internal/database"
	"github.com/noah-isme/rubiai-api/internal/handler"
	"github.com/noah-isme/rubiai-api/internal/middleware"
	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/internal/repository"
	"github.com/noah-isme/rubiai-api/internal/router"
	"github.com/noah-isme/rubiai-api/internal/service"
	"github.com/noah-isme/rubiai-api/pkg/ai"
	"github.com/noah-isme/rubiai-api/pkg/extract"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(&models.Rubric{}, &models.Criterion{}, &models.AppSetting{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient := connectRedis(cfg, logger)
	natsConn := connectNATS(cfg, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	rubricService := service.NewRubricService(repository.NewRubricRepository(db), validate, logger)
	if err := rubricService.Seed(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("failed to seed default rubrics; built-in defaults stay available")
	}

	settingsService := service.NewSettingsService(repository.NewSettingRepository(db), validate, service.SettingsDefaults{
		APIKey: cfg.AIAPIKey,
		Model:  cfg.AIModel,
	}, logger)

	sessions := service.NewSessionStore(redisClient, service.SessionOptions{
		Namespace: cfg.SessionNamespace,
		TTL:       cfg.SessionTTL,
	}, logger)
	if err := sessions.Load(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("failed to restore session; starting empty")
	}

	extractor := extract.New(cfg.UploadMaxBytes)
	completerFactory := func(apiKey string) (ai.Completer, error) {
		return ai.NewClient(ai.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.AIBaseURL,
			Model:       cfg.AIModel,
			MaxTokens:   cfg.AIMaxTokens,
			Temperature: cfg.AITemperature,
			Timeout:     cfg.AITimeout,
			Referer:     cfg.AIReferer,
			Title:       cfg.AITitle,
			Logger:      logger,
		})
	}

	evaluationClient := service.NewEvaluationClient(settingsService, extractor, service.NewPromptBuilder(rubricService), completerFactory, logger)
	eventHub := service.NewEventHub(logger)
	notifier := service.NewNotifier(service.NotifierOptions{
		Hub:          eventHub,
		Redis:        redisClient,
		RedisChannel: cfg.RedisChannel,
		NATS:         natsConn,
		NATSSubject:  cfg.NATSSubject,
	}, logger)
	evaluationService := service.NewEvaluationService(sessions, evaluationClient, rubricService, extractor, notifier, validate, service.EvaluationOptions{
		MockDelay: cfg.MockDelay,
		Timeout:   cfg.AITimeout,
	}, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.UploadMaxBytes) + 1<<20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		RubricHandler:     handler.NewRubricHandler(rubricService, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, sessions, eventHub, logger),
		SettingsHandler:   handler.NewSettingsHandler(settingsService, evaluationClient, logger),
		HealthProbes:      healthProbes(db, redisClient, natsConn),
		Logger:            logger,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, evaluationService, eventHub, logger)

	if natsConn != nil {
		_ = natsConn.Drain()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

// connectRedis returns nil when Redis is not configured or unreachable; the session then lives in memory.
func connectRedis(cfg config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Info().Msg("redis not configured; session store is in-memory")
		return nil
	}

	client, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable; session store is in-memory")
		return nil
	}
	return client
}

func connectNATS(cfg config.Config, logger zerolog.Logger) *nats.Conn {
	if cfg.NATSURL == "" {
		return nil
	}

	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name(cfg.AppName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable; evaluation events stay in-process")
		return nil
	}
	return conn
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(app *fiber.App, evaluations service.EvaluationService, events *service.EventHub, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events.Close()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := evaluations.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("evaluations still running at shutdown")
	}

	logger.Info().Msg("server stopped")
}
