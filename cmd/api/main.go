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
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/uni-records-api/internal/config"
	"github.com/noah-isme/uni-records-api/internal/database"
	"github.com/noah-isme/uni-records-api/internal/handler"
	"github.com/noah-isme/uni-records-api/internal/middleware"
	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/internal/repository"
	"github.com/noah-isme/uni-records-api/internal/router"
	"github.com/noah-isme/uni-records-api/internal/service"
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

	if err := db.AutoMigrate(
		&models.Department{},
		&models.Course{},
		&models.Student{},
		&models.Instructor{},
		&models.ProgramRequirement{},
		&models.GradeRecord{},
		&models.Assessment{},
		&models.AuditLog{},
		&models.GradeEvent{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, aggregate caching and event fan-out are disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	} else {
		logger.Warn().Msg("nats url not configured, cross-node event delivery is disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	gradeRecordRepo := repository.NewGradeRecordRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)
	gradeEventRepo := repository.NewGradeEventRepository(db)
	programRepo := repository.NewProgramRequirementRepository(db)

	auditService := service.NewAuditService(auditLogRepo, logger)
	eventService := service.NewGradeEventService(gradeEventRepo, redisClient, cfg.EventChannelBase, natsConn, logger)
	recordService := service.NewGradeRecordService(gradeRecordRepo, referenceRepo, validate, auditService, eventService, logger)
	transcriptService := service.NewTranscriptService(gradeRecordRepo, referenceRepo, redisClient, cfg.AggregateCacheTTL, logger)
	statisticsService := service.NewStatisticsService(gradeRecordRepo, referenceRepo, redisClient, cfg.AggregateCacheTTL, logger)
	graduationService := service.NewGraduationService(transcriptService, gradeRecordRepo, referenceRepo, programRepo, logger)

	appCtx, stopServices := context.WithCancel(context.Background())
	defer stopServices()
	eventService.Start(appCtx)

	recordHandler := handler.NewGradeRecordHandler(recordService, validate, logger)
	transcriptHandler := handler.NewTranscriptHandler(transcriptService, graduationService, logger)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService, validate, logger)
	eventHandler := handler.NewGradeEventHandler(eventService, logger)
	auditHandler := handler.NewAuditHandler(auditService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		GradeRecordHandler: recordHandler,
		TranscriptHandler:  transcriptHandler,
		StatisticsHandler:  statisticsHandler,
		GradeEventHandler:  eventHandler,
		AuditHandler:       auditHandler,
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
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
