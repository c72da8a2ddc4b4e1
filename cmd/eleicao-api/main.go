package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/conselho-dev/eleicao-api/api/swagger"
	"github.com/conselho-dev/eleicao-api/internal/handler"
	internalmw "github.com/conselho-dev/eleicao-api/internal/middleware"
	"github.com/conselho-dev/eleicao-api/internal/repository"
	"github.com/conselho-dev/eleicao-api/internal/service"
	"github.com/conselho-dev/eleicao-api/pkg/cache"
	"github.com/conselho-dev/eleicao-api/pkg/clock"
	"github.com/conselho-dev/eleicao-api/pkg/config"
	"github.com/conselho-dev/eleicao-api/pkg/database"
	"github.com/conselho-dev/eleicao-api/pkg/events"
	"github.com/conselho-dev/eleicao-api/pkg/export"
	"github.com/conselho-dev/eleicao-api/pkg/logger"
	corsmiddleware "github.com/conselho-dev/eleicao-api/pkg/middleware/cors"
	reqidmiddleware "github.com/conselho-dev/eleicao-api/pkg/middleware/requestid"
)

// @title Eleicao API
// @version 1.0.0
// @description Case lifecycle, deadline engine and ballot gate for electoral challenge processes
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	challengeRepo := repository.NewChallengeRepository(db)
	deadlineRepo := repository.NewDeadlineRepository(db)
	ballotRepo := repository.NewBallotRepository(db)
	electionRepo := repository.NewElectionRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	bus := events.NewBus(notificationConsumer(logr), events.BusConfig{
		Workers:    cfg.Events.Workers,
		BufferSize: cfg.Events.BufferSize,
		MaxRetries: cfg.Events.MaxRetries,
		RetryDelay: cfg.Events.RetryDelay,
		Logger:     logr,
	})
	bus.Start(ctx)
	defer bus.Stop()

	validate := validator.New()
	clk := clock.System()
	metrics := service.NewMetricsService()

	deadlineSvc := service.NewDeadlineService(deadlineRepo, clk, service.Weekdays, cfg.Deadlines, bus, logr)
	deadlineSvc.SetMetrics(metrics)

	challengeSvc := service.NewChallengeService(challengeRepo, deadlineSvc, electionRepo, clk, bus, validate, logr, cfg.Deadlines.MaxRetries)
	challengeSvc.SetMetrics(metrics)

	// Roll membership lives in the registry system; until its client lands
	// every authenticated professional is treated as in good standing.
	// TODO: replace with the registry gRPC client once the service is live.
	eligibility := func(ctx context.Context, electionID, voterID string) (bool, error) {
		return true, nil
	}
	ballotSvc := service.NewBallotService(ballotRepo, electionRepo, cacheRepo, eligibility, clk, bus, validate, logr, cfg.Ballots.ElectionCacheTTL)
	ballotSvc.SetMetrics(metrics)

	if cfg.Sweeper.Enabled {
		sweeper := service.NewSweeper(deadlineSvc, cfg.Sweeper.Interval, logr)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	challengeHandler := handler.NewChallengeHandler(challengeSvc, export.NewRulingPDFExporter())
	ballotHandler := handler.NewBallotHandler(ballotSvc)
	deadlineHandler := handler.NewDeadlineHandler(deadlineSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmw.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmw.JWT(cfg.JWT.Secret))
	{
		challenges := api.Group("/challenges")
		{
			challenges.POST("", challengeHandler.File)
			challenges.GET("", challengeHandler.List)
			challenges.GET("/protocol/:protocol", challengeHandler.GetByProtocol)
			challenges.GET("/:id", challengeHandler.Get)
			challenges.POST("/:id/defense", challengeHandler.SubmitDefense)
			challenges.POST("/:id/ruling", challengeHandler.RenderRuling)
			challenges.GET("/:id/ruling/export", challengeHandler.ExportRuling)
			challenges.POST("/:id/appeal", challengeHandler.FileAppeal)
			challenges.POST("/:id/archive", challengeHandler.Archive)
			challenges.GET("/:id/deadlines", challengeHandler.ListDeadlines)
			challenges.POST("/:id/documents", challengeHandler.AddDocument)
			challenges.DELETE("/:id/documents/:docId", challengeHandler.RemoveDocument)
		}

		deadlines := api.Group("/deadlines")
		{
			deadlines.POST("/:id/extend", deadlineHandler.Extend)
			deadlines.POST("/sweep", deadlineHandler.Sweep)
		}

		ballots := api.Group("/ballots")
		{
			ballots.POST("", ballotHandler.Cast)
			ballots.GET("/:electionId/receipt", ballotHandler.Receipt)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// notificationConsumer logs every domain event. Outbound channels (email to
// parties, commission dashboards) subscribe here when they arrive.
func notificationConsumer(logr *zap.Logger) events.Handler {
	return func(_ context.Context, event events.Event) error {
		logr.Info("domain event",
			zap.String("event", event.Name),
			zap.String("challenge_id", event.ChallengeID),
			zap.String("election_id", event.ElectionID),
			zap.String("phase", event.Phase),
			zap.Time("occurred_at", event.OccurredAt),
			zap.Any("payload", event.Payload))
		return nil
	}
}
