package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/coverage-api/api/swagger"
	"github.com/noah-isme/coverage-api/internal/handler"
	"github.com/noah-isme/coverage-api/internal/repository"
	"github.com/noah-isme/coverage-api/internal/router"
	"github.com/noah-isme/coverage-api/internal/service"
	"github.com/noah-isme/coverage-api/pkg/cache"
	"github.com/noah-isme/coverage-api/pkg/config"
	"github.com/noah-isme/coverage-api/pkg/database"
	"github.com/noah-isme/coverage-api/pkg/export"
	"github.com/noah-isme/coverage-api/pkg/jobs"
	"github.com/noah-isme/coverage-api/pkg/logger"
	"github.com/noah-isme/coverage-api/pkg/notify"
)

// @title Coverage Assignment API
// @version 1.0.0
// @description Substitute coverage openings, rotation, and earnings ledger.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	reporter := logger.NewReporter(cfg, logr)
	defer reporter.Close()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Migrations.AutoApply {
		migrator, err := database.NewMigrator(db, logr)
		if err != nil {
			logr.Fatal("failed to init migrator", zap.Error(err))
		}
		if err := migrator.Up(ctx); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	deps := map[string]handler.Pinger{"postgres": db}

	metrics := service.NewMetricsService()
	location := cfg.Coverage.Location()
	validate := validator.New()

	var cacheRepo service.CacheRepository
	cacheEnabled := cfg.Earnings.CacheEnabled
	if cacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, earnings cache disabled", zap.Error(err))
			cacheEnabled = false
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, logr)
			deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Earnings.CacheTTL, logr, cacheEnabled)

	channels := []notify.Notifier{}
	telegram, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken)
	if err != nil {
		logr.Warn("telegram notifications disabled", zap.Error(err))
	} else if telegram != nil {
		channels = append(channels, telegram)
	}
	if sendgrid := notify.NewSendgridNotifier(cfg.Notify.SendgridAPIKey, cfg.Notify.FromName, cfg.Notify.FromEmail, cfg.Notify.SubjectPrefix); sendgrid != nil {
		channels = append(channels, sendgrid)
	}
	notifier := notify.NewMulti(logr, channels...)

	staffRepo := repository.NewStaffRepository(db)
	openingRepo := repository.NewOpeningRepository(db)
	periodRepo := repository.NewClassPeriodRepository(db)
	ledgerRepo := repository.NewCoverageLogRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	timeOffRepo := repository.NewTimeOffRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	offerSvc := service.NewOfferService(offerRepo, notifier, metrics, service.OfferConfig{
		PublicBaseURL: cfg.Notify.PublicAppBaseURL,
		Location:      location,
	}, logr)
	offerQueue := jobs.NewQueue("offers", offerSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Offers.WorkerConcurrency,
		MaxRetries: cfg.Offers.WorkerRetries,
		RetryDelay: cfg.Offers.RetryDelay,
		Logger:     logr,
	})
	offerQueue.Start(ctx)
	offerSvc.AttachQueue(offerQueue)

	rotationSvc := service.NewRotationService(staffRepo, offerSvc, logr)
	earningsSvc := service.NewEarningsService(ledgerRepo, staffRepo, cacheSvc, metrics, service.EarningsConfig{
		DefaultRate: cfg.Coverage.DefaultRate,
		CacheTTL:    cfg.Earnings.CacheTTL,
		Location:    location,
	}, validate, logr)
	coverageSvc := service.NewCoverageService(openingRepo, staffRepo, periodRepo, rotationSvc, earningsSvc, metrics, service.CoverageConfig{
		AdvanceNotice:       cfg.Coverage.AdvanceNotice,
		RequireConfirmation: cfg.Coverage.RequireConfirmation,
		Location:            location,
	}, validate, logr)
	rosterSvc := service.NewRosterService(staffRepo, periodRepo, coverageSvc, location, validate, logr)
	timeOffSvc := service.NewTimeOffService(timeOffRepo, staffRepo, notifier, validate, logr)
	exportSvc := service.NewExportService(ledgerRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	engine := router.New(router.Deps{
		Logger:         logr,
		Reporter:       reporter,
		Auth:           authSvc,
		Metrics:        metrics,
		Audit:          auditRepo,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		APIPrefix:      cfg.APIPrefix,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Coverage:       handler.NewCoverageHandler(coverageSvc),
		Roster:         handler.NewRosterHandler(rosterSvc),
		Earnings:       handler.NewEarningsHandler(earningsSvc, exportSvc),
		Offers:         handler.NewOfferHandler(offerSvc),
		TimeOff:        handler.NewTimeOffHandler(timeOffSvc),
		Health:         handler.NewMetricsHandler(metrics, deps),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		logr.Error("server failed", zap.Error(err))
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		_ = server.Close()
	}
	offerQueue.Stop()
	logr.Info("server stopped")
}
