package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/config"
	"github.com/kzich/nudining/internal/repository/mongodb"
	"github.com/kzich/nudining/internal/repository/sheets"
	"github.com/kzich/nudining/internal/scheduler"
	"github.com/kzich/nudining/internal/scraper"
	"github.com/kzich/nudining/internal/server/handlers"
	"github.com/kzich/nudining/internal/server/router"
	menusvc "github.com/kzich/nudining/internal/service/menu"
	ratingsvc "github.com/kzich/nudining/internal/service/rating"
	"github.com/kzich/nudining/pkg/clients/identity"
	"github.com/kzich/nudining/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	repo, err := mongodb.New(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	menuSvc := menusvc.NewService(repo, baseLogger.Named("svc.menu"))
	ratingSvc := ratingsvc.NewService(repo, repo, baseLogger.Named("svc.rating"))

	var verifier identity.Client
	if cfg.Identity.VerifyURL != "" {
		verifier = identity.NewClient(cfg.Identity)
		baseLogger.Info("identity verification enabled")
	}

	menuHandler := handlers.NewMenuHandler(menuSvc, baseLogger.Named("handlers.menu"))
	ratingHandler := handlers.NewRatingHandler(ratingSvc, baseLogger.Named("handlers.rating"))
	userHandler := handlers.NewUserHandler(ratingSvc, baseLogger.Named("handlers.user"))
	engine := router.New(menuHandler, ratingHandler, userHandler, verifier, baseLogger.Named("router"))

	// The scrape can run inside the server process on a cron schedule, or be
	// left to the standalone scraper binary when no schedule is set.
	if cfg.Scraper.CronSchedule != "" {
		var sheetRepo sheets.Repository
		if cfg.Sheets.SpreadsheetID != "" {
			sheetRepo, err = sheets.NewReportSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
			if err != nil {
				baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
			}
		}

		runner := scraper.NewRunner(repo, repo, sheetRepo, cfg.Scraper, baseLogger.Named("scraper"))
		sched := scheduler.NewScheduler(cfg.Scraper, runner, baseLogger.Named("scheduler"))
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
