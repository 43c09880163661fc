package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/config"
	"github.com/kzich/nudining/internal/scraper"
)

// Scheduler triggers the daily menu scrape. One schedule, one job; the
// operational assumption is at most one scrape run at a time.
type Scheduler struct {
	cron   *cron.Cron
	runner *scraper.Runner
	cfg    config.ScraperConfig
	logger *zap.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg config.ScraperConfig, runner *scraper.Runner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, falling back to local", zap.String("timezone", cfg.Timezone), zap.Error(err))
		location = time.Local
	}

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(location)),
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}
}

// Start registers the scrape job and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.CronSchedule))

	_, err := s.cron.AddFunc(s.cfg.CronSchedule, s.runScrape)
	if err != nil {
		s.logger.Error("failed to schedule scrape job", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) runScrape() {
	s.logger.Info("starting scheduled scrape")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := s.runner.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled scrape failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled scrape finished")
}
