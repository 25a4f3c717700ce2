package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"ReviewPulse/internal/batch"
	"ReviewPulse/internal/classify"
	"ReviewPulse/internal/config"
	"ReviewPulse/internal/dedup"
	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/infrastructure/export"
	"ReviewPulse/internal/infrastructure/llm"
	"ReviewPulse/internal/infrastructure/scheduler"
	"ReviewPulse/internal/infrastructure/storage"
	"ReviewPulse/internal/logging"
	"ReviewPulse/internal/normalize"
	"ReviewPulse/internal/ports"
	"ReviewPulse/internal/source"
	"ReviewPulse/internal/usecase"
	"ReviewPulse/internal/validate"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	db        *sql.DB
	logger    *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	weeks, err := storage.NewFileWeekStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("week store: %w", err)
	}

	var (
		fingerprints ports.FingerprintStore
		db           *sql.DB
	)
	if dsn := cfg.Database.FingerprintDSN; dsn != "" {
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open fingerprint database: %w", err)
		}
		fingerprints = storage.NewPostgresFingerprintStore(db, cfg.Dedup.RetentionWeeks)
	} else {
		fingerprints = storage.NewFileFingerprintStore(cfg.Dedup.CacheFile, cfg.Dedup.RetentionWeeks)
	}

	validator := validate.New(
		normalize.New(),
		validate.NewLinguaDetector(),
		validate.Config{
			MinLength:            cfg.Validation.MinLength,
			MinEnglishConfidence: cfg.Validation.MinEnglishConfidence,
		},
		baseLogger.With("component", "validate"),
	)

	deduplicator := dedup.New(fingerprints, dedup.Config{
		Threshold:   cfg.Dedup.Threshold,
		ShingleSize: cfg.Dedup.ShingleSize,
		WindowWeeks: cfg.Dedup.WindowWeeks,
	}, baseLogger.With("component", "dedup"))

	completer := llm.NewOpenAIClassifier(llm.Config{
		APIKey:   cfg.Classifier.APIKey,
		Model:    cfg.Classifier.Model,
		Endpoint: cfg.Classifier.Endpoint,
	})

	classifier := classify.New(
		classify.Deps{
			Completer: completer,
			Logger:    baseLogger.With("component", "classify"),
		},
		classify.Config{
			MaxAttempts:       cfg.Classifier.MaxAttempts,
			BackoffBase:       cfg.Classifier.BackoffBaseSeconds,
			RateLimitCooldown: cfg.Classifier.RateLimitCooldown(),
			Workers:           cfg.Classifier.Workers,
			RequestsPerSecond: cfg.Classifier.RequestsPerSecond,
			Burst:             cfg.Classifier.Burst,
		},
	)

	registry := source.NewRegistry()
	for _, exp := range cfg.Exports {
		platform := domain.Platform(exp.Platform)
		if !platform.Valid() {
			return nil, fmt.Errorf("unknown export platform %q", exp.Platform)
		}
		registry.Register(export.NewFileSource(platform, exp.Dir))
	}

	planner := batch.NewPlanner(batch.Config{
		MaxReviews: cfg.Batching.MaxReviews,
		MaxTokens:  cfg.Batching.MaxTokens,
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:       source.NewMultiSource(registry, baseLogger.With("component", "source")),
		Validator:    validator,
		Deduplicator: deduplicator,
		Planner:      planner,
		Classifier:   classifier,
		Weeks:        weeks,
		Logger:       baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewTickerScheduler(cfg.Scheduler.Interval())
	sched := usecase.NewScheduler(driver, pipeline, cfg.Window.DaysBack, baseLogger.With("component", "scheduler"))

	return &Application{
		cfg:       cfg,
		pipeline:  pipeline,
		scheduler: sched,
		db:        db,
		logger:    baseLogger,
	}, nil
}

// Run performs one pipeline execution over the configured window.
func (a *Application) Run(ctx context.Context) error {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -a.cfg.Window.DaysBack)
	result, err := a.pipeline.ProcessWindow(ctx, from, now)
	if err != nil {
		return err
	}
	a.logger.Info("run complete",
		"fetched", result.Fetched,
		"duplicates", result.Duplicates,
		"weeks", len(result.Weeks))
	return nil
}

// RunScheduled starts the recurring driver and blocks until the context ends.
func (a *Application) RunScheduled(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return a.scheduler.Stop(context.Background())
}

// ClassifyWeek reruns classification for one stored week.
func (a *Application) ClassifyWeek(ctx context.Context, week domain.WeekKey, force bool) error {
	bucket, err := a.pipeline.ClassifyWeek(ctx, week, force)
	if err != nil {
		return err
	}
	a.logger.Info("week classified", "week", bucket.WeekKey, "reviews", bucket.ReviewCount)
	return nil
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
