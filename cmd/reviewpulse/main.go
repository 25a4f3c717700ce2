package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"ReviewPulse/internal/app"
	"ReviewPulse/internal/config"
	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/logging"
)

func main() {
	daemon := flag.Bool("daemon", false, "run on the configured schedule instead of once")
	week := flag.String("week", "", "classify a single stored week (Monday date, YYYY-MM-DD)")
	force := flag.Bool("force", false, "reclassify the week even if themes are already stored")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = application.Close() }()

	switch {
	case *week != "":
		err = application.ClassifyWeek(ctx, domain.WeekKey(*week), *force)
	case *daemon:
		err = application.RunScheduled(ctx)
	default:
		err = application.Run(ctx)
	}
	if err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
