// cmd/remind runs the reminder scanner. By default it performs a single
// sweep and exits, which suits an external cron entry such as
//
//	0 * * * * /usr/local/bin/remind
//
// With -resident it stays up and schedules sweeps itself. Either way the
// cadence must be at least every 2 hours (2x the due-window tolerance) or
// sessions can slip through their window unreminded.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okulikov/session-enroll/internal/config"
	"github.com/okulikov/session-enroll/internal/database"
	"github.com/okulikov/session-enroll/internal/logger"
	"github.com/okulikov/session-enroll/internal/notify"
	"github.com/okulikov/session-enroll/internal/reminder"
	"github.com/okulikov/session-enroll/internal/repository"
)

func main() {
	resident := flag.Bool("resident", false, "stay running and sweep on the configured cron schedule")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.DB, zlog)
	if err != nil {
		zlog.Fatalw("database connect failed", "error", err)
	}
	defer pool.Close()

	var dispatcher notify.Dispatcher
	if cfg.Notify.Endpoint != "" {
		dispatcher = notify.NewWebhookDispatcher(cfg.Notify, zlog)
	} else {
		dispatcher = &notify.LogDispatcher{Log: zlog}
	}

	scanner := reminder.NewScanner(
		repository.NewSessionRepository(pool),
		repository.NewEnrollmentRepository(pool),
		dispatcher,
		zlog,
		cfg.Reminder.LeadHours,
		cfg.Reminder.ToleranceHours,
	)

	if *resident {
		runner, err := reminder.NewRunner(cfg.Reminder.Schedule, scanner, zlog)
		if err != nil {
			zlog.Fatalw("reminder runner setup failed", "error", err)
		}
		runner.Start()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		runner.Stop()
		return
	}

	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	count, err := scanner.RunOnce(sweepCtx, time.Now().UTC())
	if err != nil {
		zlog.Errorw("reminder sweep failed", "sent_before_failure", count, "error", err)
		os.Exit(1)
	}
	fmt.Printf("sent %d reminders\n", count)
}
