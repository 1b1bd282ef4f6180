package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jasonptoups/truckee-calendar/config"
	"github.com/jasonptoups/truckee-calendar/internal/bot"
	"github.com/jasonptoups/truckee-calendar/internal/clients/ics"
	"github.com/jasonptoups/truckee-calendar/internal/domain"
	"github.com/jasonptoups/truckee-calendar/internal/scheduler"
	"github.com/jasonptoups/truckee-calendar/internal/server"
	"github.com/jasonptoups/truckee-calendar/internal/service"
	"github.com/jasonptoups/truckee-calendar/internal/storage"
)

func main() {
	os.Exit(run(os.Stdout, os.Stderr))
}

// run merges the configured feeds once, or keeps doing so when a schedule or
// listen address is configured, and returns the process exit code.
func run(stdout, stderr io.Writer) (code int) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	status := log.New(stdout, "", 0)
	errs := log.New(stderr, "", 0)

	defer func() {
		if r := recover(); r != nil {
			errs.Printf("FATAL ERROR: %v", r)
			code = 1
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		errs.Printf("Failed to load config: %v", err)
		return 1
	}

	// Validate
	if err := domain.ValidateFeeds(cfg.Feeds); err != nil {
		printRemediation(status, errs, err)
		return 1
	}
	if cfg.Schedule != "" {
		if err := scheduler.Validate(cfg.Schedule); err != nil {
			errs.Printf("Invalid SCHEDULE: %v", err)
			return 1
		}
	}

	svc := service.NewMergeService(ics.NewClient(cfg.FetchTimeout), service.MergeOptions{
		OutputPath:   cfg.OutputPath,
		ProductID:    cfg.ProductID,
		CalendarName: cfg.CalendarName,
		Timezone:     cfg.Timezone.String(),
		SourceName:   cfg.SourceName,
	}, status, errs)

	var store *storage.Storage
	if cfg.DatabasePath != "" {
		store, err = storage.New(cfg.DatabasePath)
		if err != nil {
			errs.Printf("Failed to init storage: %v", err)
			return 1
		}
		defer store.Close()
		svc.SetRecorder(store)
	}

	if cfg.NotificationsEnabled() {
		tgBot, err := bot.New(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			errs.Printf("Failed to init bot, notifications disabled: %v", err)
		} else {
			if store != nil {
				tgBot.SetHistory(store)
			}
			svc.SetNotifier(tgBot)
		}
	}

	// Run + Report
	mergeOnce := func(ctx context.Context) error {
		report, err := svc.Run(ctx, cfg.Feeds)
		if err != nil {
			return err
		}
		svc.PrintReport(report)
		return nil
	}

	if !cfg.LongRunning() {
		if err := mergeOnce(context.Background()); err != nil {
			errs.Printf("FATAL ERROR: %v", err)
			return 1
		}
		return 0
	}

	var runs server.RunLister
	if store != nil {
		runs = store
	}
	return serve(cfg, mergeOnce, runs)
}

// serve keeps the calendar up to date and published until SIGINT or SIGTERM
func serve(cfg *config.Config, mergeOnce scheduler.RunFunc, runs server.RunLister) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var srv *server.Server
	if cfg.ServeAddr != "" {
		srv = server.New(cfg.ServeAddr, cfg.OutputPath, runs)
		if err := srv.Start(); err != nil {
			log.Printf("Failed to start server: %v", err)
			return 1
		}
	}

	var sched *scheduler.Scheduler
	if cfg.Schedule != "" {
		sched = scheduler.New(cfg.Schedule, cfg.Timezone, mergeOnce)
		go func() {
			if err := sched.Start(ctx); err != nil {
				log.Printf("Scheduler error: %v", err)
			}
		}()
	} else if err := mergeOnce(ctx); err != nil {
		log.Printf("Merge failed, serving previous output: %v", err)
	}

	log.Println("Calendar merger started")

	<-sigCh

	log.Println("Shutting down...")

	// a merge in progress completes before the context is cancelled
	if sched != nil {
		sched.Stop()
	}
	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			log.Printf("Error stopping server: %v", err)
		}
	}

	log.Println("Calendar merger stopped")
	return 0
}

func printRemediation(status, errs *log.Logger, err error) {
	if errors.Is(err, domain.ErrNoFeeds) {
		errs.Println("ERROR: No calendar URLs configured!")
	} else {
		errs.Printf("ERROR: %v", err)
	}
	status.Println()
	status.Println("Please add your calendar URLs to a YAML file and point FEEDS_FILE at it:")
	status.Println()
	status.Println("  feeds:")
	status.Println("    - https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=14&feed=calendar")
	status.Println()
	status.Println("To get the URLs:")
	status.Println("1. Go to https://www.townoftruckee.gov/Calendar.aspx")
	status.Println("2. Right-click each calendar subscription link")
	status.Println("3. Select 'Copy Link Address'")
	status.Println("4. Add each URL to the feeds list")
}
