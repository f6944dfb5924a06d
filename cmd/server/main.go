/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the time tracker server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file, .env, environment)
  2. Build the logger
  3. Initialize SQLite store and the balance cache (Redis or memory)
  4. Wire engine, notifier, handler and router
  5. Start the notification scheduler when enabled
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (default: ./config/config.yaml or
           ./config.yaml when present)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Wait for queued mail, close cache and database
  5. Exit

EXAMPLES:
  # Run with defaults
  ./server

  # Run in memory on another port
  TIMETRACKER_DB_PATH=":memory:" TIMETRACKER_SERVER_PORT=3000 ./server

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/warp/timetracker/api"
	"github.com/warp/timetracker/config"
	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/logger"
	"github.com/warp/timetracker/mail"
	"github.com/warp/timetracker/store/memory"
	"github.com/warp/timetracker/store/redis"
	"github.com/warp/timetracker/store/sqlite"
	"github.com/warp/timetracker/tracker"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	var cache generic.Cache = memory.NewCache()
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log.Named("redis"))
		if err != nil {
			return err
		}
		defer rc.Close()
		cache = rc
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	overrides, err := cfg.Overrides()
	if err != nil {
		return err
	}
	engine := tracker.NewEngine(store,
		tracker.WithCache(cache),
		tracker.WithOverrides(overrides),
		tracker.WithZeroingMarkets(cfg.Tracker.ZeroingMarkets...),
		tracker.WithWorkingDays(cfg.Tracker.WorkingDays),
		tracker.WithLogger(log.Named("engine")),
		tracker.WithMetrics(tracker.NewMetrics(reg)),
	)

	var sender mail.Sender = mail.NewLogSender(log.Named("mail"))
	if cfg.Mail.SMTPHost != "" {
		sender = mail.NewSMTPSender(cfg.SMTP())
	}
	outbox := mail.NewAsyncSender(sender, log.Named("mail"), cfg.Mail.FailSilently)
	defer outbox.Wait()

	notifier := tracker.NewNotifier(engine, tracker.NewResolver(store, store), outbox, cfg.NotifyConfig(), log.Named("notify"))

	// Initialize handler and router
	handler := api.NewHandler(store, engine, notifier, log.Named("api"))
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.Server.CORS.AllowOrigins,
		Gatherer:       reg,
	})

	scheduler := api.NewNotificationScheduler(store, notifier, log)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.DB.Path),
			zap.Bool("redis", cfg.Redis.Enabled),
			zap.Bool("scheduler", cfg.Scheduler.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
