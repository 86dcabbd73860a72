package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/household-ledger/internal/config"
	"github.com/dvloznov/household-ledger/internal/domain"
	"github.com/dvloznov/household-ledger/internal/jobs"
	"github.com/dvloznov/household-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/household-ledger/internal/ledger"
	"github.com/dvloznov/household-ledger/internal/logger"
)

// UserLister is the part of the ledger the sweep needs.
type UserLister interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

var _ UserLister = (*ledger.Ledger)(nil)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to the YAML config file (or set LEDGER_CONFIG env)")
		once       = flag.Bool("once", false, "Run a single sweep and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	store, err := config.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to open store")
	}
	defer store.Close()

	l := ledger.New(store)

	// In production this could be replaced with Cloud Tasks or Pub/Sub.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.BufferSize, jobStore,
		inmemory.WithWorkers(cfg.Jobs.Workers),
		inmemory.WithBackoff(cfg.Jobs.Backoff),
	)

	log.Info().
		Str("backend", cfg.Backend).
		Dur("interval", cfg.ReconcileInterval).
		Msg("Starting worker service")

	if err := jobQueue.Start(ctx, jobs.ReconcileHandler(l)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	sweep := func() {
		n, err := enqueueAll(ctx, l, jobQueue)
		if err != nil {
			log.Error().Err(err).Msg("Sweep failed")
			return
		}
		log.Info().Int("owners", n).Msg("Reconcile sweep enqueued")
	}

	sweep()
	if *once {
		shutdown(log, jobQueue)
		return
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			sweep()
		case <-quit:
			break loop
		}
	}

	log.Info().Msg("Shutting down worker service...")
	shutdown(log, jobQueue)
}

// enqueueAll publishes one reconcile job per user and returns how many it
// published.
func enqueueAll(ctx context.Context, users UserLister, pub jobs.Publisher) (int, error) {
	list, err := users.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("enqueueAll: list users: %w", err)
	}
	for i, u := range list {
		if err := pub.PublishReconcile(ctx, &jobs.ReconcileJob{OwnerID: u.ID}); err != nil {
			return i, fmt.Errorf("enqueueAll: owner %d: %w", u.ID, err)
		}
	}
	return len(list), nil
}

// shutdown waits for queued and in-flight jobs, up to a deadline.
func shutdown(log zerolog.Logger, q *inmemory.Queue) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := q.Drain(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error draining job queue")
	}
	if err := q.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	log.Info().Msg("Worker service exited")
}
