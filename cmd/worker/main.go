// Command worker runs the standalone dispatch pool described in SPEC_FULL
// §6: it consumes the durable queue, drives each job through its channel
// adapter, and runs the stall-recovery sweeper. It never serves HTTP.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/zlog"

	"github.com/mksenin/notifyhub/internal/config"
	"github.com/mksenin/notifyhub/internal/dispatcher"
	"github.com/mksenin/notifyhub/internal/rabbitmq/queue"
	notificationrepo "github.com/mksenin/notifyhub/internal/repository/notification"
	"github.com/mksenin/notifyhub/internal/retrypolicy"
	"github.com/mksenin/notifyhub/internal/wiring"
)

const (
	stallSweepInterval = 30 * time.Second
	stallAfter         = 30 * time.Minute
	healthProbeEvery   = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Retries, cfg.RabbitMQ.Pause)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open channel")
	}

	q, err := queue.New(ch, ch)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to declare notification queue")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	repo := notificationrepo.NewRepository(db)
	adapters, _ := wiring.BuildAdapters(cfg)
	retries := retrypolicy.NewEngine()

	workers := cfg.Workers.Count
	if workers <= 0 {
		workers = dispatcher.DefaultOptions().Workers
	}

	poolOpts := dispatcher.DefaultOptions()
	poolOpts.Workers = workers
	poolOpts.PublishStrategy = cfg.Retry

	pool := dispatcher.New(q, repo, adapters, retries, poolOpts)
	sweeper := dispatcher.NewSweeper(repo, q, stallSweepInterval, stallAfter)

	go pool.Run(ctx)
	go sweeper.Run(ctx)
	go runHealthProbe(ctx, q)

	zlog.Logger.Info().Int("workers", workers).Msg("worker started")

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received, draining in-flight jobs")

	// pool.Run and sweeper.Run both return promptly once ctx is cancelled;
	// give in-flight jobs a moment to finish acking before closing the broker.
	time.Sleep(2 * time.Second)

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close master DB")
	}
	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave", i).Msg("failed to close slave DB")
		}
	}

	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close rabbitmq channel")
	}
	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close rabbitmq connection")
	}
}

// runHealthProbe logs the worker's own health every 30 seconds by
// inspecting the broker connection it depends on, per SPEC_FULL §6.
func runHealthProbe(ctx context.Context, q *queue.Queue) {
	ticker := time.NewTicker(healthProbeEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := q.Inspect()
			if err != nil {
				zlog.Logger.Warn().Err(err).Msg("self-health probe: broker unreachable")
				continue
			}
			if stats.Paused {
				zlog.Logger.Warn().Msg("self-health probe: queue is paused")
				continue
			}
			zlog.Logger.Debug().
				Int("waiting", stats.Waiting).
				Int("consumers", stats.Consumers).
				Msg("self-health probe: ok")
		}
	}
}
