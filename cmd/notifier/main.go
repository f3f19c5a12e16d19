// Command notifier runs the HTTP control plane: submission, status,
// per-user preferences, queue administration, analytics, and the
// synchronous direct-send channel endpoints described in SPEC_FULL §6.
// Dispatch itself runs in cmd/worker; this process never consumes the
// queue.
package main

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"

	"github.com/mksenin/notifyhub/internal/admin"
	adminhandler "github.com/mksenin/notifyhub/internal/api/handlers/admin"
	analyticshandler "github.com/mksenin/notifyhub/internal/api/handlers/analytics"
	channelhandler "github.com/mksenin/notifyhub/internal/api/handlers/channel"
	notificationhandler "github.com/mksenin/notifyhub/internal/api/handlers/notification"
	userhandler "github.com/mksenin/notifyhub/internal/api/handlers/user"
	"github.com/mksenin/notifyhub/internal/api/router"
	"github.com/mksenin/notifyhub/internal/api/server"
	"github.com/mksenin/notifyhub/internal/analytics"
	"github.com/mksenin/notifyhub/internal/cache"
	"github.com/mksenin/notifyhub/internal/config"
	"github.com/mksenin/notifyhub/internal/migrate"
	"github.com/mksenin/notifyhub/internal/rabbitmq/queue"
	notificationrepo "github.com/mksenin/notifyhub/internal/repository/notification"
	notificationlogrepo "github.com/mksenin/notifyhub/internal/repository/notificationlog"
	userrepo "github.com/mksenin/notifyhub/internal/repository/user"
	notificationsvc "github.com/mksenin/notifyhub/internal/service/notification"
	usersvc "github.com/mksenin/notifyhub/internal/service/user"
	"github.com/mksenin/notifyhub/internal/wiring"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

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

	zlog.Logger.Info().Msgf("db url: %s", cfg.Database.Master.DSN())
	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := migrate.Up(db.Master); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to apply migrations")
	}

	notificationRepo := notificationrepo.NewRepository(db)
	notificationLogRepo := notificationlogrepo.NewRepository(db)
	userRepo := userrepo.NewRepository(db)

	dbNum, err := strconv.Atoi(cfg.Redis.Database)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to parse redis database")
	}

	zlog.Logger.Info().Msgf("redis config: %s, %d", cfg.Redis.Address, dbNum)
	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, dbNum)
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	statusCache := cache.NewStatusCache(rdb, cfg.Retry)

	adapters, pushAdapter := wiring.BuildAdapters(cfg)

	notificationService := notificationsvc.NewService(notificationRepo, userRepo, q, statusCache, cfg.Retry)
	userService := usersvc.NewService(userRepo)
	adminService := admin.NewService(q, adapters)
	analyticsService := analytics.NewService(notificationRepo, notificationLogRepo)

	handlers := router.Handlers{
		Notification: notificationhandler.NewHandler(notificationService, val),
		User:         userhandler.NewHandler(userService, val),
		Admin:        adminhandler.NewHandler(adminService, cfg.Retry),
		Analytics:    analyticshandler.NewHandler(analyticsService),
		Channel:      channelhandler.NewHandler(adapters, pushAdapter),
	}

	r := router.New(handlers, cfg.Server.FrontendURL)
	s := server.New(cfg.Server.HTTPPort, r)

	go func() {
		if err := s.ListenAndServe(); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

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
