package main

import (
	"context"
	"os/signal"
	"syscall"

	"presensi/internal/attendance"
	"presensi/internal/config"
	"presensi/internal/logger"
	"presensi/internal/queue"
	"presensi/internal/store"
)

// Worker consumes scan events from Redis, logs check-ins and reconciles
// hadir flags after scan log deletions.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogPretty).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		log.Fatal().Msg("QUEUE_BACKEND=memory is consumed inside the api process; the worker needs redis")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		log.Warn().Str("addr", cfg.RedisAddr).Msg("redis not reachable yet, will keep retrying")
	}

	consumer := attendance.NewConsumer(attendance.NewRepository(db.Client), log)
	if err := consumer.Run(ctx, queue.NewRedisQueue(rdb.Client, cfg.QueueKey)); err != nil {
		log.Error().Err(err).Msg("worker failed")
	}
}
