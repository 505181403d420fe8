package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"presensi/internal/attendance"
	"presensi/internal/chart"
	"presensi/internal/cloudinary"
	"presensi/internal/config"
	"presensi/internal/handler"
	"presensi/internal/httpmiddleware"
	"presensi/internal/logger"
	"presensi/internal/qr"
	"presensi/internal/queue"
	"presensi/internal/registrant"
	"presensi/internal/store"
)

// stores groups the persistence each service depends on.
type stores struct {
	registrants registrant.Store
	scans       attendance.Store
	counts      chart.Counter
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func run(cfg config.App, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.HealthCheck{}

	var st stores
	switch cfg.StoreBackend {
	case "memory":
		log.Warn().Msg("using in-memory store, data is lost on restart")
		mem := store.NewMemory()
		st = stores{registrants: mem, scans: mem, counts: mem}
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		regRepo := registrant.NewRepository(db.Client)
		st = stores{registrants: regRepo, scans: attendance.NewRepository(db.Client), counts: regRepo}
		checks["db"] = db.Healthy
	}

	var (
		q     queue.Queue
		guard attendance.Guard
	)
	switch cfg.QueueBackend {
	case "memory":
		q = queue.NewInMemory(256)
		guard = attendance.NewMemoryGuard()
	default:
		rdb := store.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		q = queue.NewRedisQueue(rdb.Client, cfg.QueueKey)
		guard = attendance.NewRedisGuard(rdb.Client, cfg.ScanLockTTL)
		checks["redis"] = rdb.Healthy
	}

	// Publisher stays a nil interface when Cloudinary is not configured.
	var publisher registrant.Publisher
	if cfg.CloudinaryConfigured() {
		publisher = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Info().Str("cloud", cfg.CloudinaryCloudName).Msg("cloudinary configured")
	} else {
		log.Info().Msg("cloudinary not configured, QR publishing disabled")
	}

	reg := registrant.NewService(st.registrants, qr.New(cfg.QRSize, nil), publisher, cfg.PageSize, log.With().Str("component", "registrant").Logger())
	att := attendance.NewService(st.scans, guard, q, cfg.ScanResetDelay, cfg.PageSize, log.With().Str("component", "attendance").Logger())
	h := handler.New(reg, att, chart.NewAggregator(st.counts), checks, log)

	// With an in-process queue nobody else can drain it.
	if cfg.QueueBackend == "memory" {
		consumer := attendance.NewConsumer(st.scans, log.With().Str("component", "consumer").Logger())
		go func() {
			if err := consumer.Run(ctx, q); err != nil {
				log.Error().Err(err).Msg("consumer stopped")
			}
		}()
	}

	r := gin.New()
	r.Use(httpmiddleware.Recovery(log))
	r.Use(httpmiddleware.RequestLogger(log, "/healthz", "/metrics"))
	r.Use(cors.New(corsConfig(cfg.CORSAllowOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r, httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreBackend).Str("queue", cfg.QueueBackend).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
