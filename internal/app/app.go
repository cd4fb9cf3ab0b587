package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/licensegate/licensegate/internal/audit"
	"github.com/licensegate/licensegate/internal/config"
	"github.com/licensegate/licensegate/internal/db"
	"github.com/licensegate/licensegate/internal/http/api"
	"github.com/licensegate/licensegate/internal/license"
	"github.com/licensegate/licensegate/internal/logging"
	"github.com/licensegate/licensegate/internal/ratelimit"
	"github.com/licensegate/licensegate/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs schema migrations.
func Migrate(_ context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the license validation server.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Logging)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	keyStore := store.NewGormKeyStore(conn)
	recorder := audit.NewGormRecorder(conn)
	clock := license.SystemClock{}

	svc := license.NewService(keyStore, clock, recorder)
	admin := license.NewAdminService(keyStore, clock, recorder)

	var limiter ratelimit.Limiter = ratelimit.Noop{}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimit.PerMinute, time.Minute)
		log.WithField("addr", cfg.Redis.Addr).Info("redis rate limiting enabled")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	api.RegisterRoutes(engine, api.Deps{
		DB:       conn,
		Service:  svc,
		Admin:    admin,
		Recorder: recorder,
		Limiter:  limiter,
		Clock:    clock,
		Config:   cfg,
	})

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("listen", cfg.Listen).Info("license server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	}
}
