package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.Env)
	log.WithFields(logrus.Fields{
		"env":     cfg.Env,
		"port":    cfg.HTTPPort,
		"storage": cfg.StorageDriver,
	}).Info("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		appointments appointment.Repository
		directory    appointment.Directory
		events       appointment.EventStore
		health       []api.Dependency
	)

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool := connectPostgres(rootCtx, cfg, log)
		defer pool.Close()

		repo := appointment.NewPgRepository(pool)
		appointments, directory, events = repo, repo, repo
		health = append(health, api.Dependency{Name: "postgres", Pinger: pool, Critical: true})
	default:
		log.Warn("using in-memory storage, data is lost on restart")
		repo := appointment.NewMemoryRepository()
		appointments, directory, events = repo, repo, repo
	}

	var locker redisclient.Locker = redisclient.NopLocker{}
	if cfg.RedisEnabled {
		redisCtx, cancelRedis := context.WithTimeout(rootCtx, 5*time.Second)
		rdb, err := redisclient.NewRedisClient(redisCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		cancelRedis()
		if err != nil {
			log.WithError(err).Fatal("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.WithError(err).Warn("error closing redis")
			}
		}()
		log.WithField("addr", cfg.RedisAddr).Info("connected to Redis")

		locker = redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
		health = append(health, api.Dependency{Name: "redis", Pinger: api.RedisPinger{Client: rdb}})
	}

	if cfg.DirectoryCacheSize > 0 {
		cached, err := appointment.NewCachedDirectory(directory, cfg.DirectoryCacheSize)
		if err != nil {
			log.WithError(err).Fatal("directory cache error")
		}
		directory = cached
	}

	m := metrics.New()
	policy := scheduling.NewPolicy(appointments, cfg.OpeningHour, cfg.ClosingHour,
		scheduling.WithLocation(cfg.ClinicLocation()))

	svc := appointment.NewService(appointment.Deps{
		Appointments: appointments,
		Directory:    directory,
		Events:       events,
		Policy:       policy,
		Locker:       locker,
		Clock:        scheduling.RealClock{},
		Metrics:      m,
		Logger:       log,
	})

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		Issuer:  auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Metrics: m,
		Logger:  log,
		Health:  health,
		Env:     cfg.Env,
		Version: cfg.Version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func connectPostgres(ctx context.Context, cfg config.Config, log logrus.FieldLogger) *pgxpool.Pool {
	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, log)
	if err != nil {
		log.WithError(err).Fatal("postgres connection error")
	}

	if err := db.Migrate(pgCtx, pool); err != nil {
		pool.Close()
		log.WithError(err).Fatal("schema migration error")
	}
	return pool
}
