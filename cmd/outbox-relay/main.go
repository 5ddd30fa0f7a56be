package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.Env)
	if cfg.StorageDriver != config.StoragePostgres {
		log.Fatalf("outbox-relay needs STORAGE_DRIVER=%s, got %q", config.StoragePostgres, cfg.StorageDriver)
	}

	log.WithFields(logrus.Fields{
		"env":      cfg.Env,
		"interval": cfg.RelayInterval.String(),
		"exchange": cfg.EventsExchange,
	}).Info("outbox-relay starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, log)
	cancelPg()
	if err != nil {
		log.WithError(err).Fatal("postgres connection error")
	}
	defer pool.Close()

	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsExchange)
	if err != nil {
		log.WithError(err).Fatal("rabbitmq connection error")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("error closing rabbitmq publisher")
		}
	}()
	log.Info("connected to RabbitMQ")

	m := metrics.New()
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, m)
	go func() {
		log.WithField("addr", metricsSrv.Addr).Info("metrics listener started")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics listener error")
			stop()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("metrics listener shutdown failed")
		}
	}()

	relay := events.NewRelay(appointment.NewPgRepository(pool), publisher, cfg.RelayBatchSize, m, log)

	// drain whatever piled up while the relay was down
	if n, err := relay.RunOnce(rootCtx); err != nil {
		log.WithError(err).WithField("published", n).Error("initial outbox round failed")
	}

	relay.Run(rootCtx, cfg.RelayInterval)
}
