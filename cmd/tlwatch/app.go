package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"tlwatch/internal/api/handler"
	"tlwatch/internal/changes"
	"tlwatch/internal/changes/publisher"
	"tlwatch/internal/fetch"
	"tlwatch/internal/ingest"
	"tlwatch/internal/ingest/lock"
	"tlwatch/internal/ingest/metrics"
	"tlwatch/internal/platform/config"
	"tlwatch/internal/platform/database"
	"tlwatch/internal/platform/kafka"
	platformredis "tlwatch/internal/platform/redis"
	"tlwatch/internal/quality"
	"tlwatch/internal/snapshot/store"
)

// app owns the connections shared by the commands.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	store    *store.SQLStore
	redis    *platformredis.Client
	kafka    *kgo.Client
	registry *prometheus.Registry
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db
	if cfg.Database.Driver == config.DriverPostgres {
		a.store = store.NewPostgresStore(db)
	} else {
		a.store = store.NewSQLiteStore(db)
	}
	if cfg.Database.ApplySchema {
		if err := a.store.ApplySchema(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	if a.redis, err = platformredis.New(ctx, cfg.Redis); err != nil {
		a.close()
		return nil, err
	}
	if a.kafka, err = kafka.NewClient(ctx, cfg.Kafka); err != nil {
		a.close()
		return nil, err
	}
	logger.InfoContext(ctx, "dependencies ready",
		"db_driver", cfg.Database.Driver,
		"redis", a.redis != nil,
		"kafka", a.kafka != nil,
	)
	return a, nil
}

func (a *app) close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// ingestService wires one cycle: fetcher, rule engine, detector, and the
// optional Redis lock and Kafka publisher.
func (a *app) ingestService(ctx context.Context) (*ingest.Service, error) {
	fetcher, err := fetch.New(a.cfg.Fetch.RawDir,
		fetch.WithHTTPClient(fetch.NewHTTPClient(a.cfg.Fetch.Timeout)),
		fetch.WithRetry(a.cfg.Fetch.MaxRetries, a.cfg.Fetch.Backoff, a.cfg.Fetch.MaxBackoff),
		fetch.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	engine, err := quality.New(a.store, quality.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	detector, err := changes.New(a.store, changes.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	opts := []ingest.Option{
		ingest.WithLogger(a.logger),
		ingest.WithMetrics(metrics.NewWithRegisterer(a.registry)),
		ingest.WithConcurrency(a.cfg.Fetch.Concurrency),
	}
	if a.redis != nil {
		l, err := lock.NewRedisLock(a.redis.Client, lock.DefaultKey, a.cfg.Redis.LockTTL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ingest.WithLock(l))
	}
	if a.kafka != nil {
		if a.cfg.Kafka.EnsureTopic {
			admin := kadm.NewClient(a.kafka)
			if err := publisher.EnsureTopic(ctx, admin, a.cfg.Kafka.Topic, a.cfg.Kafka.Partitions, -1); err != nil {
				return nil, err
			}
		}
		pub, err := publisher.New(a.kafka, a.cfg.Kafka.Topic, publisher.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		opts = append(opts, ingest.WithPublisher(pub))
	}

	return ingest.New(a.store, fetcher, engine, detector, a.cfg.Fetch.LOTLURL, a.cfg.Countries, opts...)
}

func (a *app) healthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"database": a.db.PingContext,
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}
	if a.kafka != nil {
		checks["kafka"] = a.kafka.Ping
	}
	return checks
}
