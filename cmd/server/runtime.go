package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"ecoledger/internal/events"
	"ecoledger/internal/platform/config"
	"ecoledger/internal/platform/httpserver"
	"ecoledger/internal/platform/kafka"
	kconsumer "ecoledger/internal/platform/kafka/consumer"
	"ecoledger/internal/platform/kafka/producer"
	pmetrics "ecoledger/internal/platform/metrics"
	"ecoledger/internal/platform/postgres"
	"ecoledger/internal/platform/redis"
	"ecoledger/pkg/platform/httputil"
)

// runtime owns the process-wide resources a subcommand opens and the
// goroutines it runs until a shutdown signal arrives.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *sql.DB
	redis   *redis.Client
	kafka   *kgo.Client
	metrics *pmetrics.ConsumerMetrics
	closers []func()
}

// openRuntime connects the backends cfg selects. The returned runtime must be
// closed even when a later step fails.
func openRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger, metrics: pmetrics.NewConsumerMetrics()}

	if cfg.Storage.Backend == config.BackendPostgres || cfg.Storage.IdempotencyBackend == config.BackendPostgres {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return rt, err
		}
		rt.db = db
		rt.closers = append(rt.closers, func() { _ = db.Close() })
	}

	if cfg.Storage.IdempotencyBackend == config.BackendRedis {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return rt, err
		}
		rt.redis = client
		rt.closers = append(rt.closers, func() { _ = client.Close() })
	}

	if cfg.Kafka.Enabled {
		cl, err := kafka.NewClient(cfg.Kafka)
		if err != nil {
			return rt, fmt.Errorf("kafka client: %w", err)
		}
		rt.kafka = cl
		rt.closers = append(rt.closers, cl.Close)
		if cfg.Kafka.CreateTopics {
			if err := kafka.EnsureTopics(ctx, cl, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor, events.AllTopics...); err != nil {
				return rt, fmt.Errorf("ensure topics: %w", err)
			}
		}
	} else {
		logger.WarnContext(ctx, "kafka disabled, events will not be relayed")
	}
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func (rt *runtime) usePostgres() bool {
	return rt.cfg.Storage.Backend == config.BackendPostgres
}

// publisher returns the Kafka publisher, or a no-op one when the relay is off.
func (rt *runtime) publisher() events.Publisher {
	if rt.kafka == nil {
		return events.NoOpPublisher{}
	}
	return events.NewKafkaPublisher(producer.New(rt.kafka), rt.logger, rt.metrics)
}

// consumer builds a group consumer for every topic registered on router. It
// returns nil when Kafka is disabled.
func (rt *runtime) consumer(group string, router *kconsumer.Router) (*kconsumer.Consumer, error) {
	if !rt.cfg.Kafka.Enabled {
		return nil, nil
	}
	c, err := kconsumer.New(rt.cfg.Kafka, group, router.Topics(), router, rt.logger, rt.metrics)
	if err != nil {
		return nil, fmt.Errorf("consumer %s: %w", group, err)
	}
	rt.closers = append(rt.closers, c.Close)
	return c, nil
}

// newRouter returns the shared router with a /ready probe over the opened
// backends.
func (rt *runtime) newRouter() chi.Router {
	r := httpserver.NewRouter(rt.logger)
	r.Get("/ready", rt.handleReady)
	return r
}

func (rt *runtime) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]func(context.Context) error{}
	if rt.db != nil {
		checks["postgres"] = rt.db.PingContext
	}
	if rt.redis != nil {
		checks["redis"] = rt.redis.Health
	}
	if rt.kafka != nil {
		checks["kafka"] = rt.kafka.Ping
	}
	for name, check := range checks {
		if err := check(ctx); err != nil {
			rt.logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "dependency": name})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// worker is a background loop that returns when ctx is cancelled.
type worker func(ctx context.Context) error

// serve runs the HTTP server and workers until SIGINT or SIGTERM, then shuts
// the server down within the configured timeout. The first failure stops
// everything.
func (rt *runtime) serve(ctx context.Context, handler http.Handler, workers ...worker) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.New(rt.cfg.Server.Addr, handler)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rt.logger.InfoContext(gctx, "http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout)
		defer cancel()
		rt.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	for _, w := range workers {
		g.Go(func() error { return w(gctx) })
	}
	return g.Wait()
}

// consumerWorker adapts a consumer to a worker. A nil consumer idles until
// shutdown.
func consumerWorker(c *kconsumer.Consumer) worker {
	return func(ctx context.Context) error {
		if c == nil {
			<-ctx.Done()
			return nil
		}
		return c.Run(ctx)
	}
}

// tickerWorker calls fn every interval until ctx is cancelled. A zero
// interval disables it.
func tickerWorker(interval time.Duration, fn func(ctx context.Context)) worker {
	return func(ctx context.Context) error {
		if interval <= 0 {
			<-ctx.Done()
			return nil
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				fn(ctx)
			}
		}
	}
}
