package main

import (
	"context"

	"github.com/spf13/cobra"

	"ecoledger/internal/certification/consumer"
	"ecoledger/internal/certification/handler"
	"ecoledger/internal/certification/metrics"
	"ecoledger/internal/certification/service"
	"ecoledger/internal/certification/store"
	"ecoledger/internal/events"
	kconsumer "ecoledger/internal/platform/kafka/consumer"
)

func newCertificationCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "certification",
		Short: "Maintain green seals from audit-completed events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, a.cfg, a.logger)
			defer rt.Close()
			if err != nil {
				return err
			}

			var (
				seals service.Store      = store.NewInMemory()
				tx    service.Transactor = service.NewShardedTransactor()
			)
			if rt.usePostgres() {
				seals = store.NewPostgres(rt.db)
				tx = service.NewSQLTransactor(rt.db)
			}
			svc := service.New(seals, tx, a.cfg.Seal,
				service.WithLogger(a.logger),
				service.WithMetrics(metrics.New()),
				service.WithPublisher(rt.publisher()),
			)

			topics := kconsumer.NewRouter(a.logger)
			topics.Register(events.TopicAuditCompleted, consumer.NewAuditCompletedHandler(svc, a.logger))
			c, err := rt.consumer(consumer.GroupID, topics)
			if err != nil {
				return err
			}

			sweep := func(ctx context.Context) {
				n, err := svc.ExpireDue(ctx, a.cfg.Seal.SweepBatch)
				if err != nil {
					a.logger.ErrorContext(ctx, "seal expiry sweep failed", "error", err)
					return
				}
				if n > 0 {
					a.logger.InfoContext(ctx, "expired seals recalculated", "count", n)
				}
			}

			router := rt.newRouter()
			handler.New(svc, a.logger).Register(router)
			return rt.serve(ctx, router,
				consumerWorker(c),
				tickerWorker(a.cfg.Seal.SweepInterval, sweep),
			)
		},
	}
}
