package main

import (
	"github.com/spf13/cobra"

	"ecoledger/internal/audit/consumer"
	"ecoledger/internal/audit/handler"
	"ecoledger/internal/audit/metrics"
	"ecoledger/internal/audit/rules"
	"ecoledger/internal/audit/service"
	"ecoledger/internal/audit/store"
	"ecoledger/internal/events"
	kconsumer "ecoledger/internal/platform/kafka/consumer"
)

func newAuditCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Audit movement-created events and serve audit records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, a.cfg, a.logger)
			defer rt.Close()
			if err != nil {
				return err
			}

			m := metrics.New()
			engine := rules.NewEngineFromConfig(a.cfg.Rules,
				rules.WithLogger(a.logger),
				rules.WithMetrics(m),
			)

			var records service.Store = store.NewInMemory()
			if rt.usePostgres() {
				records = store.NewPostgres(rt.db)
			}
			svc := service.New(records, engine,
				service.WithLogger(a.logger),
				service.WithMetrics(m),
				service.WithPublisher(rt.publisher()),
			)

			topics := kconsumer.NewRouter(a.logger)
			topics.Register(events.TopicMovementCreated, consumer.NewMovementCreatedHandler(svc, a.logger))
			c, err := rt.consumer(consumer.GroupID, topics)
			if err != nil {
				return err
			}

			router := rt.newRouter()
			handler.New(svc, a.logger).Register(router)
			a.logger.InfoContext(ctx, "audit engine ready", "rule_version", engine.Version())
			return rt.serve(ctx, router, consumerWorker(c))
		},
	}
}
