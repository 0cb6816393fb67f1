package main

import (
	"github.com/spf13/cobra"

	"ecoledger/internal/movement/adapters"
	"ecoledger/internal/movement/handler"
	"ecoledger/internal/movement/idempotency"
	"ecoledger/internal/movement/metrics"
	"ecoledger/internal/movement/service"
	"ecoledger/internal/movement/store"
	"ecoledger/internal/platform/config"
)

func newMovementCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "movement",
		Short: "Serve movement registration and publish movement-created events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, a.cfg, a.logger)
			defer rt.Close()
			if err != nil {
				return err
			}

			m := metrics.New()
			coordinator := idempotency.NewCoordinator(idempotencyStore(rt),
				idempotency.WithLogger(a.logger),
				idempotency.WithMetrics(m),
			)

			var movements service.Store = store.NewInMemory()
			if rt.usePostgres() {
				movements = store.NewPostgres(rt.db)
			}

			var approver service.Approver = adapters.AllowAll{}
			if a.cfg.ProducerApproval.Enabled {
				approver = adapters.NewHTTPApprover(a.cfg.ProducerApproval, a.logger)
			}

			svc := service.New(movements, approver, coordinator, a.cfg.AttachmentPolicy,
				service.WithLogger(a.logger),
				service.WithMetrics(m),
				service.WithPublisher(rt.publisher()),
			)

			router := rt.newRouter()
			handler.New(svc, a.logger).Register(router)
			return rt.serve(ctx, router)
		},
	}
}

func idempotencyStore(rt *runtime) idempotency.Store {
	switch rt.cfg.Storage.IdempotencyBackend {
	case config.BackendPostgres:
		return idempotency.NewPostgresStore(rt.db)
	case config.BackendRedis:
		return idempotency.NewRedisStore(rt.redis, rt.cfg.Redis.UnresolvedTTL)
	default:
		return idempotency.NewInMemoryStore()
	}
}
