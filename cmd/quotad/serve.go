package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/admin"
	"github.com/KOMKZ/go-yogan-quota/application"
	"github.com/KOMKZ/go-yogan-quota/component"
	"github.com/KOMKZ/go-yogan-quota/kafka"
	"github.com/KOMKZ/go-yogan-quota/middleware"
	"github.com/KOMKZ/go-yogan-quota/quota"
	"github.com/KOMKZ/go-yogan-quota/redis"
	"github.com/KOMKZ/go-yogan-quota/tierstore"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with the admin API and quota-guarded demo routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := opts.loadConfig(cmd.Flags(), map[string]string{
				"port": "api_server.port",
				"host": "api_server.host",
				"mode": "api_server.mode",
			})
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}

			app, _, err := newServer(loader)
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
	cmd.Flags().Int("port", 8080, "listen port")
	cmd.Flags().String("host", "0.0.0.0", "listen host")
	cmd.Flags().String("mode", "release", "gin mode: debug, release or test")
	return cmd
}

// stack components in start order
type stack struct {
	redis     *redis.Component
	tierstore *tierstore.Component
	kafka     *kafka.Component
	quota     *quota.Component
}

func newStack() *stack {
	s := &stack{
		redis:     redis.NewComponent(),
		tierstore: tierstore.NewComponent(),
		kafka:     kafka.NewComponent(),
	}
	s.quota = quota.NewComponent(
		quota.WithRedisProvider(s.redis),
		quota.WithTierLookupFrom(s.tierstore.TierLookup),
		quota.WithViolationSinkFrom(s.kafka.Publisher),
	)
	return s
}

func (s *stack) components() []component.Component {
	return []component.Component{s.redis, s.tierstore, s.kafka, s.quota}
}

// newServer wires the components and registers routes once they are running
func newServer(loader component.ConfigLoader) (*application.Application, *stack, error) {
	app, err := application.New(loader)
	if err != nil {
		return nil, nil, err
	}

	s := newStack()
	app.Register(s.components()...).
		OnReady(func(app *application.Application) error {
			if err := syncTierTable(app.Context(), s); err != nil {
				return err
			}
			return registerRoutes(app, s)
		})
	return app, s, nil
}

// syncTierTable the database copy wins; an empty database is seeded from configuration
func syncTierTable(ctx context.Context, s *stack) error {
	store := s.tierstore.Store()
	if store == nil {
		return nil
	}

	table, err := store.LoadTable(ctx)
	if err != nil {
		return err
	}
	if len(table) == 0 {
		return store.SaveTable(ctx, s.quota.Engine().Resolver().Table())
	}
	if err := s.quota.UpdateTiers(ctx, table); err != nil {
		return fmt.Errorf("apply stored tier table failed: %w", err)
	}
	return nil
}

func registerRoutes(app *application.Application, s *stack) error {
	engine := app.HTTPServer().GetEngine()

	var demo demoConfig
	if err := app.ConfigLoader().Unmarshal("demo", &demo); err != nil {
		return fmt.Errorf("read demo config failed: %w", err)
	}

	middleware.RegisterHealthRoutes(engine, middleware.NewHealthCheckHandler(app.HealthCheckers()...))

	registerDemoRoutes(engine.Group("/api/v1"), s.quota, demo.JWTSecret)

	var opts []admin.Option
	if store := s.tierstore.Store(); store != nil {
		opts = append(opts,
			admin.WithTablePersister(store),
			admin.WithSubscriptions(store, s.tierstore.Lookup().Invalidate))
	}
	admin.RegisterRoutes(engine.Group("/admin"), admin.NewHandler(s.quota, opts...))

	app.Logger().InfoCtx(app.Context(), "Routes registered",
		zap.Int("routes", len(engine.Routes())),
		zap.Bool("quota_enabled", s.quota.Enabled()))
	return nil
}
