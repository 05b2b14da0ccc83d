package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/config"
	"github.com/aretw0/waypoint/pkg/adapters/postgres"
	"github.com/aretw0/waypoint/pkg/adapters/process"
	redisAdapter "github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/adapters/webhook"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
)

// app is a fully wired engine plus the resources it holds.
type app struct {
	engine   *waypoint.Engine
	registry *prometheus.Registry
	logger   *slog.Logger
	closers  []func()
}

func (a *app) Close() {
	if a.engine != nil {
		a.engine.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp connects the configured store, registers metrics and imports dir when set.
func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger, dir string, hooks ...domain.LifecycleHooks) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	a := &app{registry: reg, logger: logger}
	opts := []waypoint.Option{
		waypoint.WithLogger(logger),
		waypoint.WithDefaultTenant(cfg.DefaultTenant),
		waypoint.WithActionTimeout(cfg.ActionTimeout),
		waypoint.WithLifecycleHooks(metrics.Hooks()),
		waypoint.WithLifecycleHooks(observability.LoggingHooks(logger)),
		waypoint.WithPIIMasking(cfg.PIIPatterns...),
		waypoint.WithWebhookOptions(
			webhook.WithSigningSecret(cfg.Webhook.SigningSecret),
			webhook.WithMaxRetries(cfg.Webhook.MaxRetries),
			webhook.WithHTTPClient(&http.Client{Timeout: cfg.Webhook.Timeout}),
			webhook.WithLogger(logger),
		),
	}
	for _, h := range hooks {
		opts = append(opts, waypoint.WithLifecycleHooks(h))
	}
	if cfg.SyncEntryActions {
		opts = append(opts, waypoint.WithSyncEntryActions())
	}
	if !cfg.CacheEnabled {
		opts = append(opts, waypoint.WithoutCache())
	} else if ttl := cfg.EffectiveCacheTTL(); ttl > 0 {
		opts = append(opts, waypoint.WithCacheTTL(ttl))
	}

	if cfg.ProcessCommands != "" {
		commands, err := process.LoadCommands(cfg.ProcessCommands)
		if err != nil {
			return nil, err
		}
		opts = append(opts, waypoint.WithExecutor(process.ActionType, process.NewExecutor(
			process.WithCommands(commands),
			process.WithLogger(logger),
		)))
		logger.Info("process actions enabled", "commands", len(commands))
	}

	storeOpts, err := a.connectStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	opts = append(opts, storeOpts...)

	eng, err := waypoint.New("", opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = eng

	if dir != "" {
		n, err := eng.ImportDir(ctx, dir)
		if err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("lifecycle definitions loaded", "dir", dir, "count", n)
	}
	return a, nil
}

func (a *app) connectStore(ctx context.Context, cfg config.Config) ([]waypoint.Option, error) {
	switch cfg.Store {
	case config.StoreRedis:
		redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := goredis.NewClient(redisOpts)
		a.closers = append(a.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.logger.Info("using redis store", "addr", redisOpts.Addr, "prefix", cfg.Redis.Prefix)
		return []waypoint.Option{
			waypoint.WithConfigRepository(redisAdapter.NewRepository(client, cfg.Redis.Prefix)),
			waypoint.WithStatusStore(redisAdapter.NewFromClient(client, redisAdapter.WithPrefix(cfg.Redis.Prefix))),
			waypoint.WithLocker(redisAdapter.NewLocker(client, cfg.Redis.Prefix)),
		}, nil

	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, pool, cfg.Postgres.MigrationsTable, a.logger); err != nil {
				return nil, err
			}
		}
		a.logger.Info("using postgres store")
		return []waypoint.Option{
			waypoint.WithConfigRepository(postgres.NewRepository(pool)),
			waypoint.WithStatusStore(postgres.NewStore(pool)),
			waypoint.WithAuditLog(postgres.NewAuditLog(pool)),
		}, nil
	}
	a.logger.Info("using in-memory store")
	return nil, nil
}
