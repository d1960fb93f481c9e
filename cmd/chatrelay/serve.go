package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/chatrelay/chatrelay/internal/bots"
	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/channel/adapters/telegram"
	"github.com/chatrelay/chatrelay/internal/channel/adapters/web"
	"github.com/chatrelay/chatrelay/internal/chat"
	"github.com/chatrelay/chatrelay/internal/client"
	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/db"
	"github.com/chatrelay/chatrelay/internal/handlers"
	"github.com/chatrelay/chatrelay/internal/ingest"
	"github.com/chatrelay/chatrelay/internal/logger"
	"github.com/chatrelay/chatrelay/internal/message"
	"github.com/chatrelay/chatrelay/internal/pipeline"
	"github.com/chatrelay/chatrelay/internal/ratelimit"
	"github.com/chatrelay/chatrelay/internal/realtime"
	"github.com/chatrelay/chatrelay/internal/server"
	"github.com/chatrelay/chatrelay/internal/sites"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, realtime gateway and scheduled poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			runServe(cfg, logger.L)
			return nil
		},
	}
}

func runServe(cfg config.Config, log *slog.Logger) {
	app := fx.New(
		fx.Supply(cfg),
		fx.Supply(log),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
		fx.Provide(
			providePool,
			provideRedis,
			provideClientStore,
			provideMessageStore,
			provideBotStore,
			provideSiteStore,
			provideCompleter,
			providePublisher,
			provideGateway,
			provideLimiter,
			provideChain,
			provideRegistry,
			provideWebhookHandler,
			providePoller,
			provideServer,
		),
		fx.Invoke(
			startGateway,
			startPoller,
			startServer,
		),
	)
	app.Run()
}

func providePool(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(log, cfg.Postgres); err != nil {
		return nil, err
	}
	pool, err := db.Connect(context.Background(), log, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func provideRedis(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})
	return rdb
}

func provideClientStore(log *slog.Logger, pool *pgxpool.Pool) *client.Store {
	return client.NewStore(log, pool)
}

func provideMessageStore(log *slog.Logger, pool *pgxpool.Pool) *message.Store {
	return message.NewStore(log, pool)
}

func provideBotStore(log *slog.Logger, pool *pgxpool.Pool) *bots.Store {
	return bots.NewStore(log, pool)
}

func provideSiteStore(log *slog.Logger, pool *pgxpool.Pool) *sites.Store {
	return sites.NewStore(log, pool)
}

func provideCompleter(log *slog.Logger, cfg config.Config) chat.Completer {
	return chat.NewClient(log, cfg.AI)
}

func providePublisher(log *slog.Logger, rdb *redis.Client) *realtime.Publisher {
	return realtime.NewPublisher(log, realtime.NewRedisTransport(rdb))
}

func provideGateway(log *slog.Logger, rdb *redis.Client) *realtime.Gateway {
	return realtime.NewGateway(log, rdb)
}

func provideLimiter(log *slog.Logger, rdb *redis.Client, cfg config.Config) *ratelimit.VisitorLimiter {
	window := time.Duration(cfg.RateLimit.VisitorWindowSeconds) * time.Second
	return ratelimit.NewVisitorLimiter(log, ratelimit.NewRedisCache(rdb), cfg.RateLimit.VisitorMessages, window)
}

func provideChain(log *slog.Logger, clients *client.Store, messages *message.Store, completer chat.Completer, publisher *realtime.Publisher) *pipeline.Chain {
	return pipeline.NewChain(log,
		pipeline.NewNormalize(log, clients),
		pipeline.NewPersist(log, messages),
		pipeline.NewAiEnrich(log, completer, messages, publisher),
	)
}

func provideRegistry(log *slog.Logger, botStore *bots.Store, publisher *realtime.Publisher) *channel.Registry {
	registry := channel.NewRegistry(log)
	registry.MustRegister(telegram.NewAdapter(log, botStore))
	registry.MustRegister(web.NewAdapter(log, publisher))
	return registry
}

func provideWebhookHandler(log *slog.Logger, botStore *bots.Store, siteStore *sites.Store, chain *pipeline.Chain, limiter *ratelimit.VisitorLimiter, publisher *realtime.Publisher) *ingest.WebhookHandler {
	return ingest.NewWebhookHandler(log, botStore, siteStore, chain, limiter, publisher)
}

func providePoller(log *slog.Logger, botStore *bots.Store, chain *pipeline.Chain, publisher *realtime.Publisher, cfg config.Config) *ingest.Poller {
	return ingest.NewPoller(log, botStore, chain, publisher, cfg.Telegram)
}

func provideServer(log *slog.Logger, cfg config.Config, clients *client.Store, messages *message.Store, registry *channel.Registry, publisher *realtime.Publisher, gateway *realtime.Gateway, webhook *ingest.WebhookHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, []server.Handler{
		handlers.NewPingHandler(),
		handlers.NewMessagesHandler(log, clients, messages, registry, publisher),
		handlers.NewWSHandler(log, gateway, clients),
		webhook,
	})
}

func startGateway(lc fx.Lifecycle, gateway *realtime.Gateway) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go gateway.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func startPoller(lc fx.Lifecycle, poller *ingest.Poller, cfg config.Config) error {
	c := cron.New()
	if err := poller.Schedule(c, cfg.Telegram.PollSchedule); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			<-c.Stop().Done()
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("http server stopped", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
