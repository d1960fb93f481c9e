package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/bots"
	"github.com/chatrelay/chatrelay/internal/chat"
	"github.com/chatrelay/chatrelay/internal/client"
	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/db"
	"github.com/chatrelay/chatrelay/internal/ingest"
	"github.com/chatrelay/chatrelay/internal/logger"
	"github.com/chatrelay/chatrelay/internal/message"
	"github.com/chatrelay/chatrelay/internal/pipeline"
	"github.com/chatrelay/chatrelay/internal/realtime"
)

// newPollCmd runs one poll pass and exits, for cron-style deployments that
// do not keep the serve process running.
func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one Telegram poll pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			log := logger.L

			ctx := cmd.Context()
			pool, err := db.Connect(ctx, log, cfg.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()

			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()

			clients := client.NewStore(log, pool)
			messages := message.NewStore(log, pool)
			botStore := bots.NewStore(log, pool)
			publisher := realtime.NewPublisher(log, realtime.NewRedisTransport(rdb))
			chain := pipeline.NewChain(log,
				pipeline.NewNormalize(log, clients),
				pipeline.NewPersist(log, messages),
				pipeline.NewAiEnrich(log, chat.NewClient(log, cfg.AI), messages, publisher),
			)
			poller := ingest.NewPoller(log, botStore, chain, publisher, cfg.Telegram)
			return poller.RunOnce(context.WithoutCancel(ctx))
		},
	}
}
