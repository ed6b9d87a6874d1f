package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/user-service/internal/config"
	"github.com/Sternrassler/user-service/internal/database"
	"github.com/Sternrassler/user-service/internal/notify"
	"github.com/Sternrassler/user-service/internal/server"
	"github.com/Sternrassler/user-service/internal/user"
	"github.com/Sternrassler/user-service/pkg/cache"
	"github.com/Sternrassler/user-service/pkg/logging"
	"github.com/Sternrassler/user-service/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}
}

func runServe(cmd *cobra.Command, flags *globalFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	logger := logging.NewLogger("main")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := user.Options{CacheTTL: cfg.Cache.TTL}
	if cfg.Cache.Enabled {
		c, err := newCache(cfg.Redis)
		if err != nil {
			return err
		}
		defer c.Close()
		opts.Cache = c
	}

	if cfg.Webhook.URL != "" {
		webhook, err := notify.NewWebhook(notify.Config{
			URL:        cfg.Webhook.URL,
			Timeout:    cfg.Webhook.Timeout,
			RetryCount: cfg.Webhook.RetryCount,
		})
		if err != nil {
			return err
		}
		defer webhook.Close()
		opts.Notifier = webhook
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:       cfg.Redis.Addr(),
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			ClientName: "user-service-ratelimit",
		})
		defer rdb.Close()

		limiter, err = ratelimit.New(ratelimit.NewRedisCounter(rdb), ratelimit.Config{
			Limit:  cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		})
		if err != nil {
			return fmt.Errorf("create rate limiter: %w", err)
		}
	}

	srv, err := server.New(server.Options{
		Addr:            cfg.Server.Addr(),
		APIKey:          cfg.Server.APIKey,
		DetailedErrors:  cfg.DetailedErrors(),
		Users:           user.NewService(user.NewRepository(db), opts),
		Limiter:         limiter,
		DB:              db,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("env", cfg.Env).
		Str("addr", cfg.Server.Addr()).
		Bool("cache", cfg.Cache.Enabled).
		Bool("rate_limit", cfg.RateLimit.Enabled).
		Bool("webhook", cfg.Webhook.URL != "").
		Msg("Starting user service")

	return srv.Run(ctx)
}

func newCache(rc config.RedisConfig) (*cache.Client, error) {
	cc := cache.DefaultConfig()
	cc.Host = rc.Host
	cc.ReaderHost = rc.ReaderHost
	cc.Port = rc.Port
	cc.Password = rc.Password
	cc.DB = rc.DB

	c, err := cache.New(cc)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return c, nil
}
