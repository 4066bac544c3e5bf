package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clawplay/platform/internal/config"
	"github.com/clawplay/platform/internal/credit"
	"github.com/clawplay/platform/internal/db"
	httpSrv "github.com/clawplay/platform/internal/http"
	"github.com/clawplay/platform/internal/kafka"
	"github.com/clawplay/platform/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		zlog := logger.New(cfg.Log.Level)
		defer func() { _ = zlog.Sync() }()

		pgDB, err := db.NewPostgresConnection(cfg.Postgres.DSN, db.Opts{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
			PingTimeout:     cfg.Postgres.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		defer pgDB.Close()

		// Redis only backs the leaderboard cache; the API runs without it.
		var redisClient *redis.Client
		if cfg.Redis.Addr != "" {
			redisClient, err = db.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.DialTimeout)
			if err != nil {
				log.Printf("redis unavailable, leaderboard cache disabled: %v", err)
				redisClient = nil
			} else {
				defer func() { _ = redisClient.Close() }()
			}
		}

		// Kafka producer for the analytics stream; optional as well.
		var events credit.Publisher
		if len(cfg.Kafka.Brokers) > 0 {
			producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			defer func() { _ = producer.Close() }()
			events = producer
		}

		server := httpSrv.NewServer(cfg, pgDB, redisClient, events, zlog)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Printf("signal received: %s, shutting down...", sig)
		case err := <-errCh:
			if err != nil {
				log.Printf("http server exited: %v", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
