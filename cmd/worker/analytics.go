package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clawplay/platform/internal/config"
	"github.com/clawplay/platform/internal/db"
	"github.com/clawplay/platform/internal/kafka"
	"github.com/clawplay/platform/internal/worker"
	"github.com/spf13/cobra"
)

func newAnalyticsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Consume credit events into ClickHouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, db.Opts{
				MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
				MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
				ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
				ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
				PingTimeout:     cfg.ClickHouse.PingTimeout,
			})
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer func() { _ = chDB.Close() }()

			groupID := cfg.Kafka.GroupID
			if groupID == "" {
				groupID = "clawplay-analytics"
			}

			consumer := kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:        cfg.Kafka.Brokers,
				Topic:          cfg.Kafka.Topic,
				GroupID:        groupID,
				MinBytes:       cfg.Kafka.MinBytes,
				MaxBytes:       cfg.Kafka.MaxBytes,
				CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
			})
			defer consumer.Close()

			w := worker.NewAnalytics(chDB, consumer, cfg.Analytics.BatchSize, cfg.Analytics.BatchWait)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Printf(">> analytics started topic=%s group=%s batchSize=%d batchWait=%s",
				cfg.Kafka.Topic, groupID, w.BatchSize, w.BatchWait)

			return w.Run(ctx)
		},
	}
}
