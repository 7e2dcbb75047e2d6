package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/music-spaces/internal/config"
	"github.com/music-spaces/pkg/events"
	"github.com/music-spaces/pkg/logger"
)

// eventlog tails the domain event topic and writes each event as a log line.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	if len(cfg.Kafka.Brokers) == 0 {
		logg.Fatal("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := events.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, logg)
	defer client.Close()

	logg.Info("consuming events",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group_id", cfg.Kafka.GroupID))

	err = client.ConsumeEvents(ctx, func(ev events.Event) error {
		logg.Info("event",
			zap.String("id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.String("space_id", ev.SpaceID),
			zap.String("user_id", ev.UserID),
			zap.Time("at", ev.Timestamp),
			zap.ByteString("payload", ev.Payload))
		return nil
	}, func(msg kafka.Message, err error) {
		logg.Warn("skipping undecodable message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	})
	if err != nil {
		logg.Fatal("consumer stopped", zap.Error(err))
	}
	logg.Info("consumer stopped")
}
