package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"roomly/internal/notifications"
	"roomly/pkg/config"
	"roomly/pkg/kafka"
	kafka_config "roomly/pkg/kafka/config"
	kafka_middleware "roomly/pkg/kafka/middleware"

	"github.com/spf13/cobra"
)

const notifierName = "roomly-notifier"

func newNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Consume booking events and deliver owner notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(notifierName)
			if !cfg.KafkaEnabled() {
				return errors.New("KAFKA_BROKERS must be set to run the notifier")
			}

			kafkaCfg, err := kafka_config.Load(cfg.KafkaBrokers)
			if err != nil {
				return fmt.Errorf("invalid kafka configuration: %w", err)
			}
			kafkaCfg.LogConfiguration(cfg.Log)

			handler := notifications.NewHandler(notifications.NewLogSender(cfg.Log), cfg.Log)
			consumer, err := kafka.NewConsumer(
				kafkaCfg,
				cfg.KafkaBookingTopic,
				cfg.KafkaNotifyGroup,
				dlqTopic(cfg.KafkaBookingTopic),
				handler,
				cfg.Log,
			)
			if err != nil {
				return fmt.Errorf("failed to create kafka consumer: %w", err)
			}
			if kafkaCfg.EnableMiddleware {
				consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg.Log.Info("Notifier started", "topic", cfg.KafkaBookingTopic, "group", cfg.KafkaNotifyGroup)
			err = consumer.Start(ctx)
			if closeErr := consumer.Close(); closeErr != nil {
				cfg.Log.Error("Failed to close kafka consumer", "error", closeErr)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			cfg.Log.Info("Notifier stopped")
			return nil
		},
	}
}
