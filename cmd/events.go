/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quillpress/apiserver/config"
	"github.com/quillpress/apiserver/internal/mq"
	"github.com/quillpress/apiserver/types"
	"github.com/spf13/cobra"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events on the configured broker",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log every post and upload event until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := newLogger(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.NewFromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer broker.Close()

		log.Info("watching events", slog.String("backend", cfg.MQ.Backend), slog.String("topic", cfg.MQ.Topic))
		err = mq.NewEventPublisher(broker, cfg.MQ.Topic).SubscribeEvents(ctx, func(ctx context.Context, event types.Event) error {
			log.Info("event",
				slog.String("type", string(event.Type)),
				slog.Int("post_id", event.PostID),
				slog.Int("author_id", event.AuthorID),
				slog.String("image_url", event.ImageURL),
				slog.Time("occurred_at", event.OccurredAt),
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
