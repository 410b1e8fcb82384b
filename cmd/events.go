/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/taskflow/apiserver/config"
	"github.com/taskflow/apiserver/internal/events"
	"github.com/taskflow/apiserver/internal/logging"
	"github.com/taskflow/apiserver/internal/mq"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect published task and account events",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Subscribe to the event channel and log every event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bus, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if bus == nil {
			return errors.New("MQ_BACKEND is none; nothing to watch")
		}
		defer bus.Close()

		logger.Info("watching events", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
		err = bus.Subscribe(ctx, cfg.MQ.Channel, func(_ context.Context, msg mq.Message) error {
			event, err := events.Decode(msg)
			if err != nil {
				// Undecodable messages are dropped rather than redelivered forever.
				logger.Warn("skipping message", "id", msg.ID, "error", err)
				return nil
			}
			logger.Info("event",
				"id", msg.ID,
				"type", event.Type,
				"user_id", event.UserID,
				"task_id", event.TaskID,
				"at", event.At,
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
