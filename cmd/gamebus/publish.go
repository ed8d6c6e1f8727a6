package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gamebus/config"
	"gamebus/pkg/bus"
	"gamebus/pkg/logger"

	"github.com/spf13/cobra"
)

// PublishCmd sends one message and exits
var PublishCmd = &cobra.Command{
	Use:   "publish <channel> <json>",
	Short: "Publish a JSON message to a channel",
	Args:  cobra.ExactArgs(2),
	RunE:  runPublish,
}

var publishTimeout time.Duration

func init() {
	PublishCmd.Flags().DurationVar(&publishTimeout, "timeout", 10*time.Second, "Overall time allowed for connect and publish")
}

func runPublish(cmd *cobra.Command, args []string) error {
	channel, body := args[0], args[1]
	if !json.Valid([]byte(body)) {
		return fmt.Errorf("message is not valid JSON: %s", body)
	}

	cfg := config.LoadConfig()
	l := logger.New(cfg.AppMode)
	defer l.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), publishTimeout)
	defer cancel()

	redisCfg := cfg.Redis()
	redisCfg.AutoReconnect = false
	b, err := bus.Connect(ctx, redisCfg, nil, nil, bus.WithLogger(l))
	if err != nil {
		return err
	}
	defer b.Shutdown(context.Background())

	if err := b.Publish(ctx, channel, json.RawMessage(body)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %d bytes to %s\n", len(body), channel)
	return nil
}
