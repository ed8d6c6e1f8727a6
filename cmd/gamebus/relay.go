package main

import (
	"context"
	"time"

	"gamebus/config"
	"gamebus/internal/auth"
	"gamebus/internal/server"
	"gamebus/internal/websocket"
	"gamebus/pkg/bus"
	"gamebus/pkg/logger"

	"github.com/spf13/cobra"
)

// RelayCmd runs the HTTP and websocket relay in front of the bus
var RelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Serve HTTP publish and websocket streaming over the bus",
	Args:  cobra.NoArgs,
	RunE:  runRelay,
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()
	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub()
	go hub.Run(hubCtx)

	connectCtx, cancel := context.WithTimeout(cmd.Context(), cfg.RedisHandshakeTimeout+time.Second)
	defer cancel()
	b, err := bus.Connect(connectCtx, cfg.Redis(), websocket.NewBridge(hub), cfg.RedisChannels,
		bus.WithLogger(l),
		bus.WithDispatchBuffer(cfg.DispatchBuffer),
	)
	if err != nil {
		return err
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.JWTExpiryMin)*time.Minute)
	srv := server.New(cfg, l)
	srv.SetupRoutes(b, hub, tokens)
	srv.OnShutdown(b.Shutdown)
	srv.OnShutdown(func(context.Context) error {
		stopHub()
		return nil
	})

	return srv.Start()
}
