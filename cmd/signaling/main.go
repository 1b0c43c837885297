package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/mossy-p/skillswap-signaling/config"
	"github.com/mossy-p/skillswap-signaling/internal/handlers"
	"github.com/mossy-p/skillswap-signaling/internal/redis"
	"github.com/mossy-p/skillswap-signaling/internal/signaling"
)

func main() {
	app := &cli.App{
		Name:  "signaling",
		Usage: "WebRTC call and whiteboard signaling server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "listen port, overrides PORT",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment: either 'development' or 'production', overrides ENVIRONMENT",
			},
			&cli.BoolFlag{
				Name:  "redis",
				Usage: "fan notifications out through Redis, overrides REDIS_ENABLED",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("signaling server failed")
	}
}

func run(c *cli.Context) error {
	// Load configuration
	cfg := config.Load()
	if c.IsSet("port") {
		cfg.Port = c.String("port")
	}
	if c.IsSet("env") {
		cfg.Environment = c.String("env")
	}
	if c.IsSet("redis") {
		cfg.Redis.Enabled = c.Bool("redis")
	}

	initLogger(cfg)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := signaling.NewHub(signaling.WithSendBuffer(cfg.WebSocket.SendBuffer))
	defer hub.Close()

	var publisher handlers.Publisher = handlers.HubPublisher{Hub: hub}
	if cfg.Redis.Enabled {
		// Connect to Redis
		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		bus := redis.NewNotificationBus(rdb)
		sub, err := bus.Subscribe(ctx)
		if err != nil {
			return err
		}
		defer sub.Close()

		go sub.Run(ctx, func(userID string, payload []byte) {
			hub.NotifyUser(userID, payload)
		})
		publisher = bus
		log.Info().Str("host", cfg.Redis.Host).Msg("redis notification bus connected")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(cfg, hub, publisher),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("starting signaling server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Warn().Msg("the server is shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	server.SetKeepAlivesEnabled(false)
	// hijacked websockets are not tracked by Shutdown, closing the hub ends their pumps
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}

func initLogger(cfg *config.Config) {
	level := zerolog.InfoLevel
	if !cfg.IsProduction() {
		level = zerolog.DebugLevel
		log.Logger = log.Output(zerolog.NewConsoleWriter())
	}
	if cfg.LogLevel != "" {
		if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
}
