// broadcastd bridges Redis pub/sub auction events to WebSocket viewers.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pallab20057477/bidcart-auction/internal/config"
	"github.com/pallab20057477/bidcart-auction/internal/notifier"
	"github.com/pallab20057477/bidcart-auction/internal/ws"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "broadcastd").Logger()
	cfg := config.LoadBroadcast()

	log.Info().Str("addr", cfg.RedisAddr).Msg("connecting to Redis")
	subscriber, err := notifier.NewSubscriber(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer subscriber.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := subscriber.Subscribe(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe")
	}

	hub := ws.NewHub(log)
	go hub.Run()

	messages := make(chan *notifier.Message, 256)
	go func() {
		if err := subscriber.Listen(ctx, messages); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("subscriber stopped")
		}
	}()

	// Redis pub/sub -> WebSocket fan-out.
	go func() {
		for msg := range messages {
			hub.Broadcast(msg.Feed, msg.Payload)
		}
	}()

	handler := ws.NewHandler(hub, log)
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler.SetupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ServerAddr).Msg("broadcast service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("stopped")
}
