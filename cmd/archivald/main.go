// archivald consumes the JetStream auction event stream and persists the
// audit trail to Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/pallab20057477/bidcart-auction/internal/archive"
	"github.com/pallab20057477/bidcart-auction/internal/config"
	"github.com/pallab20057477/bidcart-auction/internal/store"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "archivald").Logger()
	cfg := config.LoadArchival()

	log.Info().Msg("connecting to Postgres")
	db, err := store.NewPostgresStore(cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Postgres")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	log.Info().Str("url", cfg.NatsURL).Msg("connecting to NATS")
	consumer, err := archive.NewConsumer(cfg.NatsURL, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer consumer.Close()

	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("consumer error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()
	log.Info().Msg("stopped")
}
